// Package ibmmq implements the "ibmmq" transport driver. IBM MQ is a
// point-to-point queue manager; github.com/aws/aws-sdk-go-v2/service/sqs
// is the nearest point-to-point-queue client already present in the
// example pack and stands in for it here (see DESIGN.md). A GMSEC subject
// maps onto one SQS queue name; because SQS has no server-side wildcard
// matching, Subscribe only accepts literal (wildcard-free) patterns, each
// served by its own long-poll receive loop.
package ibmmq

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
)

func init() {
	transport.Register("ibmmq", New)
}

type Driver struct {
	client   *sqs.Client
	endpoint string

	mu        sync.Mutex
	queueURLs map[string]string
	subs      map[string]context.CancelFunc
}

func New(cfg message.Config) (transport.Driver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}

	var client *sqs.Client
	if endpoint := cfg["mw-server"]; endpoint != "" {
		client = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	} else {
		client = sqs.NewFromConfig(awsCfg)
	}

	return &Driver{
		client:    client,
		endpoint:  cfg.GetWithDefault("mw-server", "default"),
		queueURLs: make(map[string]string),
		subs:      make(map[string]context.CancelFunc),
	}, nil
}

func (d *Driver) Connect(ctx context.Context) error    { return nil }
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cancel := range d.subs {
		cancel()
	}
	d.subs = make(map[string]context.CancelFunc)
	return nil
}

func (d *Driver) queueName(subject string) string {
	return strings.NewReplacer(".", "-").Replace(subject)
}

func (d *Driver) resolveQueueURL(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	if url, ok := d.queueURLs[name]; ok {
		d.mu.Unlock()
		return url, nil
	}
	d.mu.Unlock()

	out, err := d.client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.queueURLs[name] = *out.QueueUrl
	d.mu.Unlock()
	return *out.QueueUrl, nil
}

func (d *Driver) Publish(ctx context.Context, msg *message.Message, cfg message.Config) error {
	url, err := d.resolveQueueURL(ctx, d.queueName(msg.Subject()))
	if err != nil {
		return err
	}

	body, err := msg.ToXML()
	if err != nil {
		return err
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	return err
}

func (d *Driver) Subscribe(ctx context.Context, pattern string, cfg message.Config, handler transport.MessageHandler) (string, error) {
	if strings.ContainsAny(pattern, "*>") {
		return "", fmt.Errorf("ibmmq: wildcard subscribe patterns are not supported, got %q", pattern)
	}

	url, err := d.resolveQueueURL(ctx, d.queueName(pattern))
	if err != nil {
		return "", err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	go d.receiveLoop(subCtx, url, handler)

	id := pattern + "#" + uuid.New().String()
	d.mu.Lock()
	d.subs[id] = cancel
	d.mu.Unlock()
	return id, nil
}

func (d *Driver) receiveLoop(ctx context.Context, queueURL string, handler transport.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		out, err := d.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     10,
			MessageSystemAttributeNames: []types.MessageSystemAttributeName{
				types.MessageSystemAttributeNameSentTimestamp,
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			time.Sleep(time.Second)
			continue
		}

		for _, m := range out.Messages {
			if msg, err := message.FromXML([]byte(aws.ToString(m.Body))); err == nil {
				handler(msg)
			}
			d.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(queueURL),
				ReceiptHandle: m.ReceiptHandle,
			})
		}
	}
}

func (d *Driver) Unsubscribe(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cancel, ok := d.subs[id]; ok {
		cancel()
		delete(d.subs, id)
	}
	return nil
}

func (d *Driver) SetEventHandler(kind transport.EventKind, handler transport.EventHandler) {}

func (d *Driver) MWInfo() string   { return "ibmmq(sqs)" }
func (d *Driver) Endpoint() string { return d.endpoint }
