// Package opendds implements the "opendds" transport driver on top of
// github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs, grounded on
// pkg/streaming/adapters/eventhubs/adapter.go's ProducerClient usage. Event
// Hubs is the nearest data-distribution/streaming analog to OpenDDS
// already present in the example pack (see DESIGN.md): every subject
// shares one event hub, the GMSEC subject travels as an application
// property, and each partition is read by its own background goroutine
// that filters events against the subscribed pattern client-side.
package opendds

import (
	"context"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"github.com/google/uuid"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
)

func init() {
	transport.Register("opendds", New)
}

const subjectProperty = "gmsec-subject"

type Driver struct {
	producer *azeventhubs.ProducerClient
	consumer *azeventhubs.ConsumerClient
	endpoint string

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

func New(cfg message.Config) (transport.Driver, error) {
	namespace := cfg.GetWithDefault("mw-server", "localhost") + ".servicebus.windows.net"
	hub := cfg.GetWithDefault("mw-exposure-level", "gmsec")

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}

	producer, err := azeventhubs.NewProducerClient(namespace, hub, cred, nil)
	if err != nil {
		return nil, err
	}
	consumer, err := azeventhubs.NewConsumerClient(namespace, hub, azeventhubs.DefaultConsumerGroup, cred, nil)
	if err != nil {
		producer.Close(context.Background())
		return nil, err
	}

	return &Driver{
		producer: producer,
		consumer: consumer,
		endpoint: namespace + "/" + hub,
		subs:     make(map[string]context.CancelFunc),
	}, nil
}

func (d *Driver) Connect(ctx context.Context) error { return nil }

func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	for _, cancel := range d.subs {
		cancel()
	}
	d.subs = make(map[string]context.CancelFunc)
	d.mu.Unlock()

	if err := d.consumer.Close(ctx); err != nil {
		return err
	}
	return d.producer.Close(ctx)
}

func (d *Driver) Publish(ctx context.Context, msg *message.Message, cfg message.Config) error {
	body, err := msg.ToXML()
	if err != nil {
		return err
	}

	batch, err := d.producer.NewEventDataBatch(ctx, nil)
	if err != nil {
		return err
	}

	subject := msg.Subject()
	if err := batch.AddEventData(&azeventhubs.EventData{
		Body:       body,
		Properties: map[string]any{subjectProperty: subject},
	}, nil); err != nil {
		return err
	}

	return d.producer.SendEventDataBatch(ctx, batch, nil)
}

func (d *Driver) Subscribe(ctx context.Context, pattern string, cfg message.Config, handler transport.MessageHandler) (string, error) {
	props, err := d.consumer.GetEventHubProperties(ctx, nil)
	if err != nil {
		return "", err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	for _, partitionID := range props.PartitionIDs {
		pc, err := d.consumer.NewPartitionClient(partitionID, &azeventhubs.PartitionClientOptions{
			StartPosition: azeventhubs.StartPosition{Latest: toPtr(true)},
		})
		if err != nil {
			continue
		}
		go d.consumePartition(subCtx, pc, pattern, handler)
	}

	id := pattern + "#" + uuid.New().String()
	d.mu.Lock()
	d.subs[id] = cancel
	d.mu.Unlock()
	return id, nil
}

func (d *Driver) consumePartition(ctx context.Context, pc *azeventhubs.PartitionClient, pattern string, handler transport.MessageHandler) {
	defer pc.Close(context.Background())
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		events, err := pc.ReceiveEvents(ctx, 20, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		for _, ev := range events {
			subject, _ := ev.Properties[subjectProperty].(string)
			if subject == "" || !message.MatchSubject(pattern, subject) {
				continue
			}
			if msg, err := message.FromXML(ev.Body); err == nil {
				handler(msg)
			}
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

func (d *Driver) MWInfo() string   { return "opendds(eventhubs)" }
func (d *Driver) Endpoint() string { return d.endpoint }

func toPtr[T any](v T) *T { return &v }
