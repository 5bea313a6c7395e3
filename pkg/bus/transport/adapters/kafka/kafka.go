// Package kafka implements the "kafka" transport driver on top of
// github.com/IBM/sarama, grounded on the teacher's
// pkg/messaging/adapters/kafka producer (SyncProducer, per-message
// "message-id" header, sarama.ProducerMessage construction). A GMSEC
// subject maps one-to-one onto a Kafka topic; wildcard subscribe patterns
// are resolved against the broker's topic list at subscribe time and
// re-resolved on a background ticker so topics created after Subscribe are
// picked up.
package kafka

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
)

func init() {
	transport.Register("kafka", New)
}

const discoveryInterval = 10 * time.Second

type Driver struct {
	client   sarama.Client
	producer sarama.SyncProducer

	mu        sync.Mutex
	consumer  sarama.Consumer
	subs      map[string]*subscription
	eventMu   sync.RWMutex
	events    map[transport.EventKind]transport.EventHandler
	endpoint  string
	cancel    context.CancelFunc
}

type subscription struct {
	pattern string
	handler transport.MessageHandler
	topics  map[string]bool // currently-consumed topics for this pattern
	cancel  context.CancelFunc
}

// New builds a kafka driver. cfg recognizes "mw-server" as a comma
// separated broker list, mirroring the teacher's Config.Brokers field.
func New(cfg message.Config) (transport.Driver, error) {
	brokers := strings.Split(cfg.GetWithDefault("mw-server", "localhost:9092"), ",")

	scfg := sarama.NewConfig()
	scfg.Producer.Return.Successes = true
	scfg.Version = sarama.V2_8_0_0

	client, err := sarama.NewClient(brokers, scfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		return nil, err
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return nil, err
	}

	return &Driver{
		client:   client,
		producer: producer,
		consumer: consumer,
		subs:     make(map[string]*subscription),
		events:   make(map[transport.EventKind]transport.EventHandler),
		endpoint: strings.Join(brokers, ","),
	}, nil
}

func (d *Driver) Connect(ctx context.Context) error {
	return nil // sarama.NewClient already dialed during New
}

func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.subs {
		if s.cancel != nil {
			s.cancel()
		}
	}
	d.subs = make(map[string]*subscription)

	_ = d.consumer.Close()
	_ = d.producer.Close()
	return d.client.Close()
}

func (d *Driver) Publish(ctx context.Context, msg *message.Message, cfg message.Config) error {
	id := uuid.New().String()
	if f, ok := msg.GetField("UNIQUE-ID"); ok {
		id = f.StringValue()
	}
	body, err := msg.ToXML()
	if err != nil {
		return err
	}

	pm := &sarama.ProducerMessage{
		Topic: msg.Subject(),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("message-id"), Value: []byte(id)},
		},
	}
	_, _, err = d.producer.SendMessage(pm)
	return err
}

func (d *Driver) Subscribe(ctx context.Context, pattern string, cfg message.Config, handler transport.MessageHandler) (string, error) {
	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{pattern: pattern, handler: handler, topics: make(map[string]bool), cancel: cancel}

	d.mu.Lock()
	id := pattern + "#" + uuid.New().String()
	d.subs[id] = sub
	d.mu.Unlock()

	go d.maintainSubscription(subCtx, sub)
	return id, nil
}

func (d *Driver) maintainSubscription(ctx context.Context, sub *subscription) {
	d.syncTopics(ctx, sub)
	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.syncTopics(ctx, sub)
		}
	}
}

func (d *Driver) syncTopics(ctx context.Context, sub *subscription) {
	topics, err := d.client.Topics()
	if err != nil {
		return
	}
	for _, topic := range topics {
		if sub.topics[topic] {
			continue
		}
		if !message.MatchSubject(sub.pattern, topic) {
			continue
		}
		sub.topics[topic] = true
		go d.consumeTopic(ctx, topic, sub.handler)
	}
}

func (d *Driver) consumeTopic(ctx context.Context, topic string, handler transport.MessageHandler) {
	partitions, err := d.consumer.Partitions(topic)
	if err != nil {
		return
	}
	for _, p := range partitions {
		pc, err := d.consumer.ConsumePartition(topic, p, sarama.OffsetNewest)
		if err != nil {
			continue
		}
		go func(pc sarama.PartitionConsumer) {
			defer pc.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case m, ok := <-pc.Messages():
					if !ok {
						return
					}
					msg, err := message.FromXML(m.Value)
					if err != nil {
						continue
					}
					handler(msg)
				}
			}
		}(pc)
	}
}

func (d *Driver) Unsubscribe(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.subs[id]; ok {
		s.cancel()
		delete(d.subs, id)
	}
	return nil
}

func (d *Driver) SetEventHandler(kind transport.EventKind, handler transport.EventHandler) {
	d.eventMu.Lock()
	defer d.eventMu.Unlock()
	if handler == nil {
		delete(d.events, kind)
		return
	}
	d.events[kind] = handler
}

func (d *Driver) MWInfo() string    { return "kafka" }
func (d *Driver) Endpoint() string  { return d.endpoint }
