// Package asyncpub implements the AsyncPublisher: a bounded queue plus a
// single background worker that hands messages to the transport driver off
// the caller's goroutine, so Publish can return before the driver
// round-trip completes when "gmsec-async-publish" is enabled. Modeled on
// pkg/concurrency's WorkerPool shutdown shape, narrowed to one worker
// because GMSEC requires publish ordering to be preserved.
package asyncpub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/logger"
)

// PublishFunc performs the actual driver publish.
type PublishFunc func(ctx context.Context, msg *message.Message, cfg message.Config) error

type job struct {
	msg *message.Message
	cfg message.Config
}

// Publisher runs one background worker draining a bounded queue.
type Publisher struct {
	queue   chan job
	publish PublishFunc
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New starts a Publisher with the given queue depth.
func New(queueDepth int, publish PublishFunc) *Publisher {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		queue:   make(chan job, queueDepth),
		publish: publish,
		cancel:  cancel,
	}
	p.wg.Add(1)
	go p.run(ctx)
	return p
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			if err := p.publish(ctx, j.msg, j.cfg); err != nil {
				logger.L().Error("async publish failed",
					slog.String("subject", j.msg.Subject()), slog.Any("error", err))
			}
		}
	}
}

// Enqueue submits msg for asynchronous publish. It blocks if the queue is
// full, applying natural backpressure rather than dropping messages.
func (p *Publisher) Enqueue(msg *message.Message, cfg message.Config) {
	p.queue <- job{msg: msg, cfg: cfg}
}

// Stop drains the queue and waits for the worker to exit. Queued-but-not-
// yet-sent messages are still delivered; Stop does not discard them.
func (p *Publisher) Stop() {
	close(p.queue)
	p.wg.Wait()
	p.cancel()
}

// Depth returns the current queue backlog, used for diagnostics.
func (p *Publisher) Depth() int {
	return len(p.queue)
}
