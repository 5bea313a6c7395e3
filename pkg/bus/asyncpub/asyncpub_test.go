package asyncpub_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/asyncpub"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

func TestEnqueuePreservesPublishOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	p := asyncpub.New(10, func(ctx context.Context, msg *message.Message, cfg message.Config) error {
		mu.Lock()
		order = append(order, msg.Subject())
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		p.Enqueue(message.New(subjectFor(i), message.Publish), message.Config{})
	}
	p.Stop()

	require.Len(t, order, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, subjectFor(i), order[i])
	}
}

func TestStopDrainsQueueBeforeReturning(t *testing.T) {
	var published int
	var mu sync.Mutex

	p := asyncpub.New(10, func(ctx context.Context, msg *message.Message, cfg message.Config) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		published++
		mu.Unlock()
		return nil
	})

	for i := 0; i < 3; i++ {
		p.Enqueue(message.New(subjectFor(i), message.Publish), message.Config{})
	}
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, published)
}

func subjectFor(i int) string {
	return "GMSEC.TEST.ASYNC." + string(rune('A'+i))
}
