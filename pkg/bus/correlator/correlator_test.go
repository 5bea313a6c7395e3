package correlator_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/correlator"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

func TestRequestDeliversMatchingReply(t *testing.T) {
	c := correlator.New()

	go func() {
		time.Sleep(10 * time.Millisecond)
		reply := message.New("GMSEC.TEST.REPLY", message.Reply)
		reply.AddField(message.NewStringField(correlator.FieldCorrelationIDCurrent, "req-1"))
		c.Deliver(reply)
	}()

	reply, err := c.Request(context.Background(), "req-1", time.Second, 0, func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "GMSEC.TEST.REPLY", reply.Subject())
}

func TestRequestTimesOutWithNoReply(t *testing.T) {
	c := correlator.New()
	_, err := c.Request(context.Background(), "req-2", 20*time.Millisecond, 0, func() error { return nil })
	assert.ErrorIs(t, err, correlator.ErrTimeout)
}

func TestRequestRepublishesOnInterval(t *testing.T) {
	c := correlator.New()
	var publishCount int64

	go func() {
		time.Sleep(70 * time.Millisecond)
		reply := message.New("GMSEC.TEST.REPLY", message.Reply)
		reply.AddField(message.NewStringField(correlator.FieldCorrelationIDCurrent, "req-3"))
		c.Deliver(reply)
	}()

	_, err := c.Request(context.Background(), "req-3", time.Second, 20*time.Millisecond, func() error {
		atomic.AddInt64(&publishCount, 1)
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&publishCount), int64(3))
}

func TestDeliverWithNoPendingRequestReturnsFalse(t *testing.T) {
	c := correlator.New()
	reply := message.New("GMSEC.TEST.REPLY", message.Reply)
	reply.AddField(message.NewStringField(correlator.FieldCorrelationIDCurrent, "unknown"))
	assert.False(t, c.Deliver(reply))
}

func TestExtractCorrelationIDFallsBackToLegacyField(t *testing.T) {
	m := message.New("GMSEC.TEST.REPLY", message.Reply)
	m.AddField(message.NewStringField(correlator.FieldCorrelationIDLegacy, "legacy-id"))

	id, ok := correlator.ExtractCorrelationID(m)
	require.True(t, ok)
	assert.Equal(t, "legacy-id", id)
}
