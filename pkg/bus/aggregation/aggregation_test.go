package aggregation_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/aggregation"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

func TestOfferBinsMatchingSubjectAndFlushesOnCount(t *testing.T) {
	var mu sync.Mutex
	var flushed []*message.Message

	eng := aggregation.New([]string{"GMSEC.BIN.>"}, 2, 0, func(composite *message.Message) {
		mu.Lock()
		flushed = append(flushed, composite)
		mu.Unlock()
	})

	m1 := message.New("GMSEC.BIN.A", message.Publish)
	m2 := message.New("GMSEC.BIN.B", message.Publish)

	assert.True(t, eng.Offer(m1))
	assert.True(t, eng.Offer(m2))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushed) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	composite := flushed[0]
	mu.Unlock()

	f, ok := composite.GetField("MSG-BIN-SIZE")
	require.True(t, ok)
	v, err := f.I64Value()
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
	assert.Equal(t, message.Config{}, composite.Config(), "composite must always publish with a default Config")
}

func TestOfferIgnoresNonMatchingSubject(t *testing.T) {
	eng := aggregation.New([]string{"GMSEC.BIN.>"}, 10, 0, func(*message.Message) {})
	m := message.New("GMSEC.OTHER.A", message.Publish)
	assert.False(t, eng.Offer(m))
}

func TestFlushAllFlushesPendingBins(t *testing.T) {
	flushed := make(chan *message.Message, 1)
	eng := aggregation.New([]string{"GMSEC.BIN.>"}, 100, time.Hour, func(composite *message.Message) {
		flushed <- composite
	})

	eng.Offer(message.New("GMSEC.BIN.A", message.Publish))
	eng.FlushAll()

	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("FlushAll did not flush the pending bin")
	}
}
