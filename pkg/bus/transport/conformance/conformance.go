// Package conformance runs one fixed battery of behavioral checks against
// any transport.Driver, mirroring pkg/messaging/adapters/memory's
// tests.RunBrokerTests(t, broker) shared-suite pattern so every adapter
// (starting with memory, the only one safe to exercise without a live
// broker) is held to the same contract.
package conformance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
)

// RunDriverTests exercises pub/sub delivery and wildcard matching against
// driver.
func RunDriverTests(t *testing.T, driver transport.Driver) {
	ctx := context.Background()
	require.NoError(t, driver.Connect(ctx))
	defer driver.Disconnect(ctx)

	t.Run("exact subject delivery", func(t *testing.T) {
		received := make(chan *message.Message, 1)
		subID, err := driver.Subscribe(ctx, "GMSEC.TEST.EXACT", message.Config{}, func(msg *message.Message) {
			received <- msg
		})
		require.NoError(t, err)
		defer driver.Unsubscribe(ctx, subID)

		msg := message.New("GMSEC.TEST.EXACT", message.Publish)
		msg.AddFieldValue("COUNT", int32(1))
		require.NoError(t, driver.Publish(ctx, msg, message.Config{}))

		select {
		case got := <-received:
			assert.Equal(t, "GMSEC.TEST.EXACT", got.Subject())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for exact-subject delivery")
		}
	})

	t.Run("wildcard subject delivery", func(t *testing.T) {
		received := make(chan *message.Message, 1)
		subID, err := driver.Subscribe(ctx, "GMSEC.TEST.>", message.Config{}, func(msg *message.Message) {
			received <- msg
		})
		require.NoError(t, err)
		defer driver.Unsubscribe(ctx, subID)

		msg := message.New("GMSEC.TEST.WILD.DEEP", message.Publish)
		require.NoError(t, driver.Publish(ctx, msg, message.Config{}))

		select {
		case got := <-received:
			assert.Equal(t, "GMSEC.TEST.WILD.DEEP", got.Subject())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for wildcard-subject delivery")
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		received := make(chan *message.Message, 1)
		subID, err := driver.Subscribe(ctx, "GMSEC.TEST.UNSUB", message.Config{}, func(msg *message.Message) {
			received <- msg
		})
		require.NoError(t, err)
		require.NoError(t, driver.Unsubscribe(ctx, subID))

		msg := message.New("GMSEC.TEST.UNSUB", message.Publish)
		require.NoError(t, driver.Publish(ctx, msg, message.Config{}))

		select {
		case <-received:
			t.Fatal("received a message after unsubscribing")
		case <-time.After(300 * time.Millisecond):
		}
	})
}
