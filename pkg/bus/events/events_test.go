package events_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/events"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
)

func TestDispatchInvokesSpecificHandler(t *testing.T) {
	b := events.New()

	var gotKind transport.EventKind
	var gotErr error
	b.Register(transport.EventConnectionBroken, func(kind transport.EventKind, err error) {
		gotKind = kind
		gotErr = err
	})

	want := errors.New("boom")
	b.Dispatch(transport.EventConnectionBroken, want)

	assert.Equal(t, transport.EventConnectionBroken, gotKind)
	assert.Equal(t, want, gotErr)
}

func TestDispatchFallsBackToAllEvents(t *testing.T) {
	b := events.New()

	var gotKind transport.EventKind
	b.Register(events.AllEvents, func(kind transport.EventKind, err error) {
		gotKind = kind
	})

	b.Dispatch(transport.EventConnectionReconnect, nil)

	assert.Equal(t, transport.EventConnectionReconnect, gotKind)
}

func TestRegisterReplacesPriorHandlerForSameKind(t *testing.T) {
	b := events.New()

	calls := 0
	b.Register(transport.EventDispatcherError, func(kind transport.EventKind, err error) {
		calls++
	})
	b.Register(transport.EventDispatcherError, func(kind transport.EventKind, err error) {
		calls += 10
	})

	b.Dispatch(transport.EventDispatcherError, nil)

	assert.Equal(t, 10, calls)
}

func TestRegisterNilHandlerClearsSlot(t *testing.T) {
	b := events.New()

	calls := 0
	b.Register(transport.EventConnectionSuccessful, func(kind transport.EventKind, err error) {
		calls++
	})
	b.Register(transport.EventConnectionSuccessful, nil)

	b.Dispatch(transport.EventConnectionSuccessful, nil)

	assert.Equal(t, 0, calls)
}

func TestDispatchWithNoHandlerIsNoop(t *testing.T) {
	b := events.New()
	assert.NotPanics(t, func() {
		b.Dispatch(transport.EventConnectionException, nil)
	})
}
