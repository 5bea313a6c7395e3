// Package bus implements the middleware-agnostic Connection façade: the
// single entry point gluing the message model, transport drivers, and the
// supporting components (tracking, correlation, aggregation, dedup,
// dispatch) into the publish/subscribe/request-reply API described by
// SPEC_FULL.md.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/activesubs"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/aggregation"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/asyncpub"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/callback"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/correlator"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/dispatch"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/events"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/exclusion"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/perflog"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/tracking"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport"
	_ "github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport/adapters/memory"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/uniquefilter"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/concurrency"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/errors"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/logger"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/resilience"
)

// State is the Connection's lifecycle state.
type State int32

const (
	NotConnected State = iota
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connected:
		return "CONNECTED"
	case Reconnecting:
		return "RECONNECTING"
	default:
		return "NOT_CONNECTED"
	}
}

var instanceCount int64

// Connection is the middleware-agnostic bus handle. Construct with New.
type Connection struct {
	id    string
	state atomic.Int32

	config  message.Config
	driver  transport.Driver
	spec    tracking.MessageSpec
	tracker *tracking.Injector

	readMu    *concurrency.TicketMutex
	writeMu   *concurrency.TicketMutex
	eventMu   *concurrency.TicketMutex
	counterMu *concurrency.TicketMutex

	callbacks  *callback.Registry
	exclusions *exclusion.Filter
	unique     *uniquefilter.Filter
	requests   *correlator.Correlator
	eventBus   *events.Bus
	dispatcher *dispatch.AutoDispatcher
	agg        *aggregation.Engine
	async      *asyncpub.Publisher

	inbound chan *message.Message

	removeTrackingOnPublish bool
	filterDups              bool

	disableRR            bool
	multiResponse        bool
	subscribeForResponse bool
	exposeReplies        bool
	reqRepublishDefault  time.Duration

	perf *perflog.Logger

	customReplyMu   sync.Mutex
	customReplySubs map[string]bool

	replyPattern string
	replySubID   string
}

// New constructs a Connection from a merged GMSEC configuration. The
// "mw-id" (or legacy "connectionType") key selects the transport driver
// from the transport registry; New does not connect — call Connect.
func New(cfg message.Config) (*Connection, error) {
	mwID := cfg.GetWithDefault("mw-id", cfg.GetWithDefault("connectionType", "loopback"))

	driver, err := transport.New(mwID, cfg)
	if err != nil {
		return nil, errors.New("CONNECTION_ERROR.INVALID_CONNECTION_TYPE", fmt.Sprintf("unknown mw-id %q", mwID), err)
	}

	n := atomic.AddInt64(&instanceCount, 1)
	host, _ := os.Hostname()
	id := fmt.Sprintf("%s_%d_%d", host, os.Getpid(), n)

	spec := tracking.Spec2018
	if cfg.GetWithDefault("gmsec-specification-version", "2019") < "2018" {
		spec = tracking.Spec2016
	}

	perf, err := perflog.Open(cfg.GetWithDefault("gmsec-log-performance", ""))
	if err != nil {
		return nil, errors.New("CONFIG_ERROR.INVALID_CONFIG_VALUE", "failed to open gmsec-log-performance file", err)
	}

	c := &Connection{
		id:         id,
		config:     cfg.Clone(),
		driver:     driver,
		spec:       spec,
		readMu:     concurrency.NewTicketMutex(id+":read", 2*time.Second),
		writeMu:    concurrency.NewTicketMutex(id+":write", 2*time.Second),
		eventMu:    concurrency.NewTicketMutex(id+":event", 2*time.Second),
		counterMu:  concurrency.NewTicketMutex(id+":counter", 2*time.Second),
		callbacks:  callback.New(),
		exclusions: exclusion.New(),
		unique:     uniquefilter.New(parseIntDefault(cfg.GetWithDefault("gmsec-unique-filter-capacity", "1000"), 1000)),
		requests:   correlator.New(),
		eventBus:   events.New(),
		dispatcher: dispatch.New(),
		inbound:    make(chan *message.Message, 1024),

		removeTrackingOnPublish: cfg.BoolValue("gmsec-remove-tracking-fields", false),
		filterDups:              cfg.BoolValue("mw-filter-dups", true),

		disableRR:            cfg.BoolValue("gmsec-disable-rr", false),
		multiResponse:        cfg.BoolValue("gmsec-multi-response", false),
		subscribeForResponse: cfg.BoolValue("gmsec-subscribe-for-response", true),
		exposeReplies:        exposeReplies(cfg),
		reqRepublishDefault:  time.Duration(parseIntDefault(cfg.GetWithDefault("gmsec-req-republish-ms", "0"), 0)) * time.Millisecond,

		perf: perf,
	}
	c.tracker = tracking.NewInjector(spec, id, driver.MWInfo(), driver.Endpoint())
	c.tracker.LegacyAPI = cfg.BoolValue("gmsec-support-legacy-api", false)
	c.tracker.UsePerfLogger = perf != nil
	applyTrackingToggles(c.tracker, cfg)
	c.replyPattern = strings.ReplaceAll(id, ".", "-") + ".REPLY.>"

	if cfg.BoolValue("gmsec-use-msg-bins", false) {
		if patterns := msgBinSubjects(cfg); len(patterns) > 0 {
			maxMsgs := parseIntDefault(cfg.GetWithDefault("gmsec-msg-bin-size", "100"), 100)
			period := parseDurationDefault(cfg.GetWithDefault("gmsec-msg-bin-timeout", "1s"), time.Second)
			c.agg = aggregation.New(patterns, maxMsgs, period, c.publishComposite)
		}
	}

	driver.SetEventHandler(transport.EventConnectionBroken, func(kind transport.EventKind, err error) {
		c.state.Store(int32(Reconnecting))
		c.eventBus.Dispatch(kind, err)
	})
	driver.SetEventHandler(transport.EventConnectionReconnect, func(kind transport.EventKind, err error) {
		c.state.Store(int32(Connected))
		c.eventBus.Dispatch(kind, err)
	})

	return c, nil
}

// ID returns this connection's unique identifier (host + pid + instance
// count), used to populate CONNECTION-ID and to scope activesubs entries.
func (c *Connection) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Connect establishes the underlying transport session.
func (c *Connection) Connect(ctx context.Context) error {
	release, err := c.writeMu.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	// gmsec-max-conn-retries/-conn-retry-interval describe a constant-
	// interval retry policy (0 retries by default, -1 for unlimited), not
	// exponential backoff: Multiplier 1 and matching Initial/MaxBackoff
	// make resilience.Retry sleep the same interval between every attempt.
	maxRetries := parseIntDefault(c.config.GetWithDefault("gmsec-max-conn-retries", "0"), 0)
	if maxRetries < -1 {
		maxRetries = -1
	}
	retryIntervalMS := parseIntDefault(c.config.GetWithDefault("gmsec-conn-retry-interval", "5000"), 5000)
	if retryIntervalMS < 0 {
		retryIntervalMS = 0
	}
	retryInterval := time.Duration(retryIntervalMS) * time.Millisecond

	attempts := maxRetries + 1
	if maxRetries == -1 {
		attempts = math.MaxInt32
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: retryInterval,
		MaxBackoff:     retryInterval,
		Multiplier:     1,
	}
	if err := resilience.Retry(ctx, retryCfg, func(ctx context.Context) error {
		return c.driver.Connect(ctx)
	}); err != nil {
		return errors.New("CONNECTION_ERROR.CONNECTION_CONNECTION_LOST", "failed to connect", err)
	}

	// Every Request needs a way for a Reply to find its way back to this
	// Connection regardless of what subject the request itself was
	// published on, so subscribe once, internally, to this connection's
	// own reply pattern; onDeliver routes anything Reply-kind straight to
	// the correlator rather than the user-facing callback registry.
	// gmsec-disable-rr bypasses the request/reply subsystem entirely, and
	// gmsec-subscribe-for-response=false opts out of listening for replies
	// even though request/reply itself stays enabled.
	if !c.disableRR && c.subscribeForResponse {
		subID, err := c.driver.Subscribe(ctx, c.replyPattern, c.config, c.onDeliver)
		if err != nil {
			return errors.New("CONNECTION_ERROR.CONNECTION_LOST", "failed to subscribe to reply pattern", err)
		}
		c.replySubID = subID
	}

	if cfgAsync := c.config.BoolValue("gmsec-async-publish", false); cfgAsync {
		queueDepth := parseIntDefault(c.config.GetWithDefault("gmsec-async-publish-queue-depth", "1000"), 1000)
		c.async = asyncpub.New(queueDepth, c.driverPublish)
	}

	c.state.Store(int32(Connected))
	c.eventBus.Dispatch(transport.EventConnectionSuccessful, nil)
	return nil
}

// Disconnect flushes pending work and tears the session down. Safe to call
// more than once.
func (c *Connection) Disconnect(ctx context.Context) error {
	release, err := c.writeMu.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if c.agg != nil {
		c.agg.FlushAll()
	}
	if c.async != nil {
		c.async.Stop()
		c.async = nil
	}
	c.dispatcher.Stop()
	activesubs.DeregisterConnection(c.id)

	if c.replySubID != "" {
		c.driver.Unsubscribe(ctx, c.replySubID)
		c.replySubID = ""
	}

	if err := c.driver.Disconnect(ctx); err != nil {
		return errors.New("CONNECTION_ERROR.CONNECTION_LOST", "failed to disconnect cleanly", err)
	}
	c.perf.Close()
	c.state.Store(int32(NotConnected))
	return nil
}

// Publish sends msg, following InternalConnection::publish's order:
// optionally strip pre-existing tracking fields, insert fresh ones, offer
// to the aggregation engine, and if not binned either enqueue for async
// delivery or hand it to the driver directly — always stripping the
// tracking fields back off before returning, whether or not the send
// succeeded. ExcludeSubject has no effect on Publish: it only suppresses
// what this Connection receives, not what it sends.
func (c *Connection) Publish(ctx context.Context, msg *message.Message) error {
	return c.publishWithConfig(ctx, msg, msg.Config())
}

func (c *Connection) publishWithConfig(ctx context.Context, msg *message.Message, cfg message.Config) error {
	if c.removeTrackingOnPublish {
		for _, f := range msg.Fields() {
			switch f.Name {
			case tracking.FieldNode, tracking.FieldProcessID, tracking.FieldUserName,
				tracking.FieldConnectionID, tracking.FieldPublishTime,
				tracking.FieldMWInfo, tracking.FieldMWConnectionEndpoint,
				tracking.FieldConnectionEndpointLegacy, tracking.FieldNumSubscriptions:
				msg.ClearField(f.Name)
			case tracking.FieldUniqueID:
				// A Request's or Reply's UNIQUE-ID is its correlation id and is kept.
				if msg.Kind() == message.Publish {
					msg.ClearField(f.Name)
				}
			default:
				if strings.HasPrefix(f.Name, "SUBSCRIPTION.") && strings.HasSuffix(f.Name, ".SUBJECT-PATTERN") {
					msg.ClearField(f.Name)
				}
			}
		}
	}

	added := c.tracker.Insert(msg, c.callbacks.Patterns())
	defer c.tracker.Strip(msg, added)

	if c.agg != nil && c.agg.Offer(msg) {
		return nil
	}

	if c.async != nil {
		// Clone before the deferred Strip above runs: the async worker
		// publishes from its own goroutine, possibly well after this call
		// returns and its tracking fields are stripped from msg.
		c.async.Enqueue(msg.Clone(), cfg)
		return nil
	}

	return c.driverPublish(ctx, msg, cfg)
}

func (c *Connection) driverPublish(ctx context.Context, msg *message.Message, cfg message.Config) error {
	release, err := c.writeMu.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	err = c.driver.Publish(ctx, msg, cfg)
	c.perf.RecordPublish(msg.Subject(), time.Since(start), err)
	if err != nil {
		return errors.New("CONNECTION_ERROR.CONNECTION_LOST", "publish failed", err)
	}
	return nil
}

// publishComposite is handed to the aggregation engine as its FlushFunc:
// the composite message always goes out with a default (empty) Config,
// regardless of what mw-config any individual binned Publish call used.
func (c *Connection) publishComposite(composite *message.Message) {
	if err := c.driverPublish(context.Background(), composite, message.Config{}); err != nil {
		logger.L().Error("failed to publish aggregated message", slog.String("subject", composite.Subject()), slog.Any("error", err))
	}
}

// Request sends msg and blocks for a reply, republishing every
// republishInterval (if positive) until one arrives or timeout elapses. A
// non-positive republishInterval falls back to gmsec-req-republish-ms, if
// the Connection was configured with one.
func (c *Connection) Request(ctx context.Context, msg *message.Message, timeout, republishInterval time.Duration) (*message.Message, error) {
	if c.disableRR {
		return nil, errors.New("CONNECTION_ERROR.REQUEST_RESPONSE_DISABLED", "request/reply is disabled by gmsec-disable-rr", nil)
	}
	if republishInterval <= 0 {
		republishInterval = c.reqRepublishDefault
	}

	id, err := c.ensureReplySubject(msg)
	if err != nil {
		return nil, err
	}

	reply, err := c.requests.Request(ctx, id, timeout, republishInterval, func() error {
		return c.Publish(ctx, msg)
	})
	if err != nil {
		if err == correlator.ErrTimeout {
			return nil, errors.New("TIMEOUT_ERROR.NO_RESPONSE_REPLY", "no reply received before timeout", err)
		}
		return nil, err
	}
	return reply, nil
}

// RequestAsync sends msg and invokes onReply from a new goroutine whenever
// a matching reply arrives, until Cancel is called on the returned id.
// Unless gmsec-multi-response is enabled, the request is automatically
// cancelled after its first reply, so onReply fires at most once.
func (c *Connection) RequestAsync(ctx context.Context, msg *message.Message, onReply func(*message.Message)) (string, error) {
	if c.disableRR {
		return "", errors.New("CONNECTION_ERROR.REQUEST_RESPONSE_DISABLED", "request/reply is disabled by gmsec-disable-rr", nil)
	}

	id, err := c.ensureReplySubject(msg)
	if err != nil {
		return "", err
	}

	handler := onReply
	if !c.multiResponse {
		handler = func(reply *message.Message) {
			onReply(reply)
			c.requests.Cancel(id)
		}
	}

	if err := c.requests.RequestAsync(id, func() error { return c.Publish(ctx, msg) }, handler); err != nil {
		return "", err
	}
	return id, nil
}

// CancelRequest stops tracking an outstanding callback-style request.
func (c *Connection) CancelRequest(id string) {
	c.requests.Cancel(id)
}

func (c *Connection) ensureReplySubject(msg *message.Message) (string, error) {
	// Guarded by counterMu, mirroring the dedicated counter mutex the
	// original API uses around its request-id generation so two Request
	// calls racing on the same Connection never observe a torn UNIQUE-ID.
	release, err := c.counterMu.Lock(context.Background())
	if err != nil {
		return "", err
	}
	defer release()

	msg.SetKind(message.Request)
	added := c.tracker.Insert(msg, c.callbacks.Patterns())
	c.tracker.Strip(msg, removeExcept(added, tracking.FieldUniqueID))

	f, ok := msg.GetField(tracking.FieldUniqueID)
	if !ok {
		return "", errors.New("MSG_ERROR.MISSING_SUBJECT", "request message missing correlation id", nil)
	}
	id := f.StringValue()
	msg.AddField(message.NewStringField(correlator.FieldCorrelationIDCurrent, id))

	// gmsec-reply-subject, read from the request message's own Config (not
	// the Connection's), lets the caller override the auto-generated reply
	// subject; since that subject bypasses this Connection's internal
	// reply-pattern subscription, ensure a dedicated subscription exists
	// for it too, mirroring setupSubscriptionForResponse.
	replySubject := c.replySubjectFor(id)
	if override := msg.Config().GetWithDefault("gmsec-reply-subject", ""); override != "" {
		replySubject = override
		c.ensureCustomReplySubscription(override)
	}
	msg.AddField(message.NewStringField(correlator.FieldReplySubject, replySubject))
	return id, nil
}

// replySubjectFor builds the concrete subject a reply to request id must be
// published on to reach this Connection's internal reply subscription.
func (c *Connection) replySubjectFor(id string) string {
	return strings.TrimSuffix(c.replyPattern, ">") + strings.ReplaceAll(id, ".", "-")
}

// ensureCustomReplySubscription subscribes (once) to a caller-chosen reply
// subject named via gmsec-reply-subject, so a Reply published there still
// reaches this Connection's onDeliver.
func (c *Connection) ensureCustomReplySubscription(subject string) {
	c.customReplyMu.Lock()
	if c.customReplySubs == nil {
		c.customReplySubs = make(map[string]bool)
	}
	if c.customReplySubs[subject] {
		c.customReplyMu.Unlock()
		return
	}
	c.customReplySubs[subject] = true
	c.customReplyMu.Unlock()

	if _, err := c.driver.Subscribe(context.Background(), subject, c.config, c.onDeliver); err != nil {
		logger.L().Warn("failed to subscribe for custom reply subject", slog.String("subject", subject), slog.Any("error", err))
	}
}

func removeExcept(fields []string, keep ...string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		skip := false
		for _, k := range keep {
			if f == k {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, f)
		}
	}
	return out
}

// Reply sends reply in response to request, stamping it with request's
// correlation id (read from the request message's own UNIQUE-ID field,
// never invented fresh), retargeting its subject to the requester's own
// reply subscription, and stripping both stamps back off once the driver
// has accepted it, exactly as InternalConnection::reply.
func (c *Connection) Reply(ctx context.Context, request, reply *message.Message) error {
	if c.disableRR {
		return errors.New("CONNECTION_ERROR.REQUEST_RESPONSE_DISABLED", "request/reply is disabled by gmsec-disable-rr", nil)
	}

	corrID, ok := correlator.ExtractCorrelationID(request)
	if !ok {
		if f, has := request.GetField(tracking.FieldUniqueID); has {
			corrID = f.StringValue()
			ok = true
		}
	}
	if !ok {
		return errors.New("MSG_ERROR.MISSING_SUBJECT", "cannot reply: request carries no correlation id", nil)
	}

	replyTo, ok := request.GetField(correlator.FieldReplySubject)
	if !ok {
		return errors.New("MSG_ERROR.MISSING_SUBJECT", "cannot reply: request carries no reply subject", nil)
	}
	originalSubject := reply.Subject()
	reply.SetSubject(replyTo.StringValue())
	defer reply.SetSubject(originalSubject)

	reply.SetKind(message.Reply)
	reply.AddField(message.NewStringField(correlator.FieldCorrelationIDCurrent, corrID))
	defer reply.ClearField(correlator.FieldCorrelationIDCurrent)

	return c.Publish(ctx, reply)
}

// Subscribe registers cb against pattern. A second Subscribe on the same
// pattern with no callback is rejected; a second Subscribe with a new
// callback multiplexes at the registry layer without a new driver
// subscription; the identical callback twice on the same pattern is
// rejected.
func (c *Connection) Subscribe(ctx context.Context, pattern string, cb callback.Callback) error {
	cbID := callbackIdentity(cb)

	result := c.callbacks.Register(pattern, cb, cbID)
	switch result {
	case callback.ErrDuplicate:
		return errors.New("CONNECTION_ERROR.CONNECTION_CONNECTED", "duplicate subscription for pattern", nil)
	case callback.ErrDuplicateUsingCallback:
		return errors.New("CONNECTION_ERROR.CONNECTION_CONNECTED", "callback already subscribed to pattern", nil)
	case callback.NotNew:
		return nil
	}

	release, err := c.readMu.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	subID, err := c.driver.Subscribe(ctx, pattern, c.config, c.onDeliver)
	if err != nil {
		c.callbacks.Unregister(pattern)
		return errors.New("CONNECTION_ERROR.CONNECTION_LOST", "subscribe failed", err)
	}
	c.callbacks.SetDriverSubID(pattern, subID)
	activesubs.Register(c.id, pattern)
	return nil
}

// Unsubscribe cancels every callback registered for pattern.
func (c *Connection) Unsubscribe(ctx context.Context, pattern string) error {
	subID, should := c.callbacks.Unregister(pattern)
	if !should {
		return nil
	}

	release, err := c.readMu.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	activesubs.Deregister(c.id, pattern)
	if subID == "" {
		return nil
	}
	if err := c.driver.Unsubscribe(ctx, subID); err != nil {
		return errors.New("CONNECTION_ERROR.CONNECTION_LOST", "unsubscribe failed", err)
	}
	return nil
}

// onDeliver is the single entry point for every message a driver hands
// back to this Connection, whether from an explicit Subscribe or from a
// Request's reply channel: it suppresses excluded subjects, deduplicates by
// UNIQUE-ID, routes replies to the correlator, and otherwise queues the
// message for Receive/AutoDispatch. Exclusion is checked here rather than
// on Publish, matching InternalConnection::getNextMsg's checkForExclusion:
// the filter suppresses inbound delivery to this Connection without ever
// unsubscribing at the driver, so other subscribers on the same subject
// still see the message.
func (c *Connection) onDeliver(msg *message.Message) {
	if c.exclusions.IsExcluded(msg.Subject()) {
		return
	}

	if c.filterDups {
		if f, ok := msg.GetField(tracking.FieldUniqueID); ok {
			if c.unique.CheckAndRemember(f.StringValue()) {
				return
			}
		}
	}

	if msg.Kind() == message.Reply {
		claimed := c.requests.Deliver(msg)
		if claimed && !c.exposeReplies {
			return
		}
	}

	select {
	case c.inbound <- msg:
	default:
		logger.L().Warn("connection inbound queue full, dropping message", slog.String("subject", msg.Subject()))
	}
}

// Receive blocks up to timeout for the next message queued by onDeliver
// that was not claimed by the request correlator, dispatching it to any
// matching Subscribe callbacks and returning it to the caller as well.
func (c *Connection) Receive(ctx context.Context, timeout time.Duration) (*message.Message, error) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case msg := <-c.inbound:
		c.callbacks.Dispatch(msg.Subject(), msg)
		return msg, nil
	case <-timeoutCh:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StartAutoDispatch launches the single background dispatch thread.
func (c *Connection) StartAutoDispatch() error {
	return c.dispatcher.Start(c.Receive, func(msg *message.Message) {}, func(err error) {
		c.eventBus.Dispatch(transport.EventDispatcherError, err)
	})
}

// StopAutoDispatch halts the background dispatch thread, if running.
func (c *Connection) StopAutoDispatch() {
	c.dispatcher.Stop()
}

// RegisterEventCallback installs handler for a connection lifecycle event
// kind (or events.AllEvents for a catch-all).
func (c *Connection) RegisterEventCallback(kind transport.EventKind, handler transport.EventHandler) {
	release, _ := c.eventMu.Lock(context.Background())
	defer release()
	c.eventBus.Register(kind, handler)
}

// ExcludeSubject suppresses delivery of received messages whose subjects
// match pattern; it does not affect Publish.
func (c *Connection) ExcludeSubject(pattern string) {
	c.exclusions.Exclude(pattern)
}

// RemoveExcludedSubject re-enables delivery of received messages matching
// pattern.
func (c *Connection) RemoveExcludedSubject(pattern string) bool {
	return c.exclusions.RemoveExcluded(pattern)
}

func callbackIdentity(cb callback.Callback) uintptr {
	return reflect.ValueOf(cb).Pointer()
}

// exposeReplies resolves gmsec-expose-replies together with its older
// gmsec-req-resp-behavior spelling: either one naming "legacy"/"expose"
// behavior makes replies claimed by the correlator also visible to
// ordinary Subscribe callbacks and Receive, instead of being swallowed.
func exposeReplies(cfg message.Config) bool {
	if cfg.BoolValue("gmsec-expose-replies", false) {
		return true
	}
	switch strings.ToUpper(cfg.GetWithDefault("gmsec-req-resp-behavior", "")) {
	case "LEGACY", "EXPOSE":
		return true
	default:
		return false
	}
}

func msgBinSubjects(cfg message.Config) []string {
	var patterns []string
	for i := 1; ; i++ {
		key := fmt.Sprintf("gmsec-msg-bin-subject.%d", i)
		v, ok := cfg[key]
		if !ok {
			break
		}
		patterns = append(patterns, v)
	}
	return patterns
}

// applyTrackingToggles resolves the master "tracking" switch plus each
// individual "tracking-*" switch into the Injector's Track* fields. A
// field's own key, if set, always wins; otherwise it falls back to the
// master switch, which itself defaults to on.
func applyTrackingToggles(tracker *tracking.Injector, cfg message.Config) {
	master := cfg.BoolValue("tracking", true)

	tracker.TrackNode = trackingToggle(cfg, "tracking-node", master)
	tracker.TrackProcessID = trackingToggle(cfg, "tracking-process-id", master)
	tracker.TrackUserName = trackingToggle(cfg, "tracking-user-name", master)
	tracker.TrackConnectionID = trackingToggle(cfg, "tracking-connection-id", master)
	tracker.TrackPublishTime = trackingToggle(cfg, "tracking-publish-time", master)
	tracker.TrackUniqueID = trackingToggle(cfg, "tracking-unique-id", master)
	tracker.TrackMWInfo = trackingToggle(cfg, "tracking-mw-info", master)
	tracker.TrackActiveSubscriptions = trackingToggle(cfg, "tracking-active-subscriptions", master)
	tracker.TrackConnectionEndpoint = trackingToggle(cfg, "tracking-connection-endpoint", master)
}

// trackingToggle reads an on/off/unset config value: "unset" is any value
// (including absence) that doesn't parse as a recognized boolean, and
// defers to master.
func trackingToggle(cfg message.Config, key string, master bool) bool {
	v, ok := cfg[key]
	if !ok {
		return master
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return master
	}
}

func parseIntDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func parseDurationDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

