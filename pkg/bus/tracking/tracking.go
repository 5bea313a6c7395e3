// Package tracking implements the TrackingFieldInjector: the NODE /
// PROCESS-ID / USER-NAME / CONNECTION-ID / PUBLISH-TIME / UNIQUE-ID /
// MW-INFO fields stamped onto every outgoing message, plus the
// MW-CONNECTION-ENDPOINT / NUM-OF-SUBSCRIPTIONS /
// SUBSCRIPTION.n.SUBJECT-PATTERN fields stamped only onto heartbeat
// messages under spec 2018 and later; all of them are stripped again once
// the driver has accepted the message.
package tracking

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

// MessageSpec selects which historical tracking-field encoding to use.
// This is load-bearing: ground systems built against the 2016 message
// specification still expect PROCESS-ID encoded as a (possibly negative)
// I16, and "fixing" that for newer deployments would break round-trip
// compatibility with them.
type MessageSpec int

const (
	Spec2016 MessageSpec = iota
	Spec2018
)

const (
	FieldNode                 = "NODE"
	FieldProcessID            = "PROCESS-ID"
	FieldUserName             = "USER-NAME"
	FieldConnectionID         = "CONNECTION-ID"
	FieldPublishTime          = "PUBLISH-TIME"
	FieldUniqueID             = "UNIQUE-ID"
	FieldMWInfo               = "MW-INFO"
	FieldMWConnectionEndpoint = "MW-CONNECTION-ENDPOINT"
	// FieldConnectionEndpointLegacy is the 2018-draft schema-level-0
	// spelling of FieldMWConnectionEndpoint, emitted instead of the 2019+
	// name when a Connection is configured for legacy-API compatibility.
	FieldConnectionEndpointLegacy = "CONNECTION-ENDPOINT"
	FieldNumSubscriptions         = "NUM-OF-SUBSCRIPTIONS"

	// fieldC2CXSubtype and fieldMessageSubtype carry the message subtype
	// used to detect heartbeats: C2CX-SUBTYPE predates the 2019 message
	// specification, which renamed it to MESSAGE-SUBTYPE.
	fieldC2CXSubtype    = "C2CX-SUBTYPE"
	fieldMessageSubtype = "MESSAGE-SUBTYPE"
	heartbeatSubtype    = "HB"
)

// isHeartbeat reports whether msg is a heartbeat message, i.e. it carries a
// C2CX-SUBTYPE or MESSAGE-SUBTYPE field (case-insensitive) equal to "HB".
func isHeartbeat(msg *message.Message) bool {
	for _, name := range [...]string{fieldMessageSubtype, fieldC2CXSubtype} {
		if f, ok := msg.GetField(name); ok && strings.EqualFold(f.StringValue(), heartbeatSubtype) {
			return true
		}
	}
	return false
}

// SubscriptionField builds the SUBSCRIPTION.<n>.SUBJECT-PATTERN field name
// for the n'th (1-based) active subscription.
func SubscriptionField(n int) string {
	return fmt.Sprintf("SUBSCRIPTION.%d.SUBJECT-PATTERN", n)
}

// Injector stamps and strips tracking fields for one Connection. Each
// Track* field mirrors one of the "tracking-*" configuration keys and
// defaults to enabled; NewInjector leaves them all true, and the owning
// Connection flips individual ones off per the resolved "tracking"/
// "tracking-*" config values.
type Injector struct {
	Spec         MessageSpec
	ConnectionID string
	MWInfo       string
	Endpoint     string
	Node         string
	UserName     string
	ProcessID    int

	TrackNode                bool
	TrackProcessID           bool
	TrackUserName            bool
	TrackConnectionID        bool
	TrackPublishTime         bool
	TrackUniqueID            bool
	TrackMWInfo              bool
	TrackActiveSubscriptions bool
	TrackConnectionEndpoint  bool

	// LegacyAPI, if true, stamps the 2018-draft CONNECTION-ENDPOINT spelling
	// instead of MW-CONNECTION-ENDPOINT (the "gmsec-support-legacy-api"
	// config key).
	LegacyAPI bool

	// UsePerfLogger, if true, forces PUBLISH-TIME to be stamped even when
	// TrackPublishTime is off, matching m_usePerfLogger's effect on the
	// original tracking logic: performance logging needs the timestamp
	// regardless of what the tracking-publish-time toggle says.
	UsePerfLogger bool

	// LessFields, if true, suppresses the subscription-pattern fields,
	// reducing the heartbeat payload on bandwidth-constrained links. No
	// configuration key sets it; callers set the field directly.
	LessFields bool

	// uniqueCounter numbers the UNIQUE-ID values this Injector generates,
	// which take the form <ConnectionID>_<n>.
	uniqueCounter atomic.Uint64
}

// NewInjector fills Node/UserName/ProcessID from the OS environment and
// enables every Track* toggle; the owning Connection disables individual
// ones afterward per its resolved config.
func NewInjector(spec MessageSpec, connectionID, mwInfo, endpoint string) *Injector {
	node, _ := os.Hostname()
	userName := "unknown"
	if u, err := user.Current(); err == nil {
		userName = u.Username
	}

	return &Injector{
		Spec:         spec,
		ConnectionID: connectionID,
		MWInfo:       mwInfo,
		Endpoint:     endpoint,
		Node:         node,
		UserName:     userName,
		ProcessID:    os.Getpid(),

		TrackNode:                true,
		TrackProcessID:           true,
		TrackUserName:            true,
		TrackConnectionID:        true,
		TrackPublishTime:         true,
		TrackUniqueID:            true,
		TrackMWInfo:              true,
		TrackActiveSubscriptions: true,
		TrackConnectionEndpoint:  true,
	}
}

// Insert stamps msg with tracking fields, returning the names it added so
// Strip can remove exactly those fields (never more: a field the caller
// set explicitly before Insert is never overwritten if already present,
// except PUBLISH-TIME, which is always refreshed).
func (inj *Injector) Insert(msg *message.Message, subscriptionPatterns []string) []string {
	var added []string

	setIfAbsent := func(name string, build func() *message.Field) {
		if _, exists := msg.GetField(name); exists {
			return
		}
		msg.AddField(build())
		added = append(added, name)
	}

	if inj.TrackNode {
		setIfAbsent(FieldNode, func() *message.Field { return message.NewStringField(FieldNode, inj.Node).WithHeader(true) })
	}
	if inj.TrackProcessID {
		setIfAbsent(FieldProcessID, inj.processIDField)
	}
	if inj.TrackUserName {
		setIfAbsent(FieldUserName, func() *message.Field { return message.NewStringField(FieldUserName, inj.UserName).WithHeader(true) })
	}
	if inj.TrackConnectionID {
		setIfAbsent(FieldConnectionID, func() *message.Field {
			return message.NewStringField(FieldConnectionID, inj.ConnectionID).WithHeader(true)
		})
	}
	if inj.TrackMWInfo {
		setIfAbsent(FieldMWInfo, func() *message.Field { return message.NewStringField(FieldMWInfo, inj.MWInfo).WithHeader(true) })
	}

	// MW-CONNECTION-ENDPOINT (or its 2018-draft CONNECTION-ENDPOINT spelling
	// under gmsec-support-legacy-api) is restricted to heartbeat messages
	// under spec version 2018+, matching InternalConnection's tracking
	// logic: ordinary PUBLISH/REQUEST/REPLY traffic never carries it.
	if inj.TrackConnectionEndpoint && inj.Spec >= Spec2018 && isHeartbeat(msg) {
		endpointField := FieldMWConnectionEndpoint
		if inj.LegacyAPI {
			endpointField = FieldConnectionEndpointLegacy
		}
		setIfAbsent(endpointField, func() *message.Field {
			return message.NewStringField(endpointField, inj.Endpoint).WithHeader(true)
		})
	}

	// PUBLISH-TIME is always refreshed, even on a republished request,
	// since it reflects the wall-clock moment this specific send left the
	// Connection, unless tracking-publish-time is off and no performance
	// logger is active. UNIQUE-ID is generated once and then left alone: a
	// message's correlation id must stay stable across every Insert call
	// that touches it (ensureReplySubject's initial stamp, then Publish's
	// own Insert on the same message, then every republish), or a pending
	// Request would wait forever for a reply carrying an id it never
	// registered.
	if inj.TrackPublishTime || inj.UsePerfLogger {
		msg.AddField(message.NewStringField(FieldPublishTime, time.Now().UTC().Format("2006-002-15:04:05.000")).WithHeader(true))
		added = appendUnique(added, FieldPublishTime)
	}

	if inj.TrackUniqueID {
		setIfAbsent(FieldUniqueID, func() *message.Field {
			id := fmt.Sprintf("%s_%d", inj.ConnectionID, inj.uniqueCounter.Add(1))
			return message.NewStringField(FieldUniqueID, id).WithHeader(true)
		})
	}

	// NUM-OF-SUBSCRIPTIONS/SUBSCRIPTION.n.SUBJECT-PATTERN share the
	// heartbeat/spec-version gate above: they describe this Connection's
	// active subscriptions and only belong on the periodic heartbeat.
	if inj.TrackActiveSubscriptions && !inj.LessFields && inj.Spec >= Spec2018 && isHeartbeat(msg) {
		if _, exists := msg.GetField(FieldNumSubscriptions); !exists {
			msg.AddField(message.NewU16Field(FieldNumSubscriptions, uint16(len(subscriptionPatterns))).WithHeader(true))
			added = append(added, FieldNumSubscriptions)
			for i, p := range subscriptionPatterns {
				name := SubscriptionField(i + 1)
				msg.AddField(message.NewStringField(name, p).WithHeader(true))
				added = append(added, name)
			}
		}
	}

	return added
}

// Strip removes exactly the fields named, restoring msg to its
// pre-Insert state.
func (inj *Injector) Strip(msg *message.Message, fields []string) {
	for _, f := range fields {
		msg.ClearField(f)
	}
}

// processIDField implements the documented wraparound quirk: message spec
// 2016 stores the OS process id as a truncating I16 (values above 32767
// wrap to negative, matching the original C++ reinterpret_cast behavior);
// 2018+ stores it as a full-width U32.
func (inj *Injector) processIDField() *message.Field {
	if inj.Spec == Spec2016 {
		return message.NewI16Field(FieldProcessID, int16(inj.ProcessID)).WithHeader(true)
	}
	return message.NewU32Field(FieldProcessID, uint32(inj.ProcessID)).WithHeader(true)
}

func appendUnique(s []string, v string) []string {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

// ParseProcessID is exposed for tests pinning the round-trip behavior.
func ParseProcessID(f *message.Field) (int64, error) {
	return f.I64Value()
}
