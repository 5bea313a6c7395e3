package tracking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/tracking"
)

func TestInsertStripSymmetry(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2018, "conn-1", "loopback", "in-process")

	m := message.New("GMSEC.TEST.TRACK", message.Publish)
	m.AddFieldValue("PAYLOAD", int32(1))

	added := inj.Insert(m, []string{"GMSEC.TEST.>"})
	assert.Greater(t, len(added), 0)
	_, ok := m.GetField(tracking.FieldNode)
	assert.True(t, ok)
	_, ok = m.GetField(tracking.FieldUniqueID)
	assert.True(t, ok)

	inj.Strip(m, added)
	assert.Equal(t, 1, m.FieldCount())
	_, ok = m.GetField("PAYLOAD")
	assert.True(t, ok)
}

func TestInsertDoesNotOverwriteCallerFields(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2018, "conn-1", "loopback", "in-process")

	m := message.New("GMSEC.TEST.TRACK", message.Publish)
	m.AddField(message.NewStringField(tracking.FieldNode, "caller-supplied"))

	added := inj.Insert(m, nil)
	for _, name := range added {
		assert.NotEqual(t, tracking.FieldNode, name, "NODE was already present and must not be re-added")
	}

	f, _ := m.GetField(tracking.FieldNode)
	assert.Equal(t, "caller-supplied", f.StringValue())
}

func TestProcessIDWraparoundSpec2016(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2016, "conn-1", "loopback", "in-process")
	inj.ProcessID = 40000 // exceeds int16 range, must wrap to negative

	m := message.New("GMSEC.TEST.PID", message.Publish)
	inj.Insert(m, nil)

	f, ok := m.GetField(tracking.FieldProcessID)
	require.True(t, ok)
	assert.Equal(t, message.FieldTypeI16, f.Type)

	v, err := tracking.ParseProcessID(f)
	require.NoError(t, err)
	assert.Equal(t, int64(int16(40000)), v)
	assert.Less(t, v, int64(0), "40000 must wrap to a negative int16")
}

func TestProcessIDSpec2018UsesU32(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2018, "conn-1", "loopback", "in-process")
	inj.ProcessID = 40000

	m := message.New("GMSEC.TEST.PID", message.Publish)
	inj.Insert(m, nil)

	f, ok := m.GetField(tracking.FieldProcessID)
	require.True(t, ok)
	assert.Equal(t, message.FieldTypeU32, f.Type)

	v, err := tracking.ParseProcessID(f)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), v)
}

func TestInsertLessFieldsSuppressesSubscriptionTracking(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2018, "conn-1", "loopback", "in-process")
	inj.LessFields = true

	m := heartbeatMessage()
	added := inj.Insert(m, []string{"GMSEC.A.>", "GMSEC.B.>"})

	_, ok := m.GetField(tracking.FieldNumSubscriptions)
	assert.False(t, ok)
	_, ok = m.GetField(tracking.SubscriptionField(1))
	assert.False(t, ok)
	for _, name := range added {
		assert.NotEqual(t, tracking.FieldNumSubscriptions, name)
	}
}

func heartbeatMessage() *message.Message {
	m := message.New("GMSEC.TEST.HB", message.Publish)
	m.AddField(message.NewStringField("MESSAGE-SUBTYPE", "HB"))
	return m
}

func TestInsertOrdinaryMessageNeverCarriesEndpointOrSubscriptionFields(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2018, "conn-1", "loopback", "in-process")

	m := message.New("GMSEC.TEST.TRACK", message.Publish)
	inj.Insert(m, []string{"GMSEC.A.>"})

	_, ok := m.GetField(tracking.FieldMWConnectionEndpoint)
	assert.False(t, ok, "MW-CONNECTION-ENDPOINT is restricted to heartbeat messages")
	_, ok = m.GetField(tracking.FieldNumSubscriptions)
	assert.False(t, ok, "NUM-OF-SUBSCRIPTIONS is restricted to heartbeat messages")
}

func TestInsertHeartbeatSpec2018CarriesEndpointAndSubscriptionFields(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2018, "conn-1", "loopback", "in-process")

	m := heartbeatMessage()
	inj.Insert(m, []string{"GMSEC.A.>"})

	_, ok := m.GetField(tracking.FieldMWConnectionEndpoint)
	assert.True(t, ok)
	_, ok = m.GetField(tracking.FieldNumSubscriptions)
	assert.True(t, ok)
}

func TestInsertHeartbeatSpec2016NeverCarriesEndpointOrSubscriptionFields(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2016, "conn-1", "loopback", "in-process")

	m := heartbeatMessage()
	inj.Insert(m, []string{"GMSEC.A.>"})

	_, ok := m.GetField(tracking.FieldMWConnectionEndpoint)
	assert.False(t, ok, "spec 2016 predates tracking of the endpoint/subscription fields entirely")
	_, ok = m.GetField(tracking.FieldNumSubscriptions)
	assert.False(t, ok)
}

func TestInsertLegacyAPIUsesLegacyEndpointFieldName(t *testing.T) {
	inj := tracking.NewInjector(tracking.Spec2018, "conn-1", "loopback", "in-process")
	inj.LegacyAPI = true

	m := heartbeatMessage()
	inj.Insert(m, nil)

	_, ok := m.GetField(tracking.FieldMWConnectionEndpoint)
	assert.False(t, ok)
	f, ok := m.GetField(tracking.FieldConnectionEndpointLegacy)
	assert.True(t, ok)
	assert.Equal(t, "in-process", f.StringValue())
}
