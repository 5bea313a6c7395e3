package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

func TestMessageFieldOrderingAndCoercion(t *testing.T) {
	m := message.New("GMSEC.TEST.PUB", message.Publish)
	m.AddFieldValue("A", int32(1))
	m.AddFieldValue("B", "hello")
	m.AddFieldValue("C", true)

	fields := m.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "A", fields[0].Name)
	assert.Equal(t, "B", fields[1].Name)
	assert.Equal(t, "C", fields[2].Name)

	replaced := m.AddFieldValue("A", int32(2))
	assert.True(t, replaced, "adding a second value under a name already in use must report replaced = true")
	fields = m.Fields()
	require.Len(t, fields, 3, "re-adding an existing field must not change field count or order")
	assert.Equal(t, "A", fields[0].Name)
	v, err := fields[0].I64Value()
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestAddFieldReportsReplaced(t *testing.T) {
	m := message.New("GMSEC.TEST.PUB", message.Publish)

	replaced := m.AddField(message.NewStringField("X", "v1"))
	assert.False(t, replaced, "the first add under a new name is not a replacement")

	replaced = m.AddField(message.NewStringField("X", "v2"))
	assert.True(t, replaced, "the second add under the same name replaces the first")

	f, ok := m.GetField("X")
	require.True(t, ok)
	assert.Equal(t, "v2", f.StringValue())
}

func TestMessageClearField(t *testing.T) {
	m := message.New("GMSEC.TEST.PUB", message.Publish)
	m.AddFieldValue("A", int32(1))
	m.AddFieldValue("B", int32(2))

	assert.True(t, m.ClearField("A"))
	assert.False(t, m.ClearField("A"))
	assert.Equal(t, 1, m.FieldCount())
	assert.Equal(t, "B", m.Fields()[0].Name)
}

func TestMessageCloneIsIndependent(t *testing.T) {
	m := message.New("GMSEC.TEST.PUB", message.Publish)
	m.AddFieldValue("A", int32(1))
	m.SetMeta("correlation", "abc")

	clone := m.Clone()
	clone.AddFieldValue("B", int32(2))

	assert.Equal(t, 1, m.FieldCount())
	assert.Equal(t, 2, clone.FieldCount())

	_, ok := clone.Meta("correlation")
	assert.True(t, ok)
}

func TestMessageMetaNeverSerialized(t *testing.T) {
	m := message.New("GMSEC.TEST.PUB", message.Publish)
	m.SetMeta("reply-subject", "GMSEC.REPLY.1")
	m.AddFieldValue("A", int32(1))

	data, err := m.ToXML()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "reply-subject")
	assert.NotContains(t, string(data), "GMSEC.REPLY.1")
}
