package activesubs_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/activesubs"
)

func TestRegisterThenTopics(t *testing.T) {
	connID := "conn-register-then-topics"
	defer activesubs.DeregisterConnection(connID)

	activesubs.Register(connID, "GMSEC.*.SAT1.MSG.TLMPKT")
	activesubs.Register(connID, "GMSEC.*.SAT1.MSG.LOG")

	got := activesubs.Topics(connID)
	sort.Strings(got)
	assert.Equal(t, []string{"GMSEC.*.SAT1.MSG.LOG", "GMSEC.*.SAT1.MSG.TLMPKT"}, got)
}

func TestDeregisterRemovesSinglePattern(t *testing.T) {
	connID := "conn-deregister-single"
	defer activesubs.DeregisterConnection(connID)

	activesubs.Register(connID, "GMSEC.*.SAT1.MSG.TLMPKT")
	activesubs.Register(connID, "GMSEC.*.SAT1.MSG.LOG")
	activesubs.Deregister(connID, "GMSEC.*.SAT1.MSG.LOG")

	assert.Equal(t, []string{"GMSEC.*.SAT1.MSG.TLMPKT"}, activesubs.Topics(connID))
}

func TestDeregisterLastPatternRemovesConnectionEntirely(t *testing.T) {
	connID := "conn-deregister-last"

	activesubs.Register(connID, "GMSEC.*.SAT1.MSG.TLMPKT")
	activesubs.Deregister(connID, "GMSEC.*.SAT1.MSG.TLMPKT")

	assert.Nil(t, activesubs.Topics(connID))
}

func TestDeregisterConnectionClearsEverything(t *testing.T) {
	connID := "conn-deregister-all"

	activesubs.Register(connID, "GMSEC.*.SAT1.MSG.TLMPKT")
	activesubs.Register(connID, "GMSEC.*.SAT1.MSG.LOG")
	activesubs.DeregisterConnection(connID)

	assert.Nil(t, activesubs.Topics(connID))
}

func TestTopicsForUnknownConnectionIsNil(t *testing.T) {
	assert.Nil(t, activesubs.Topics("conn-never-registered"))
}
