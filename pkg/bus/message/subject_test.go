package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
)

func TestMatchSubject(t *testing.T) {
	cases := []struct {
		pattern, subject string
		want             bool
	}{
		{"GMSEC.MISSION.SAT1.MSG.TLMPKT", "GMSEC.MISSION.SAT1.MSG.TLMPKT", true},
		{"GMSEC.MISSION.SAT1.MSG.TLMPKT", "GMSEC.MISSION.SAT1.MSG.CMDPKT", false},
		{"GMSEC.*.SAT1.MSG.TLMPKT", "GMSEC.MISSION.SAT1.MSG.TLMPKT", true},
		{"GMSEC.*.SAT1.MSG.TLMPKT", "GMSEC.MISSION.SAT1.SAT1.MSG.TLMPKT", false},
		{"GMSEC.MISSION.SAT1.>", "GMSEC.MISSION.SAT1.MSG.TLMPKT", true},
		{"GMSEC.MISSION.SAT1.>", "GMSEC.MISSION.SAT1", false},
		{"GMSEC.MISSION.>", "GMSEC.MISSION.SAT1.MSG.TLMPKT.EXTRA", true},
		{"GMSEC.MISSION.SAT1.MSG.TLMPKT", "GMSEC.MISSION.SAT1.MSG.TLMPKT.EXTRA", false},
	}

	for _, tc := range cases {
		got := message.MatchSubject(tc.pattern, tc.subject)
		assert.Equalf(t, tc.want, got, "pattern %q vs subject %q", tc.pattern, tc.subject)
	}
}
