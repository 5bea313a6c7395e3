package validator_test

import (
	"testing"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/test"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/validator"
)

type SubjectSuite struct {
	*test.Suite
}

func TestSubjectSuite(t *testing.T) {
	test.Run(t, &SubjectSuite{Suite: test.NewSuite()})
}

type SubscriptionPattern struct {
	Subject string `validate:"subject"`
}

func (s *SubjectSuite) TestSubjectValidation() {
	tests := []struct {
		name    string
		subject string
		wantErr bool
	}{
		{"Valid", "GMSEC.MISSION.SAT1.MSG.TLMPKT", false},
		{"ValidWildcardElement", "GMSEC.*.SAT1.MSG.TLMPKT", false},
		{"ValidTrailingWildcard", "GMSEC.MISSION.SAT1.>", false},
		{"Empty", "", true},
		{"TrailingWildcardNotLast", "GMSEC.>.SAT1", true},
		{"IllegalCharacter", "GMSEC.MISSION.SAT#1", true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := validator.New().ValidateStruct(SubscriptionPattern{Subject: tt.subject})
			if tt.wantErr {
				s.Error(err, "expected error for subject: %s", tt.subject)
			} else {
				s.NoError(err, "expected no error for subject: %s", tt.subject)
			}
		})
	}
}
