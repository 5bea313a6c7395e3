package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// subjectElementRegex matches one dot-delimited subject element: letters,
// digits, underscore, or hyphen, plus the two GMSEC wildcards when they
// stand alone in an element.
var subjectElementRegex = regexp.MustCompile(`^([A-Za-z0-9_-]+|\*|>)$`)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("subject", validateSubject)

	return &Validator{
		validate: v,
	}
}

// ValidateStruct validates a struct using tags
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.validate.Struct(s)
}

// ValidateVar validates a single variable against a tag
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

// validateSubject checks a GMSEC-style dot-delimited subject or subject
// pattern: every element matches subjectElementRegex, and a trailing ">"
// (one-or-more wildcard) may only appear as the final element.
func validateSubject(fl validator.FieldLevel) bool {
	return IsValidSubject(fl.Field().String())
}

// IsValidSubject reports whether subject is a syntactically valid GMSEC
// subject or subscription pattern.
func IsValidSubject(subject string) bool {
	if subject == "" {
		return false
	}
	elems := strings.Split(subject, ".")
	for i, e := range elems {
		if !subjectElementRegex.MatchString(e) {
			return false
		}
		if e == ">" && i != len(elems)-1 {
			return false
		}
	}
	return true
}
