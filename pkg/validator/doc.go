/*
Package validator provides input validation with custom validation rules.

This package wraps go-playground/validator with one additional custom
validation:
  - subject: GMSEC subject syntax (also available as IsValidSubject)

Usage:

	import "github.com/chris-alexander-pop/gmsec-bus/pkg/validator"

	v := validator.New()

	// Validate struct
	err := v.ValidateStruct(myStruct)

	// Validate single value
	err := v.ValidateVar(email, "required,email")
*/
package validator
