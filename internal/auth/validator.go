package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// RegisterRequest is the body of POST /new_user.
type RegisterRequest struct {
	Username  string  `json:"username" validate:"required,min=3,max=30"`
	Password  string  `json:"password" validate:"required,min=6,max=128,password_policy"`
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,max=50"`
	Telegram  *string `json:"telegram" validate:"omitempty,max=64"`
}

// LoginRequest is the body of POST /check_data.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Password string `json:"password" validate:"required,min=6,max=128,password_policy"`
}

// PasswordPolicy decides whether a password is acceptable beyond its length.
type PasswordPolicy func(password string) bool

// DefaultPolicy requires at least one upper-case letter, one lower-case letter and one digit.
func DefaultPolicy(password string) bool {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Validator checks request bodies against field rules and the password policy.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator. A nil policy means DefaultPolicy.
func NewValidator(policy PasswordPolicy) *Validator {
	if policy == nil {
		policy = DefaultPolicy
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// The tag name is constant, registration cannot fail.
	_ = v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
		return policy(fl.Field().String())
	})
	return &Validator{validate: v}
}

// ValidateRegistration validates a registration request.
func (v *Validator) ValidateRegistration(req RegisterRequest) error {
	return describe(v.validate.Struct(req))
}

// ValidateLogin applies the same rules to login credentials.
func (v *Validator) ValidateLogin(req LoginRequest) error {
	return describe(v.validate.Struct(req))
}

// Struct exposes the underlying validator for other payloads.
func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

func describe(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "password_policy":
			msgs = append(msgs, "password must contain an upper-case letter, a lower-case letter and a digit")
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return &ValidationError{Messages: msgs}
}

// ValidationError lists every rule a request broke.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}
