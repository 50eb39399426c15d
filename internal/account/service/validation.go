package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ysamarin/postline/backend/internal/common/constants"
	userrepo "github.com/ysamarin/postline/backend/internal/user/repository"
)

// FieldErrors maps request fields to the list of validation messages
// collected for them. All violated fields are reported together.
type FieldErrors map[string][]string

func (fe FieldErrors) add(field, message string) {
	fe[field] = append(fe[field], message)
}

type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, messages := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(messages, "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}

const (
	msgRequired         = "This field is required."
	msgUsernameInvalid  = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	msgNotUnique        = "This field must be unique."
	msgPasswordNumeric  = "This password is entirely numeric."
	msgPasswordCommon   = "This password is too common."
	msgPasswordMismatch = "Password fields didn't match."
	msgMaxLength        = "Ensure this field has no more than %d characters."
)

var usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}@.+_-]+$`)

// fieldCheck is one validator in a field's ordered pipeline. It returns the
// violation message, or "" when the value passes.
type fieldCheck func(ctx context.Context, in RegisterInput) (message string, err error)

// RegisterValidator runs the registration pipelines: a tag-driven presence
// pass first, then the ordered per-field checks. Everything is collected
// before returning, except checks that depend on fields rejected by the
// presence pass.
type RegisterValidator struct {
	validate          *validator.Validate
	users             userrepo.Repository
	passwordMinLength int
}

func NewRegisterValidator(users userrepo.Repository, passwordMinLength int) *RegisterValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &RegisterValidator{
		validate:          v,
		users:             users,
		passwordMinLength: passwordMinLength,
	}
}

func (rv *RegisterValidator) Validate(ctx context.Context, in RegisterInput) (FieldErrors, error) {
	fieldErrors := FieldErrors{}

	missing := map[string]bool{}
	if err := rv.validate.Struct(in); err != nil {
		var invalid validator.ValidationErrors
		if !errors.As(err, &invalid) {
			return nil, err
		}
		for _, fe := range invalid {
			fieldErrors.add(fe.Field(), msgRequired)
			missing[fe.Field()] = true
		}
	}

	pipelines := []struct {
		field  string
		checks []fieldCheck
	}{
		{"username", []fieldCheck{
			maxLengthCheck(func(in RegisterInput) string { return in.Username }, constants.UsernameMaxLength),
			rv.checkUsernameCharset,
			rv.checkUsernameUnique,
		}},
		{"email", []fieldCheck{
			maxLengthCheck(func(in RegisterInput) string { return in.Email }, constants.EmailMaxLength),
			rv.checkEmailUnique,
		}},
		{"first_name", []fieldCheck{
			maxLengthCheck(func(in RegisterInput) string { return in.FirstName }, constants.NameMaxLength),
		}},
		{"last_name", []fieldCheck{
			maxLengthCheck(func(in RegisterInput) string { return in.LastName }, constants.NameMaxLength),
		}},
		{"password", []fieldCheck{
			rv.checkPasswordMaxBytes,
			rv.checkPasswordLength,
			rv.checkPasswordNotNumeric,
			rv.checkPasswordNotCommon,
			rv.checkPasswordSimilarity,
		}},
	}

	for _, p := range pipelines {
		if missing[p.field] {
			continue
		}
		for _, check := range p.checks {
			message, err := check(ctx, in)
			if err != nil {
				return nil, err
			}
			if message != "" {
				fieldErrors.add(p.field, message)
			}
		}
	}

	// The cross-field match check needs both password fields present.
	if !missing["password"] && !missing["password2"] && in.Password != in.Password2 {
		fieldErrors.add("password", msgPasswordMismatch)
	}

	if len(fieldErrors) > 0 {
		return fieldErrors, nil
	}
	return nil, nil
}

func maxLengthCheck(value func(RegisterInput) string, limit int) fieldCheck {
	return func(_ context.Context, in RegisterInput) (string, error) {
		if len([]rune(value(in))) > limit {
			return fmt.Sprintf(msgMaxLength, limit), nil
		}
		return "", nil
	}
}

func (rv *RegisterValidator) checkUsernameCharset(_ context.Context, in RegisterInput) (string, error) {
	if !usernameRegex.MatchString(in.Username) {
		return msgUsernameInvalid, nil
	}
	return "", nil
}

func (rv *RegisterValidator) checkUsernameUnique(ctx context.Context, in RegisterInput) (string, error) {
	exists, err := rv.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return "", err
	}
	if exists {
		return msgNotUnique, nil
	}
	return "", nil
}

func (rv *RegisterValidator) checkEmailUnique(ctx context.Context, in RegisterInput) (string, error) {
	exists, err := rv.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return "", err
	}
	if exists {
		return msgNotUnique, nil
	}
	return "", nil
}

// checkPasswordMaxBytes counts bytes, not runes; bcrypt rejects inputs past
// 72 bytes, so the cap has to surface as a field error instead of a hashing
// failure.
func (rv *RegisterValidator) checkPasswordMaxBytes(_ context.Context, in RegisterInput) (string, error) {
	if len(in.Password) > constants.PasswordMaxLength {
		return fmt.Sprintf(msgMaxLength, constants.PasswordMaxLength), nil
	}
	return "", nil
}

func (rv *RegisterValidator) checkPasswordLength(_ context.Context, in RegisterInput) (string, error) {
	if len(in.Password) < rv.passwordMinLength {
		return fmt.Sprintf(
			"This password is too short. It must contain at least %d characters.",
			rv.passwordMinLength,
		), nil
	}
	return "", nil
}

func (rv *RegisterValidator) checkPasswordNotNumeric(_ context.Context, in RegisterInput) (string, error) {
	for _, r := range in.Password {
		if r < '0' || r > '9' {
			return "", nil
		}
	}
	return msgPasswordNumeric, nil
}

func (rv *RegisterValidator) checkPasswordNotCommon(_ context.Context, in RegisterInput) (string, error) {
	if _, common := commonPasswords[strings.ToLower(in.Password)]; common {
		return msgPasswordCommon, nil
	}
	return "", nil
}

func (rv *RegisterValidator) checkPasswordSimilarity(_ context.Context, in RegisterInput) (string, error) {
	attributes := []struct {
		value   string
		verbose string
	}{
		{in.Username, "username"},
		{in.Email, "email address"},
		{in.FirstName, "first name"},
		{in.LastName, "last name"},
	}

	password := strings.ToLower(in.Password)
	for _, attr := range attributes {
		if attr.value == "" {
			continue
		}
		parts := splitAttribute(attr.value)
		for _, part := range parts {
			if quickRatio(password, strings.ToLower(part)) >= similarityThreshold {
				return fmt.Sprintf("The password is too similar to the %s.", attr.verbose), nil
			}
		}
	}
	return "", nil
}

const similarityThreshold = 0.7

var nonWordRegex = regexp.MustCompile(`\W+`)

func splitAttribute(value string) []string {
	parts := nonWordRegex.Split(value, -1)
	out := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return append(out, value)
}

// quickRatio approximates sequence similarity from character frequency
// overlap: 2*matches / (len(a)+len(b)).
func quickRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	counts := map[rune]int{}
	for _, r := range b {
		counts[r]++
	}

	matches := 0
	for _, r := range a {
		if counts[r] > 0 {
			counts[r]--
			matches++
		}
	}

	return 2 * float64(matches) / float64(len([]rune(a))+len([]rune(b)))
}
