package service

import (
	"context"
	"strings"
	"testing"
)

func setupValidator(t *testing.T) (*RegisterValidator, *mockUserRepo) {
	t.Helper()
	users := &mockUserRepo{}
	return NewRegisterValidator(users, 8), users
}

func TestRegisterValidator_ValidInput(t *testing.T) {
	rv, _ := setupValidator(t)

	fieldErrors, err := rv.Validate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fieldErrors != nil {
		t.Fatalf("expected no field errors, got %v", fieldErrors)
	}
}

func TestRegisterValidator_AllFieldsMissing(t *testing.T) {
	rv, _ := setupValidator(t)

	fieldErrors, err := rv.Validate(context.Background(), RegisterInput{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, field := range []string{"username", "email", "password", "password2", "first_name", "last_name"} {
		messages, ok := fieldErrors[field]
		if !ok {
			t.Errorf("expected %s to be reported missing", field)
			continue
		}
		if len(messages) != 1 || messages[0] != msgRequired {
			t.Errorf("expected %q for %s, got %v", msgRequired, field, messages)
		}
	}
}

func TestRegisterValidator_CollectsAllViolations(t *testing.T) {
	rv, users := setupValidator(t)
	users.existsByUsernameFunc = func(ctx context.Context, username string) (bool, error) {
		return true, nil
	}
	users.existsByEmailFunc = func(ctx context.Context, email string) (bool, error) {
		return true, nil
	}

	in := validInput()
	in.Password = "short"
	in.Password2 = "short"

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := fieldErrors["username"]; len(got) != 1 || got[0] != msgNotUnique {
		t.Errorf("expected username uniqueness error, got %v", got)
	}
	if got := fieldErrors["email"]; len(got) != 1 || got[0] != msgNotUnique {
		t.Errorf("expected email uniqueness error, got %v", got)
	}
	if got := fieldErrors["password"]; len(got) == 0 {
		t.Error("expected password length error to be collected alongside uniqueness errors")
	}
}

func TestRegisterValidator_UsernameCharset(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Username = "bad name!"

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := fieldErrors["username"]; len(got) != 1 || got[0] != msgUsernameInvalid {
		t.Errorf("expected charset error, got %v", got)
	}
}

func TestRegisterValidator_UsernameAllowsSpecialChars(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Username = "user.name+tag@host_1-x"

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := fieldErrors["username"]; len(got) != 0 {
		t.Errorf("expected @ . + - _ to be accepted, got %v", got)
	}
}

func TestRegisterValidator_PasswordTooShort(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Password = "abcxyz9"
	in.Password2 = "abcxyz9"

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := fieldErrors["password"]
	if len(got) != 1 || !strings.Contains(got[0], "too short") {
		t.Errorf("expected short-password error, got %v", got)
	}
}

func TestRegisterValidator_PasswordEntirelyNumeric(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Password = "73152846900147"
	in.Password2 = "73152846900147"

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := fieldErrors["password"]
	if len(got) != 1 || got[0] != msgPasswordNumeric {
		t.Errorf("expected numeric-password error, got %v", got)
	}
}

func TestRegisterValidator_PasswordTooCommon(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Password = "Password123"
	in.Password2 = "Password123"

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := fieldErrors["password"]
	if len(got) != 1 || got[0] != msgPasswordCommon {
		t.Errorf("expected common-password error, got %v", got)
	}
}

func TestRegisterValidator_PasswordSimilarToUsername(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Username = "frederick_holmes"
	in.Password = "frederick_holmes1"
	in.Password2 = "frederick_holmes1"

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := fieldErrors["password"]
	if len(got) != 1 || !strings.Contains(got[0], "too similar to the username") {
		t.Errorf("expected similarity error, got %v", got)
	}
}

func TestRegisterValidator_PasswordMismatch(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Password2 = "different-password"

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := fieldErrors["password"]
	if len(got) != 1 || got[0] != msgPasswordMismatch {
		t.Errorf("expected mismatch error on the password field, got %v", got)
	}
	if _, ok := fieldErrors["password2"]; ok {
		t.Error("mismatch must be attached to password, not password2")
	}
}

func TestRegisterValidator_MismatchSkippedWhenConfirmationMissing(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Password2 = ""

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := fieldErrors["password2"]; len(got) != 1 || got[0] != msgRequired {
		t.Errorf("expected required error on password2, got %v", got)
	}
	for _, msg := range fieldErrors["password"] {
		if msg == msgPasswordMismatch {
			t.Error("mismatch check must be skipped when the confirmation is absent")
		}
	}
}

func TestRegisterValidator_FieldMaxLengths(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Username = strings.Repeat("a", 151)
	in.FirstName = strings.Repeat("b", 151)

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := fieldErrors["username"]; len(got) == 0 || !strings.Contains(got[0], "no more than 150") {
		t.Errorf("expected max-length error on username, got %v", got)
	}
	if got := fieldErrors["first_name"]; len(got) != 1 || !strings.Contains(got[0], "no more than 150") {
		t.Errorf("expected max-length error on first_name, got %v", got)
	}
}

func TestRegisterValidator_PasswordOverBcryptLimit(t *testing.T) {
	rv, _ := setupValidator(t)

	in := validInput()
	in.Password = strings.Repeat("x", 73) + "9"
	in.Password2 = in.Password

	fieldErrors, err := rv.Validate(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := fieldErrors["password"]; len(got) == 0 || !strings.Contains(got[0], "no more than 72") {
		t.Errorf("expected max-length error on password, got %v", got)
	}
}

func TestQuickRatio(t *testing.T) {
	if got := quickRatio("abc", "abc"); got != 1 {
		t.Errorf("identical strings should score 1, got %f", got)
	}
	if got := quickRatio("abc", "xyz"); got != 0 {
		t.Errorf("disjoint strings should score 0, got %f", got)
	}
	if got := quickRatio("", "abc"); got != 0 {
		t.Errorf("empty input should score 0, got %f", got)
	}
}
