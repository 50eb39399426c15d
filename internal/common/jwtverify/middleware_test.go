package jwtverify

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ysamarin/postline/backend/internal/common/logger"
)

const testSecret = "test-secret-key-at-least-32-bytes-long!"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": "user-123",
		"usr": "testuser",
		"jti": "jti-1",
		"iat": now.Unix(),
		"exp": now.Add(30 * time.Minute).Unix(),
	}
}

func setupMiddleware(t *testing.T) (http.Handler, *Claims) {
	t.Helper()

	log, err := logger.New("", "test", "CRITICAL")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}

	var seen Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok {
			t.Error("expected claims in context")
		}
		seen = claims
		w.WriteHeader(http.StatusOK)
	})

	return Middleware(testSecret, log)(next), &seen
}

func TestMiddleware_ValidToken(t *testing.T) {
	handler, seen := setupMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen.UserID != "user-123" || seen.Username != "testuser" || seen.JTI != "jti-1" {
		t.Errorf("unexpected claims: %+v", seen)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	missingSub := validClaims()
	delete(missingSub, "sub")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signToken(t, "another-secret-also-32-bytes-long!!!", validClaims())},
		{"expired", "Bearer " + signToken(t, testSecret, expired)},
		{"missing sub claim", "Bearer " + signToken(t, testSecret, missingSub)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler, _ := setupMiddleware(t)

			req := httptest.NewRequest(http.MethodGet, "/api/user/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected uniform 401, got %d", rec.Code)
			}
		})
	}
}
