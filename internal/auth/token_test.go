package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/chepyr/task-boards/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	userID := uuid.New()

	token, err := m.Issue(userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := m.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got != userID {
		t.Errorf("Authenticate = %s, want %s", got, userID)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	userID := uuid.New().String()
	future := time.Now().Add(time.Hour).Unix()

	expired := NewTokenManager(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue(uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-00"), jwt.MapClaims{"sub": userID, "exp": future})},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{"sub": userID, "exp": future})},
		{"missing exp", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": userID})},
		{"missing sub", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"exp": future})},
		{"sub is not a uuid", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "alice@example.com", "exp": future})},
		{"expired", expiredToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Authenticate(tt.token); !errors.Is(err, models.ErrUnauthenticated) {
				t.Fatalf("want ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestPasswords(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("short password: want ErrInvalidInput, got %v", err)
	}

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash equals the password")
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("CheckPassword with the right password: %v", err)
	}
	if err := CheckPassword(hash, "battery staple"); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("wrong password: want ErrUnauthenticated, got %v", err)
	}
}
