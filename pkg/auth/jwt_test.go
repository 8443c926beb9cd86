package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTValidator_SignAndValidate(t *testing.T) {
	v := NewJWTValidator("test-secret", "media-sync")

	token, err := v.Sign(jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	claims, err := v.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims["sub"] != "admin" {
		t.Errorf("unexpected claims: %v", claims)
	}
}

func TestJWTValidator_RejectsWrongSecret(t *testing.T) {
	token, err := NewJWTValidator("secret-a", "").Sign(jwt.MapClaims{"sub": "admin"})
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	if _, err := NewJWTValidator("secret-b", "").ValidateToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestJWTValidator_RejectsWrongIssuer(t *testing.T) {
	token, err := NewJWTValidator("test-secret", "someone-else").Sign(jwt.MapClaims{"sub": "admin"})
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	if _, err := NewJWTValidator("test-secret", "media-sync").ValidateToken(token); err == nil {
		t.Fatal("expected wrong issuer to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	v := NewJWTValidator("test-secret", "media-sync")
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs/run", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/run", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := v.Sign(jwt.MapClaims{
			"sub": "admin",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		if err != nil {
			t.Fatalf("Sign() failed: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/run", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})
}
