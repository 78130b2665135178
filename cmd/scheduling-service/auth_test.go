package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arafat-hossain/barberbook/libs/auth"
)

func TestRequireAuthRewritesIdentityHeaders(t *testing.T) {
	const secret = "test-secret"

	var gotUser, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-Id")
		gotRole = r.Header.Get("X-Role")
		w.WriteHeader(http.StatusOK)
	})
	protected := requireAuth(next, secret, nil)

	token, err := auth.SignHS256(auth.Claims{
		Sub:  "cust-1",
		Role: auth.RoleCustomer,
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	// Spoofed headers must be replaced by the token's claims.
	req.Header.Set("X-User-Id", "attacker")
	req.Header.Set("X-Role", "admin")

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUser != "cust-1" || gotRole != auth.RoleCustomer {
		t.Fatalf("identity = %s/%s, want cust-1/customer", gotUser, gotRole)
	}
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	protected := requireAuth(next, "test-secret", nil)

	for name, header := range map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not.a.jwt",
		"wrong secret": "Bearer " + mustSign(t, "other-secret"),
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}

func mustSign(t *testing.T, secret string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "cust-1",
		Role: auth.RoleCustomer,
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
