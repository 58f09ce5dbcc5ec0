package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relay/internal/auth"
	"relay/internal/domain"
	"relay/internal/service"

	"github.com/google/uuid"
)

func callerEcho(t *testing.T) (http.Handler, *service.Caller) {
	t.Helper()
	var captured service.Caller
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.CallerFrom(r.Context())
		if !ok {
			t.Errorf("caller missing from context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		captured = c
		w.WriteHeader(http.StatusOK)
	})
	return h, &captured
}

func TestVerifierAcceptsSignedToken(t *testing.T) {
	const secret = "test-secret"
	verifier := auth.NewVerifier(secret, "relay-test")
	signer := auth.NewSigner(secret, "relay-test")

	userID := uuid.New()
	token, err := signer.Mint(userID, domain.RoleProvider, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	inner, captured := callerEcho(t)
	srv := httptest.NewServer(verifier.Middleware(inner))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if captured.UserID != userID || captured.Role != domain.RoleProvider {
		t.Fatalf("unexpected caller: %+v", captured)
	}
}

func TestVerifierRejects(t *testing.T) {
	verifier := auth.NewVerifier("right-secret", "relay-test")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run for rejected tokens")
	})
	srv := httptest.NewServer(verifier.Middleware(inner))
	defer srv.Close()

	cases := map[string]string{
		"missing token": "",
		"wrong secret":  mustMint(t, auth.NewSigner("wrong-secret", "relay-test"), domain.RolePatient),
		"bad issuer":    mustMint(t, auth.NewSigner("right-secret", "someone-else"), domain.RolePatient),
		"bad role":      mustMint(t, auth.NewSigner("right-secret", "relay-test"), domain.UserRole("admin")),
	}

	for name, token := range cases {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: request: %v", name, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, resp.StatusCode)
		}
	}
}

func mustMint(t *testing.T, signer *auth.Signer, role domain.UserRole) string {
	t.Helper()
	token, err := signer.Mint(uuid.New(), role, time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return token
}
