package whop

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
)

func testKeyPair(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return priv, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func signToken(t *testing.T, priv *ecdsa.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestTokenVerifierAcceptsValidToken(t *testing.T) {
	priv, pub := testKeyPair(t)
	v, err := NewTokenVerifier(AuthConfig{PublicKeyPEM: pub, Audience: "app_1"})
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	tok := signToken(t, priv, jwt.RegisteredClaims{
		Subject:   "user_abc",
		Issuer:    DefaultIssuer,
		Audience:  jwt.ClaimStrings{"app_1"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	h := http.Header{}
	h.Set(HeaderUserToken, tok)
	id, err := v.Verify(h)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != "user_abc" || id.Dev {
		t.Fatalf("unexpected identity: %+v", id)
	}

	bearer := http.Header{}
	bearer.Set("Authorization", "Bearer "+tok)
	if _, err := v.Verify(bearer); err != nil {
		t.Fatalf("Verify bearer: %v", err)
	}
}

func TestTokenVerifierRejects(t *testing.T) {
	priv, pub := testKeyPair(t)
	other, _ := testKeyPair(t)
	v, err := NewTokenVerifier(AuthConfig{PublicKeyPEM: pub, Audience: "app_1"})
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	base := jwt.RegisteredClaims{
		Subject:   "user_abc",
		Issuer:    DefaultIssuer,
		Audience:  jwt.ClaimStrings{"app_1"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := base
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongAud := base
	wrongAud.Audience = jwt.ClaimStrings{"app_2"}

	cases := map[string]string{
		"expired":   signToken(t, priv, expired),
		"audience":  signToken(t, priv, wrongAud),
		"signature": signToken(t, other, base),
		"garbage":   "not-a-token",
		"missing":   "",
	}
	for name, tok := range cases {
		h := http.Header{}
		if tok != "" {
			h.Set(HeaderUserToken, tok)
		}
		if _, err := v.Verify(h); !errors.Is(err, pkgerrors.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

func TestTokenVerifierDevFallback(t *testing.T) {
	v, err := NewTokenVerifier(AuthConfig{DevUserID: "user_dev"})
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	id, err := v.Verify(http.Header{})
	if err != nil || id.UserID != "user_dev" || !id.Dev {
		t.Fatalf("unexpected dev identity: %+v %v", id, err)
	}
	if _, err := NewTokenVerifier(AuthConfig{}); err == nil {
		t.Fatalf("expected error without key or dev user")
	}
}
