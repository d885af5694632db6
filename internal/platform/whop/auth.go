package whop

import (
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
)

const (
	HeaderUserToken = "x-whop-user-token"
	HeaderCompanyID = "x-whop-company-id"

	DefaultIssuer = "urn:whopcom:exp-proxy"
)

type AuthConfig struct {
	// PublicKeyPEM verifies ES256 user tokens minted by the Whop app proxy.
	PublicKeyPEM string `yaml:"-"`
	Issuer       string `yaml:"issuer"`
	// Audience is the Whop app id; empty skips the audience check.
	Audience string        `yaml:"audience"`
	Leeway   time.Duration `yaml:"leeway"`
	// DevUserID is returned for unauthenticated requests when set. Only wired
	// in development.
	DevUserID string `yaml:"-"`
}

type Identity struct {
	UserID string
	Dev    bool
}

type TokenVerifier struct {
	key    *ecdsa.PublicKey
	parser *jwt.Parser
	devID  string
}

func NewTokenVerifier(cfg AuthConfig) (*TokenVerifier, error) {
	v := &TokenVerifier{devID: strings.TrimSpace(cfg.DevUserID)}
	pemText := strings.TrimSpace(strings.ReplaceAll(cfg.PublicKeyPEM, `\n`, "\n"))
	if pemText == "" {
		if v.devID == "" {
			return nil, fmt.Errorf("missing WHOP_JWT_PUBLIC_KEY")
		}
		return v, nil
	}
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("parse whop public key: %w", err)
	}
	v.key = key

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if aud := strings.TrimSpace(cfg.Audience); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// Verify resolves the calling Whop user from request headers.
func (v *TokenVerifier) Verify(h http.Header) (Identity, error) {
	raw := tokenFromHeaders(h)
	if raw == "" || v.key == nil {
		if v.devID != "" {
			return Identity{UserID: v.devID, Dev: true}, nil
		}
		return Identity{}, fmt.Errorf("%w: missing user token", pkgerrors.ErrUnauthorized)
	}
	claims := jwt.RegisteredClaims{}
	tok, err := v.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil || tok == nil || !tok.Valid {
		if v.devID != "" {
			return Identity{UserID: v.devID, Dev: true}, nil
		}
		return Identity{}, fmt.Errorf("%w: invalid user token: %v", pkgerrors.ErrUnauthorized, err)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: token missing sub", pkgerrors.ErrUnauthorized)
	}
	return Identity{UserID: sub}, nil
}

func tokenFromHeaders(h http.Header) string {
	if t := strings.TrimSpace(h.Get(HeaderUserToken)); t != "" {
		return t
	}
	auth := strings.TrimSpace(h.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
