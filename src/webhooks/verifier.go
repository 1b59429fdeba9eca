package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"menusync/src/types"

	"github.com/google/uuid"
)

// ErrUnauthorized covers every authentication failure. Callers must not
// tell the client which check failed.
var ErrUnauthorized = errors.New("unauthorized")

// CredentialSource hands out decrypted credentials for one verification.
type CredentialSource interface {
	Reveal(ctx context.Context, tenantID uuid.UUID, service types.Service, credentialType types.CredentialType) (string, error)
}

type Verifier interface {
	Verify(ctx context.Context, header http.Header, body []byte, tenantID uuid.UUID, creds CredentialSource) error
}

// StaticKeyVerifier compares a per-tenant static key carried in one of
// Headers. An Authorization header must use the Bearer scheme.
type StaticKeyVerifier struct {
	Service types.Service
	Headers []string
}

func (v StaticKeyVerifier) presented(header http.Header) string {
	for _, name := range v.Headers {
		val := strings.TrimSpace(header.Get(name))
		if val == "" {
			continue
		}
		if strings.EqualFold(name, "Authorization") {
			scheme, token, ok := strings.Cut(val, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				continue
			}
			val = strings.TrimSpace(token)
		}
		if val != "" {
			return val
		}
	}
	return ""
}

func (v StaticKeyVerifier) Verify(ctx context.Context, header http.Header, _ []byte, tenantID uuid.UUID, creds CredentialSource) error {
	got := v.presented(header)
	if got == "" {
		return ErrUnauthorized
	}
	want, err := creds.Reveal(ctx, tenantID, v.Service, types.CREDENTIAL_API_KEY)
	if err != nil || want == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// HMACVerifier checks a hex HMAC-SHA256 of the raw request body keyed with
// the tenant's webhook secret. A "sha256=" prefix is accepted.
type HMACVerifier struct {
	Service types.Service
	Header  string
}

func (v HMACVerifier) Verify(ctx context.Context, header http.Header, body []byte, tenantID uuid.UUID, creds CredentialSource) error {
	sig := strings.TrimSpace(header.Get(v.Header))
	sig = strings.TrimPrefix(strings.ToLower(sig), "sha256=")
	given, err := hex.DecodeString(sig)
	if err != nil || len(given) != sha256.Size {
		return ErrUnauthorized
	}
	secret, err := creds.Reveal(ctx, tenantID, v.Service, types.CREDENTIAL_WEBHOOK_SECRET)
	if err != nil || secret == "" {
		return ErrUnauthorized
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), given) {
		return ErrUnauthorized
	}
	return nil
}

// AllOf passes only when every verifier passes.
type AllOf []Verifier

func (a AllOf) Verify(ctx context.Context, header http.Header, body []byte, tenantID uuid.UUID, creds CredentialSource) error {
	if len(a) == 0 {
		return ErrUnauthorized
	}
	for _, v := range a {
		if err := v.Verify(ctx, header, body, tenantID, creds); err != nil {
			return ErrUnauthorized
		}
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body, as platforms send it.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
