package plaid

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plaid/plaid-go/v41/plaid"
)

var ErrWebhookUnverified = errors.New("plaid webhook failed verification")

const webhookMaxAge = 5 * time.Minute

type webhookClaims struct {
	RequestBodySHA256 string `json:"request_body_sha256"`
	jwt.RegisteredClaims
}

// webhookVerifier checks the Plaid-Verification JWT against the body it
// signs. Verification keys are fetched by kid and cached until they expire.
type webhookVerifier struct {
	fetch func(ctx context.Context, kid string) (*plaid.JWKPublicKey, error)
	now   func() time.Time

	mu   sync.Mutex
	keys map[string]*plaid.JWKPublicKey
}

func newWebhookVerifier(fetch func(ctx context.Context, kid string) (*plaid.JWKPublicKey, error)) *webhookVerifier {
	return &webhookVerifier{fetch: fetch, now: time.Now, keys: make(map[string]*plaid.JWKPublicKey)}
}

// VerifyWebhook checks token, the Plaid-Verification header, against body.
func (s *Service) VerifyWebhook(ctx context.Context, body []byte, token string) error {
	return s.verifier.verify(ctx, body, token)
}

func (s *Service) verificationKey(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	resp, _, err := s.api.PlaidApi.WebhookVerificationKeyGet(ctx).
		WebhookVerificationKeyGetRequest(*plaid.NewWebhookVerificationKeyGetRequest(kid)).
		Execute()
	if err != nil {
		return nil, err
	}
	key := resp.GetKey()
	return &key, nil
}

func (v *webhookVerifier) verify(ctx context.Context, body []byte, token string) error {
	if token == "" {
		return fmt.Errorf("%w: missing Plaid-Verification header", ErrWebhookUnverified)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(v.now),
	)

	var claims webhookClaims
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		jwk, err := v.key(ctx, kid)
		if err != nil {
			return nil, err
		}
		return ecdsaKey(jwk)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookUnverified, err)
	}

	if claims.IssuedAt == nil || v.now().Sub(claims.IssuedAt.Time) > webhookMaxAge {
		return fmt.Errorf("%w: token older than %s", ErrWebhookUnverified, webhookMaxAge)
	}

	sum := sha256.Sum256(body)
	got := hex.EncodeToString(sum[:])
	want := strings.ToLower(claims.RequestBodySHA256)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return fmt.Errorf("%w: body hash mismatch", ErrWebhookUnverified)
	}
	return nil
}

func (v *webhookVerifier) key(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	v.mu.Lock()
	cached, ok := v.keys[kid]
	v.mu.Unlock()
	if ok && !v.expired(cached) {
		return cached, nil
	}

	jwk, err := v.fetch(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("fetch verification key: %w", err)
	}
	if v.expired(jwk) {
		return nil, fmt.Errorf("verification key %s expired", kid)
	}

	v.mu.Lock()
	v.keys[kid] = jwk
	v.mu.Unlock()
	return jwk, nil
}

func (v *webhookVerifier) expired(jwk *plaid.JWKPublicKey) bool {
	exp := jwk.GetExpiredAt()
	return exp != 0 && v.now().Unix() >= int64(exp)
}

func ecdsaKey(jwk *plaid.JWKPublicKey) (*ecdsa.PublicKey, error) {
	if jwk == nil || jwk.Kty != "EC" || jwk.Crv != "P-256" || jwk.X == "" || jwk.Y == "" {
		return nil, errors.New("unsupported verification key")
	}
	x, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}
