package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/alanmarkz/promptifi/internal/data"
)

// Session errors surfaced by Verify and SessionFromToken.
var (
	ErrNonceUnknown    = fmt.Errorf("unknown or expired nonce")
	ErrSessionNotFound = fmt.Errorf("session not found")
)

// Session is one authenticated wallet session. Sessions live in the cache
// under the opaque bearer token handed to the client.
type Session struct {
	Token     string    `json:"token"`
	Wallet    string    `json:"wallet"`
	ChainID   int64     `json:"chain_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues sign-in nonces and verifies signed messages into sessions.
type Service struct {
	cache  *data.Cache
	logger zerolog.Logger
}

// NewService creates the auth service over a shared cache.
func NewService(cache *data.Cache, logger zerolog.Logger) *Service {
	return &Service{
		cache:  cache,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// IssueNonce mints a single-use sign-in nonce. The nonce must come back in
// the signed message before it expires.
func (s *Service) IssueNonce(ctx context.Context) (string, error) {
	nonce, err := randomHex(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	key := fmt.Sprintf(data.NonceKeyPattern, nonce)
	if err := s.cache.Set(ctx, key, []byte("issued"), data.NonceTTL); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return nonce, nil
}

// Verify checks a signed sign-in message and, if it holds a live nonce and a
// matching signature, opens a session for the stated wallet. The nonce is
// consumed whether or not verification succeeds past that point.
func (s *Service) Verify(ctx context.Context, message, signature string) (*Session, error) {
	parsed, err := ParseSignInMessage(message)
	if err != nil {
		return nil, err
	}

	nonceKey := fmt.Sprintf(data.NonceKeyPattern, parsed.Nonce)
	stored, err := s.cache.Get(ctx, nonceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to look up nonce: %w", err)
	}
	if stored == nil {
		return nil, ErrNonceUnknown
	}
	if err := s.cache.Delete(ctx, nonceKey); err != nil {
		s.logger.Warn().Err(err).Msg("failed to consume nonce")
	}

	if !parsed.ExpirationTime.IsZero() && time.Now().After(parsed.ExpirationTime) {
		return nil, ErrMessageExpired
	}

	recovered, err := RecoverAddress(parsed.raw, signature)
	if err != nil {
		return nil, err
	}
	if recovered != common.HexToAddress(parsed.Address) {
		return nil, ErrSignatureMismatch
	}

	token, err := randomHex(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	now := time.Now().UTC()
	session := &Session{
		Token:     token,
		Wallet:    recovered.Hex(),
		ChainID:   parsed.ChainID,
		IssuedAt:  now,
		ExpiresAt: now.Add(data.SessionTTL),
	}
	sessionKey := fmt.Sprintf(data.SessionKeyPattern, token)
	if err := s.cache.SetJSON(ctx, sessionKey, session, data.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().Str("wallet", session.Wallet).Msg("wallet signed in")
	return session, nil
}

// SessionFromToken loads the live session behind a bearer token.
func (s *Service) SessionFromToken(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}
	var session Session
	key := fmt.Sprintf(data.SessionKeyPattern, token)
	if err := s.cache.GetJSON(ctx, key, &session); err != nil {
		if err == data.ErrCacheMiss {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// SignOut drops the session behind a bearer token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, fmt.Sprintf(data.SessionKeyPattern, token))
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
