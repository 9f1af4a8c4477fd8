package auth

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Parsing and signature errors surfaced by Verify.
var (
	ErrInvalidMessage    = fmt.Errorf("invalid sign-in message")
	ErrInvalidSignature  = fmt.Errorf("invalid signature")
	ErrSignatureMismatch = fmt.Errorf("signature does not match the stated address")
	ErrMessageExpired    = fmt.Errorf("sign-in message expired")
)

// SignInMessage is a parsed EIP-4361 "Sign-In with Ethereum" message. Only
// the fields this service acts on are retained.
type SignInMessage struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime time.Time

	raw string
}

// ParseSignInMessage parses the plain-text EIP-4361 layout. The first line
// names the domain, the second the account, then a blank line, an optional
// statement, and "Key: value" fields.
func ParseSignInMessage(raw string) (*SignInMessage, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, ErrInvalidMessage
	}

	const suffix = " wants you to sign in with your Ethereum account:"
	if !strings.HasSuffix(lines[0], suffix) {
		return nil, ErrInvalidMessage
	}
	msg := &SignInMessage{
		Domain:  strings.TrimSuffix(lines[0], suffix),
		Address: strings.TrimSpace(lines[1]),
		raw:     raw,
	}
	if !common.IsHexAddress(msg.Address) {
		return nil, ErrInvalidMessage
	}

	for _, line := range lines[2:] {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			if trimmed := strings.TrimSpace(line); trimmed != "" && msg.Statement == "" {
				msg.Statement = trimmed
			}
			continue
		}
		switch key {
		case "URI":
			msg.URI = value
		case "Version":
			msg.Version = value
		case "Chain ID":
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, ErrInvalidMessage
			}
			msg.ChainID = id
		case "Nonce":
			msg.Nonce = value
		case "Issued At":
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, ErrInvalidMessage
			}
			msg.IssuedAt = ts
		case "Expiration Time":
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, ErrInvalidMessage
			}
			msg.ExpirationTime = ts
		}
	}

	if msg.Nonce == "" {
		return nil, ErrInvalidMessage
	}
	return msg, nil
}

// RecoverAddress recovers the signing account from a personal-message
// signature over the raw message text.
func RecoverAddress(raw, signature string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	// Wallets return V as 27/28, SigToPub expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(personalHash(raw), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// personalHash applies the EIP-191 personal-message envelope.
func personalHash(msg string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}
