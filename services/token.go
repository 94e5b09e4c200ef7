package services

import (
	"fmt"
	"os"
	"strings"
)

const (
	defaultTokenNamespace = "racehub"
	tokenMarkerCheckin    = "checkin"
	tokenMarkerCompanion  = "companion"
)

// TokenService derives scan tokens. Tokens are deterministic over
// (event, principal): re-minting for the same principal always yields the
// same string, which keeps issuance idempotent.
//
// Formats:
//
//	<namespace>:checkin:<eventID>:<userID>
//	<namespace>:checkin:<eventID>:companion:<companionID>
type TokenService struct {
	Namespace string
}

func NewTokenService() *TokenService {
	ns := os.Getenv("TOKEN_NAMESPACE")
	if ns == "" {
		ns = defaultTokenNamespace
	}
	return &TokenService{Namespace: ns}
}

// MintUser returns the scan token for an account-holding participant.
func (t *TokenService) MintUser(eventID, externalUserID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", t.Namespace, tokenMarkerCheckin, eventID, externalUserID)
}

// MintCompanion returns the scan token for a companion.
func (t *TokenService) MintCompanion(eventID, companionID string) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", t.Namespace, tokenMarkerCheckin, eventID, tokenMarkerCompanion, companionID)
}

// TokenClaims is the decoded form of a scan token. Exactly one of
// ExternalUserID / CompanionID is set.
type TokenClaims struct {
	EventID        string
	ExternalUserID string
	CompanionID    string
}

// Decode parses a raw scanned string. A wrong namespace or marker yields
// ErrInvalidToken; Decode never touches the database.
func (t *TokenService) Decode(raw string) (*TokenClaims, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 4 || parts[0] != t.Namespace || parts[1] != tokenMarkerCheckin {
		return nil, ErrInvalidToken
	}

	switch len(parts) {
	case 4:
		if parts[2] == "" || parts[3] == "" {
			return nil, ErrInvalidToken
		}
		return &TokenClaims{EventID: parts[2], ExternalUserID: parts[3]}, nil
	case 5:
		if parts[3] != tokenMarkerCompanion || parts[2] == "" || parts[4] == "" {
			return nil, ErrInvalidToken
		}
		return &TokenClaims{EventID: parts[2], CompanionID: parts[4]}, nil
	}
	return nil, ErrInvalidToken
}
