package domain

import "time"

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

func (t TokenType) Valid() bool {
	return t == AccessToken || t == RefreshToken
}

// Claims are the verified contents of an access or refresh token.
type Claims struct {
	Subject   string
	TokenID   string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	RefreshID        string
}

// RevocationEntry marks a refresh token as unusable until ExpiresAt, after
// which the row may be purged.
type RevocationEntry struct {
	TokenID   string
	UserID    string
	ExpiresAt time.Time
	RevokedAt time.Time
}
