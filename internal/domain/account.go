package domain

import (
	"crypto/subtle"
	"strings"
	"time"
)

// Account is the single entity of the authentication lifecycle.
// Email is stored normalized and never changes after creation.
type Account struct {
	AccountID         string      `json:"id" dynamodbav:"account_id"`
	Email             string      `json:"email" dynamodbav:"email"`
	PasswordHash      string      `json:"-" dynamodbav:"password_hash"`
	IsVerified        bool        `json:"is_verified" dynamodbav:"is_verified"`
	PendingOTP        *PendingOTP `json:"-" dynamodbav:"pending_otp,omitempty"`
	PendingResetToken string      `json:"-" dynamodbav:"pending_reset_token,omitempty"` // SHA-256 hex of the issued token
	Version           int64       `json:"-" dynamodbav:"version"`
	CreatedAt         time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time   `json:"updated" dynamodbav:"updated_at"`
}

// PendingOTP is an outstanding one-time passcode challenge.
type PendingOTP struct {
	Code      string    `dynamodbav:"code"`
	ExpiresAt time.Time `dynamodbav:"expires_at"`
}

// NormalizeEmail lower-cases and trims an address so it can be used as a unique key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IssueOTP replaces any outstanding challenge with a new one.
func (a *Account) IssueOTP(code string, expiresAt time.Time) {
	a.PendingOTP = &PendingOTP{Code: code, ExpiresAt: expiresAt}
}

// ConfirmOTP accepts code only if a challenge is pending, unexpired at now, and equal.
// On success the challenge is cleared and the account becomes verified.
func (a *Account) ConfirmOTP(code string, now time.Time) error {
	p := a.PendingOTP
	if p == nil || now.After(p.ExpiresAt) {
		return ErrInvalidOTP
	}
	if subtle.ConstantTimeCompare([]byte(p.Code), []byte(code)) != 1 {
		return ErrInvalidOTP
	}
	a.PendingOTP = nil
	a.IsVerified = true
	return nil
}

// IssueResetToken records tokenHash as the only live reset token and
// returns the hash it replaced.
func (a *Account) IssueResetToken(tokenHash string) (previous string) {
	previous = a.PendingResetToken
	a.PendingResetToken = tokenHash
	return previous
}

// ResetPassword swaps the password hash if tokenHash is the live reset token,
// consuming the token.
func (a *Account) ResetPassword(tokenHash, passwordHash string) error {
	if a.PendingResetToken == "" ||
		subtle.ConstantTimeCompare([]byte(a.PendingResetToken), []byte(tokenHash)) != 1 {
		return ErrInvalidOrExpiredToken
	}
	a.PasswordHash = passwordHash
	a.PendingResetToken = ""
	return nil
}
