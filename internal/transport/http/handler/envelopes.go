package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-api-accounts/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// LoginEnvelope is returned once the password check passed and a 2FA code is on its way.
type LoginEnvelope struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// VerifyEnvelope wraps a confirmed OTP challenge.
type VerifyEnvelope struct {
	Message     string       `json:"message"`
	AccessToken string       `json:"access_token"`
	Account     *AccountView `json:"account"`
}

// AccountView is the public projection of an account. Secrets never leave the service.
type AccountView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	Created    time.Time `json:"created"`
}

type HealthEnvelope struct {
	Status string `json:"status"`
}

type IndexEnvelope struct {
	Message         string            `json:"message"`
	Version         string            `json:"version"`
	AvailableRoutes map[string]string `json:"available_routes"`
}

func toAccountView(a *domain.Account) *AccountView {
	if a == nil {
		return nil
	}
	return &AccountView{ID: a.AccountID, Email: a.Email, IsVerified: a.IsVerified, Created: a.CreatedAt}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: code})
}
