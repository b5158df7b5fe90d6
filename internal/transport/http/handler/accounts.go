package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-api-accounts/internal/application/auth"
	"github.com/go-api-accounts/internal/domain"
	"github.com/go-api-accounts/internal/pkg/validate"
	"github.com/go-api-accounts/internal/transport/http/middleware"
)

// AccountHandler exposes the account lifecycle over HTTP.
type AccountHandler struct {
	svc auth.Service
}

func NewAccountHandler(svc auth.Service) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		badRequest(w, err.Error())
		return false
	}
	return true
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Register(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "Registration successful. Please verify OTP."})
}

func (h *AccountHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		// Unknown addresses look like a bad code.
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.ErrInvalidOTP
		}
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Message:     "Email verified successfully",
		AccessToken: result.AccessToken,
		Account:     toAccountView(result.Account),
	})
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Login(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{Message: "Please verify OTP to complete login", Status: "pending_2fa"})
}

func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "If the email exists, a reset link has been sent"})
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password reset successful"})
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerFromContext(r.Context())
	if err := h.svc.DeleteAccount(r.Context(), token); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Account deleted successfully"})
}
