package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-api-accounts/internal/domain"
)

type errorResponse struct {
	status  int
	message string
}

var errorResponses = map[string]errorResponse{
	"invalid_input":            {http.StatusBadRequest, "Invalid input"},
	"duplicate_email":          {http.StatusConflict, "Email already registered"},
	"not_found":                {http.StatusNotFound, "Account not found"},
	"invalid_credentials":      {http.StatusUnauthorized, "Invalid credentials"},
	"not_verified":             {http.StatusForbidden, "Email not verified"},
	"invalid_otp":              {http.StatusBadRequest, "Invalid or expired OTP"},
	"invalid_or_expired_token": {http.StatusBadRequest, "Invalid or expired token"},
	"unauthorized":             {http.StatusUnauthorized, "Unauthorized"},
	"delivery_failure":         {http.StatusServiceUnavailable, "Failed to send email, please try again later"},
	"internal_error":           {http.StatusInternalServerError, "internal server error"},
}

// httpError maps a service error to its status code and public message.
// Only invalid input echoes the error text, with the sentinel suffix trimmed.
func httpError(w http.ResponseWriter, err error) {
	kind := domain.Kind(err)
	resp, ok := errorResponses[kind]
	if !ok {
		kind, resp = "internal_error", errorResponses["internal_error"]
	}
	switch kind {
	case "internal_error", "delivery_failure":
		slog.Error("request failed", "kind", kind, "err", err)
	case "invalid_input":
		if msg := strings.TrimSuffix(err.Error(), ": "+domain.ErrInvalidInput.Error()); msg != err.Error() {
			resp.message = msg
		}
	}
	writeError(w, resp.status, kind, resp.message)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "invalid_input", msg)
}
