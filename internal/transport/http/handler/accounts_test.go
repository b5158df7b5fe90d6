package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-api-accounts/internal/application/auth"
	"github.com/go-api-accounts/internal/domain"
	"github.com/go-api-accounts/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Register(ctx context.Context, req auth.RegisterRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) VerifyOTP(ctx context.Context, req auth.VerifyOTPRequest) (*auth.VerifyOTPResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*auth.VerifyOTPResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Login(ctx context.Context, req auth.LoginRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) ForgotPassword(ctx context.Context, req auth.ForgotPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) DeleteAccount(ctx context.Context, bearerToken string) error {
	return m.Called(ctx, bearerToken).Error(0)
}

// --- helpers ---

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func post(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// --- Register ---

func TestRegister_Created(t *testing.T) {
	svc := new(mockAuthSvc)
	req := auth.RegisterRequest{Email: "a@x.io", Password: "Abcdefg1"}
	svc.On("Register", mock.Anything, req).Return(nil)

	rr := post(t, NewAccountHandler(svc).Register, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Registration successful. Please verify OTP.", decodeBody(t, rr)["message"])
	svc.AssertExpectations(t)
}

func TestRegister_BadBody(t *testing.T) {
	svc := new(mockAuthSvc)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	NewAccountHandler(svc).Register(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_input", decodeBody(t, rr)["error_code"])
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_MissingField(t *testing.T) {
	svc := new(mockAuthSvc)
	rr := post(t, NewAccountHandler(svc).Register, map[string]string{"email": "a@x.io"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "invalid_input", body["error_code"])
	assert.Contains(t, body["error"], "Password")
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_PolicyMessage(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Register", mock.Anything, mock.Anything).
		Return(fmt.Errorf("password must contain a digit: %w", domain.ErrInvalidInput))

	rr := post(t, NewAccountHandler(svc).Register, auth.RegisterRequest{Email: "a@x.io", Password: "Abcdefgh"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "password must contain a digit", body["error"])
	assert.Equal(t, "invalid_input", body["error_code"])
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("register: %w", domain.ErrDuplicateEmail), http.StatusConflict, "duplicate_email"},
		{fmt.Errorf("x: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("x: %w", domain.ErrInvalidCredentials), http.StatusUnauthorized, "invalid_credentials"},
		{fmt.Errorf("x: %w", domain.ErrNotVerified), http.StatusForbidden, "not_verified"},
		{fmt.Errorf("x: %w", domain.ErrInvalidOTP), http.StatusBadRequest, "invalid_otp"},
		{fmt.Errorf("x: %w", domain.ErrInvalidOrExpiredToken), http.StatusBadRequest, "invalid_or_expired_token"},
		{fmt.Errorf("x: %w", domain.ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("x: %w: smtp down", domain.ErrDeliveryFailure), http.StatusServiceUnavailable, "delivery_failure"},
		{fmt.Errorf("x: %w: %w", domain.ErrInternal, errors.New("dynamo: secret detail")), http.StatusInternalServerError, "internal_error"},
		{errors.New("unclassified"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rr := httptest.NewRecorder()
			httpError(rr, tc.err)

			assert.Equal(t, tc.status, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tc.code, body["error_code"])
			assert.NotContains(t, body["error"], "secret detail")
			assert.NotContains(t, body["error"], "smtp down")
		})
	}
}

// --- VerifyOTP ---

func TestVerifyOTP_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	acct := &domain.Account{AccountID: "acc-1", Email: "a@x.io", IsVerified: true, PasswordHash: "secret-hash", CreatedAt: created}
	req := auth.VerifyOTPRequest{Email: "a@x.io", OTP: "123456"}
	svc.On("VerifyOTP", mock.Anything, req).Return(&auth.VerifyOTPResult{AccessToken: "tok", Account: acct}, nil)

	rr := post(t, NewAccountHandler(svc).VerifyOTP, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
	body := decodeBody(t, rr)
	assert.Equal(t, "Email verified successfully", body["message"])
	assert.Equal(t, "tok", body["access_token"])
	account := body["account"].(map[string]interface{})
	assert.Equal(t, "acc-1", account["id"])
	assert.Equal(t, true, account["is_verified"])
}

func TestVerifyOTP_UnknownEmailLooksLikeBadCode(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("VerifyOTP", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("verify otp: %w", domain.ErrNotFound))

	rr := post(t, NewAccountHandler(svc).VerifyOTP, auth.VerifyOTPRequest{Email: "ghost@x.io", OTP: "123456"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_otp", decodeBody(t, rr)["error_code"])
}

// --- Login / ForgotPassword / ResetPassword ---

func TestLogin_Pending2FA(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything).Return(nil)

	rr := post(t, NewAccountHandler(svc).Login, auth.LoginRequest{Email: "a@x.io", Password: "Abcdefg1"})

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Please verify OTP to complete login", body["message"])
	assert.Equal(t, "pending_2fa", body["status"])
}

func TestLogin_NotVerified(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything).Return(fmt.Errorf("login: %w", domain.ErrNotVerified))

	rr := post(t, NewAccountHandler(svc).Login, auth.LoginRequest{Email: "a@x.io", Password: "Abcdefg1"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestForgotPassword_SameResponse(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ForgotPassword", mock.Anything, mock.Anything).Return(nil)

	rr := post(t, NewAccountHandler(svc).ForgotPassword, auth.ForgotPasswordRequest{Email: "whoever@x.io"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "If the email exists, a reset link has been sent", decodeBody(t, rr)["message"])
}

func TestResetPassword(t *testing.T) {
	svc := new(mockAuthSvc)
	good := auth.ResetPasswordRequest{Token: "good", NewPassword: "Newpass12"}
	bad := auth.ResetPasswordRequest{Token: "bad", NewPassword: "Newpass12"}
	svc.On("ResetPassword", mock.Anything, good).Return(nil)
	svc.On("ResetPassword", mock.Anything, bad).Return(fmt.Errorf("reset password: %w", domain.ErrInvalidOrExpiredToken))
	h := NewAccountHandler(svc)

	rr := post(t, h.ResetPassword, good)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Password reset successful", decodeBody(t, rr)["message"])

	rr = post(t, h.ResetPassword, bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_or_expired_token", decodeBody(t, rr)["error_code"])
}

// --- DeleteAccount ---

func TestDeleteAccount(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("DeleteAccount", mock.Anything, "tok").Return(nil)
	svc.On("DeleteAccount", mock.Anything, "stale").Return(fmt.Errorf("delete account: %w", domain.ErrUnauthorized))
	h := middleware.RequireBearer(http.HandlerFunc(NewAccountHandler(svc).DeleteAccount))

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Account deleted successfully", decodeBody(t, rr)["message"])

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, rr)["error_code"])

	svc.AssertExpectations(t)
}
