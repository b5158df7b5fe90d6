package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-api-accounts/internal/domain"
	jwtinfra "github.com/go-api-accounts/internal/infrastructure/jwt"
	"github.com/go-api-accounts/internal/pkg/id"
	pkgpassword "github.com/go-api-accounts/internal/pkg/password"
	pkgtoken "github.com/go-api-accounts/internal/pkg/token"
	"github.com/go-api-accounts/internal/pkg/validate"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// VerifyOTPResult is returned once an OTP challenge is confirmed.
type VerifyOTPResult struct {
	AccessToken string
	Account     *domain.Account
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) error
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResult, error)
	Login(ctx context.Context, req LoginRequest) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	DeleteAccount(ctx context.Context, bearerToken string) error
}

type accountStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, accountID string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Save(ctx context.Context, a *domain.Account) error
	Delete(ctx context.Context, a *domain.Account) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

type otpGenerator interface {
	Generate() (string, error)
}

type tokenIssuer interface {
	Sign(subjectID, purpose string, ttl time.Duration) (string, error)
	Verify(token, purpose string) (string, error)
}

type notifier interface {
	DeliverOTP(ctx context.Context, email, code string) error
	DeliverResetLink(ctx context.Context, email, token string) error
}

type locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type service struct {
	accounts  accountStore
	hasher    passwordHasher
	otp       otpGenerator
	tokens    tokenIssuer
	notifier  notifier
	locker    locker
	now       func() time.Time
	otpTTL    time.Duration
	resetTTL  time.Duration
	accessTTL time.Duration

	dummyOnce sync.Once
	dummyHash string
}

type ServiceDeps struct {
	Accounts       accountStore
	Hasher         passwordHasher
	OTP            otpGenerator
	Tokens         tokenIssuer
	Notifier       notifier
	Locker         locker
	Now            func() time.Time // defaults to time.Now
	OTPTTL         time.Duration
	ResetTokenTTL  time.Duration
	AccessTokenTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts:  deps.Accounts,
		hasher:    deps.Hasher,
		otp:       deps.OTP,
		tokens:    deps.Tokens,
		notifier:  deps.Notifier,
		locker:    deps.Locker,
		now:       func() time.Time { return now().UTC() },
		otpTTL:    deps.OTPTTL,
		resetTTL:  deps.ResetTokenTTL,
		accessTTL: deps.AccessTokenTTL,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) error {
	email := domain.NormalizeEmail(req.Email)
	if err := validate.Email(email); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrInvalidInput)
	}
	if err := validate.Password(req.Password); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrInvalidInput)
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return fmt.Errorf("register: %w", domain.ErrDuplicateEmail)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return internal("register: find account", err)
	}

	hash, err := s.hashPassword("register", req.Password)
	if err != nil {
		return err
	}
	code, err := s.otp.Generate()
	if err != nil {
		return internal("register", err)
	}

	now := s.now()
	a := &domain.Account{
		AccountID:    id.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	a.IssueOTP(code, now.Add(s.otpTTL))
	if err := s.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return fmt.Errorf("register: %w", domain.ErrDuplicateEmail)
		}
		return internal("register: create account", err)
	}
	slog.Info("account registered", "account_id", a.AccountID)

	// The account exists either way; the caller can request a new code by logging in.
	if err := s.notifier.DeliverOTP(ctx, email, code); err != nil {
		slog.Warn("registration otp not delivered", "account_id", a.AccountID, "err", err)
	}
	return nil
}

func (s *service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResult, error) {
	a, unlock, err := s.lockByEmail(ctx, domain.NormalizeEmail(req.Email), domain.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	defer unlock()

	now := s.now()
	if err := a.ConfirmOTP(req.OTP, now); err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	a.UpdatedAt = now
	if err := s.accounts.Save(ctx, a); err != nil {
		return nil, internal("verify otp: save account", err)
	}
	unlock()

	token, err := s.tokens.Sign(a.AccountID, jwtinfra.PurposeAccess, s.accessTTL)
	if err != nil {
		return nil, internal("verify otp: sign access token", err)
	}
	slog.Info("otp verified", "account_id", a.AccountID)
	return &VerifyOTPResult{AccessToken: token, Account: a}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) error {
	found, err := s.accounts.FindByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return internal("login: find account", err)
		}
		// Spend the same hashing work as a real check.
		s.hasher.Verify(req.Password, s.dummy())
		return fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	match := s.hasher.Verify(req.Password, found.PasswordHash)
	if !found.IsVerified {
		return fmt.Errorf("login: %w", domain.ErrNotVerified)
	}
	if !match {
		return fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}

	code, err := s.otp.Generate()
	if err != nil {
		return internal("login", err)
	}

	a, unlock, err := s.lockByID(ctx, found.AccountID, domain.ErrInvalidCredentials)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer unlock()
	// The password may have been reset since it was checked.
	if a.PasswordHash != found.PasswordHash {
		return fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}

	now := s.now()
	a.IssueOTP(code, now.Add(s.otpTTL))
	a.UpdatedAt = now
	if err := s.accounts.Save(ctx, a); err != nil {
		return internal("login: save account", err)
	}
	unlock()

	if err := s.notifier.DeliverOTP(ctx, a.Email, code); err != nil {
		return internal("login: deliver otp", err)
	}
	return nil
}

func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	found, err := s.accounts.FindByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return internal("forgot password: find account", err)
	}

	token, err := s.tokens.Sign(found.AccountID, jwtinfra.PurposeReset, s.resetTTL)
	if err != nil {
		return internal("forgot password: sign reset token", err)
	}
	hash := pkgtoken.Hash(token)

	a, unlock, err := s.lockByID(ctx, found.AccountID, domain.ErrNotFound)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("forgot password: %w", err)
	}
	previous := a.IssueResetToken(hash)
	a.UpdatedAt = s.now()
	err = s.accounts.Save(ctx, a)
	unlock()
	if err != nil {
		return internal("forgot password: save account", err)
	}

	if err := s.notifier.DeliverResetLink(ctx, a.Email, token); err != nil {
		s.rollbackReset(ctx, a.AccountID, hash, previous)
		if !errors.Is(err, domain.ErrDeliveryFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
		}
		return fmt.Errorf("forgot password: %w", err)
	}
	return nil
}

// rollbackReset restores the reset token that was current before hash was
// issued, unless hash has already been consumed or superseded.
func (s *service) rollbackReset(ctx context.Context, accountID, hash, previous string) {
	ctx = context.WithoutCancel(ctx)
	a, unlock, err := s.lockByID(ctx, accountID, domain.ErrNotFound)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("reset token rollback failed", "account_id", accountID, "err", err)
		}
		return
	}
	defer unlock()
	if a.PendingResetToken != hash {
		return
	}
	a.PendingResetToken = previous
	a.UpdatedAt = s.now()
	if err := s.accounts.Save(ctx, a); err != nil {
		slog.Error("reset token rollback failed", "account_id", accountID, "err", err)
	}
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate.Password(req.NewPassword); err != nil {
		return fmt.Errorf("%s: %w", err, domain.ErrInvalidInput)
	}
	accountID, err := s.tokens.Verify(req.Token, jwtinfra.PurposeReset)
	if err != nil {
		return fmt.Errorf("reset password: %w", domain.ErrInvalidOrExpiredToken)
	}
	hash, err := s.hashPassword("reset password", req.NewPassword)
	if err != nil {
		return err
	}

	a, unlock, err := s.lockByID(ctx, accountID, domain.ErrInvalidOrExpiredToken)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	defer unlock()

	if err := a.ResetPassword(pkgtoken.Hash(req.Token), hash); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	a.UpdatedAt = s.now()
	if err := s.accounts.Save(ctx, a); err != nil {
		return internal("reset password: save account", err)
	}
	slog.Info("password reset", "account_id", a.AccountID)
	return nil
}

func (s *service) DeleteAccount(ctx context.Context, bearerToken string) error {
	if bearerToken == "" {
		return fmt.Errorf("delete account: missing token: %w", domain.ErrUnauthorized)
	}
	accountID, err := s.tokens.Verify(bearerToken, jwtinfra.PurposeAccess)
	if err != nil {
		return fmt.Errorf("delete account: %w", domain.ErrUnauthorized)
	}

	a, unlock, err := s.lockByID(ctx, accountID, domain.ErrNotFound)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	defer unlock()

	if err := s.accounts.Delete(ctx, a); err != nil {
		return internal("delete account", err)
	}
	slog.Info("account deleted", "account_id", a.AccountID)
	return nil
}

// lockByEmail resolves email to an account id, then behaves like lockByID.
// hashPassword reports a password the hasher cannot take as invalid input.
func (s *service) hashPassword(op, password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, pkgpassword.ErrTooLong) {
		return "", fmt.Errorf("%s: %w", err, domain.ErrInvalidInput)
	}
	if err != nil {
		return "", internal(op+": hash password", err)
	}
	return hash, nil
}

func (s *service) lockByEmail(ctx context.Context, email string, notFound error) (*domain.Account, func(), error) {
	found, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, storeErr("find account", err, notFound)
	}
	return s.lockByID(ctx, found.AccountID, notFound)
}

// lockByID takes the per-account lock and reads the account fresh under it.
// A missing account is reported as notFound. The returned unlock func is
// safe to call more than once.
func (s *service) lockByID(ctx context.Context, accountID string, notFound error) (*domain.Account, func(), error) {
	release, err := s.locker.Lock(ctx, accountID)
	if err != nil {
		return nil, nil, internal("lock account", err)
	}
	var once sync.Once
	unlock := func() { once.Do(release) }

	a, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		unlock()
		return nil, nil, storeErr("find account", err, notFound)
	}
	return a, unlock, nil
}

// dummy returns a hash used to equalize timing when an account is absent.
func (s *service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(id.New())
		if err != nil {
			slog.Warn("could not build timing hash", "err", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func storeErr(op string, err, notFound error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return internal(op, err)
}

func internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrInternal, err)
}
