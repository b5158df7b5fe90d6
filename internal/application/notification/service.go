package notification

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-api-accounts/internal/domain"
	"github.com/go-api-accounts/internal/infrastructure/sns"
)

// Event kinds carried on published notifications.
const (
	KindOTP       = "otp"
	KindResetLink = "reset_link"
)

const (
	subjectOTP   = "Your OTP Code"
	subjectReset = "Password Reset Request"
)

type emailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, e sns.Event) error
}

type deliverFunc func(ctx context.Context, kind, to, subject, body string) error

// Gateway renders account notifications and hands them to one transport.
// Every failure it returns wraps domain.ErrDeliveryFailure.
type Gateway struct {
	deliver     deliverFunc
	frontendURL string
	otpTTL      time.Duration
}

// NewEmailGateway delivers notifications directly over SMTP.
func NewEmailGateway(m emailSender, frontendURL string, otpTTL time.Duration) *Gateway {
	return &Gateway{
		deliver: func(ctx context.Context, _, to, subject, body string) error {
			return m.SendEmail(ctx, to, subject, body)
		},
		frontendURL: frontendURL,
		otpTTL:      otpTTL,
	}
}

// NewTopicGateway publishes notifications for an external delivery worker.
func NewTopicGateway(p eventPublisher, frontendURL string, otpTTL time.Duration) *Gateway {
	return &Gateway{
		deliver: func(ctx context.Context, kind, to, subject, body string) error {
			return p.Publish(ctx, sns.Event{Kind: kind, To: to, Subject: subject, Body: body})
		},
		frontendURL: frontendURL,
		otpTTL:      otpTTL,
	}
}

func (g *Gateway) DeliverOTP(ctx context.Context, email, code string) error {
	body := fmt.Sprintf("Your OTP code is: %s. Valid for %s.", code, validity(g.otpTTL))
	if err := g.deliver(ctx, KindOTP, email, subjectOTP, body); err != nil {
		return fmt.Errorf("deliver otp: %w: %w", domain.ErrDeliveryFailure, err)
	}
	return nil
}

func (g *Gateway) DeliverResetLink(ctx context.Context, email, token string) error {
	body := "Click this link to reset your password: " + g.ResetLink(token)
	if err := g.deliver(ctx, KindResetLink, email, subjectReset, body); err != nil {
		return fmt.Errorf("deliver reset link: %w: %w", domain.ErrDeliveryFailure, err)
	}
	return nil
}

// validity renders ttl in whole minutes, never less than one.
func validity(ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// ResetLink builds the frontend URL that carries a reset token.
func (g *Gateway) ResetLink(token string) string {
	return g.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
}
