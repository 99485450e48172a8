package mail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dfe0990ngc/pcds-student-portal/pkg/logger"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/metrics"
)

// Kind identifies the notification being dispatched.
type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
	KindWelcome       Kind = "welcome"
)

// Payload carries the template inputs for a notification.
type Payload struct {
	// Name is the recipient's display name resolved from the academic record.
	Name string
	// Code is the short verification or reset code; unused for welcome mail.
	Code string
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFallback installs a secondary transport attempted when the primary fails.
func WithFallback(m Mailer) DispatcherOption {
	return func(d *Dispatcher) { d.fallback = m }
}

// WithDispatchTimeout bounds the total time spent attempting delivery.
func WithDispatchTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithPortalURL sets the frontend URL embedded in notification bodies.
func WithPortalURL(url string) DispatcherOption {
	return func(d *Dispatcher) { d.portalURL = url }
}

// Dispatcher delivers portal notifications on a best-effort basis. Delivery
// failure is reported to the caller as a flag, never as an error that would
// abort the triggering operation.
type Dispatcher struct {
	primary   Mailer
	fallback  Mailer
	portalURL string
	timeout   time.Duration
	log       *zap.Logger
}

// NewDispatcher constructs a Dispatcher over the primary transport.
func NewDispatcher(primary Mailer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		primary: primary,
		timeout: DefaultSendTimeout,
		log:     logger.WithModule("mail"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send dispatches a notification to the recipient. It attempts the primary
// transport first and the fallback on failure. The returned flag reports
// whether any transport accepted the message; the string holds the last
// transport error for logging and response hints.
func (d *Dispatcher) Send(ctx context.Context, kind Kind, recipient string, payload Payload) (bool, string) {
	if d.primary == nil {
		metrics.EmailsSent.WithLabelValues(string(kind), "failed").Inc()
		return false, "mail transport is not configured"
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msg := Message{
		To:      recipient,
		Subject: subjectFor(kind),
		Body:    bodyFor(kind, payload, d.portalURL),
	}

	err := d.primary.Send(ctx, msg)
	if err == nil {
		metrics.EmailsSent.WithLabelValues(string(kind), "sent").Inc()
		return true, ""
	}

	d.log.Warn("primary transport failed",
		zap.String("kind", string(kind)),
		zap.Error(err),
	)

	if d.fallback != nil {
		if fbErr := d.fallback.Send(ctx, msg); fbErr == nil {
			metrics.EmailsSent.WithLabelValues(string(kind), "sent").Inc()
			return true, ""
		} else {
			err = fbErr
			d.log.Warn("fallback transport failed",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}

	metrics.EmailsSent.WithLabelValues(string(kind), "failed").Inc()
	return false, err.Error()
}

func subjectFor(kind Kind) string {
	switch kind {
	case KindVerification:
		return "Verify Your Email - Student Portal"
	case KindPasswordReset:
		return "Reset Your Password - Student Portal"
	case KindWelcome:
		return "Welcome to PCDS - Student Portal!"
	default:
		return "Student Portal Notification"
	}
}

func bodyFor(kind Kind, payload Payload, portalURL string) string {
	name := payload.Name
	if name == "" {
		name = "Student"
	}

	switch kind {
	case KindVerification:
		return fmt.Sprintf("Hi %s,\n\n"+
			"Thank you for registering with the Student Portal.\n\n"+
			"Your verification code is: %s\n\n"+
			"Enter this code on the verification page to activate your account. "+
			"The code expires 24 hours after registration.\n\n"+
			"If you did not create an account, you can ignore this message.\n", name, payload.Code)
	case KindPasswordReset:
		return fmt.Sprintf("Hi %s,\n\n"+
			"We received a request to reset your Student Portal password.\n\n"+
			"Your reset code is: %s\n\n"+
			"Enter this code on the reset page to choose a new password. "+
			"If you did not request a reset, you can ignore this message.\n", name, payload.Code)
	case KindWelcome:
		return fmt.Sprintf("Hi %s,\n\n"+
			"Welcome to PCDS - Student Portal!\n\n"+
			"Your email has been verified and your account is ready. "+
			"You can now log in to view your grades and account balances:\n%s\n", name, portalURL)
	default:
		return fmt.Sprintf("Hi %s,\n", name)
	}
}
