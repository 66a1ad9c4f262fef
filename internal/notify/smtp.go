// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package notify

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"

	"github.com/classgate/classgate/internal/auth"
)

// TLS policies accepted by SMTPConfig.TLS.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      string
	Timeout  time.Duration

	// MaxRetries bounds resends after a transient failure. Zero sends once.
	MaxRetries uint64
	// RetryBase is the first backoff interval; it doubles per attempt.
	RetryBase time.Duration
}

// DefaultSMTPConfig returns settings for a local relay on port 587.
func DefaultSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Port:       587,
		TLS:        TLSOpportunistic,
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		RetryBase:  200 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return oops.Code("NOTIFY_INVALID_CONFIG").Errorf("smtp host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return oops.Code("NOTIFY_INVALID_CONFIG").With("port", c.Port).Errorf("smtp port out of range")
	}
	if c.From == "" {
		return oops.Code("NOTIFY_INVALID_CONFIG").Errorf("sender address is required")
	}
	if _, err := tlsPolicy(c.TLS); err != nil {
		return err
	}
	if c.RetryBase <= 0 && c.MaxRetries > 0 {
		return oops.Code("NOTIFY_INVALID_CONFIG").Errorf("retry base must be positive when retries are enabled")
	}
	return nil
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch name {
	case TLSMandatory:
		return mail.TLSMandatory, nil
	case TLSOpportunistic, "":
		return mail.TLSOpportunistic, nil
	case TLSNone:
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, oops.Code("NOTIFY_INVALID_CONFIG").
			With("tls", name).
			Errorf("unknown tls policy")
	}
}

// sender is the part of *mail.Client used for delivery.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier delivers messages through an SMTP relay.
type SMTPNotifier struct {
	cfg    SMTPConfig
	client sender
	logger *slog.Logger
}

// NewSMTPNotifier creates a notifier for cfg.
func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := tlsPolicy(cfg.TLS) //nolint:errcheck // validated above

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(policy),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("NOTIFY_CLIENT_FAILED").With("host", cfg.Host).Wrap(err)
	}
	return newSMTPNotifier(cfg, client, logger)
}

func newSMTPNotifier(cfg SMTPConfig, client sender, logger *slog.Logger) (*SMTPNotifier, error) {
	if logger == nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("logger is required")
	}
	return &SMTPNotifier{cfg: cfg, client: client, logger: logger}, nil
}

// Notify sends msg, retrying transient failures with exponential backoff.
// It returns once the message is accepted or the retries are spent.
func (n *SMTPNotifier) Notify(ctx context.Context, msg auth.Message) error {
	m, err := n.build(msg)
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(n.cfg.MaxRetries, retry.NewExponential(n.retryBase()))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		sendErr := n.client.DialAndSendWithContext(ctx, m)
		if sendErr == nil {
			return nil
		}
		if transient(sendErr) {
			n.logger.WarnContext(ctx, "smtp send failed, will retry",
				"attempt", attempt,
				"error", sendErr,
			)
			return retry.RetryableError(sendErr)
		}
		return sendErr
	})
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("attempts", attempt).
			Wrap(err)
	}
	n.logger.DebugContext(ctx, "message sent", "subject", msg.Subject, "attempts", attempt)
	return nil
}

func (n *SMTPNotifier) retryBase() time.Duration {
	if n.cfg.RetryBase <= 0 {
		return time.Millisecond
	}
	return n.cfg.RetryBase
}

func (n *SMTPNotifier) build(msg auth.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.cfg.From); err != nil {
		return nil, oops.Code("NOTIFY_INVALID_ADDRESS").With("from", n.cfg.From).Wrap(err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, oops.Code("NOTIFY_INVALID_ADDRESS").With("to", msg.To).Wrap(err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// transient reports whether a send error is worth retrying: SMTP 4xx replies
// and network-level failures.
func transient(err error) bool {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		return sendErr.IsTemp()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
