// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/config"
	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"codeberg.org/oliverandrich/go-marketplace/internal/templates"
	"github.com/wneessen/go-mail"
)

// Service delivers verification codes over SMTP.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
	codeTTL time.Duration
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string, codeTTL time.Duration) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		codeTTL: codeTTL,
	}, nil
}

// SendCode sends a verification code in the locale carried by ctx.
func (s *Service) SendCode(ctx context.Context, toEmail, code string) error {
	msg, err := s.CodeMessage(ctx, toEmail, code)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

// CodeMessage builds the multipart verification code message.
func (s *Service) CodeMessage(ctx context.Context, toEmail, code string) (*mail.Msg, error) {
	data := templates.CodeEmailData{
		Name:          toEmail,
		Code:          code,
		ExpiryMinutes: int(s.codeTTL / time.Minute),
		SiteURL:       s.baseURL,
	}

	var html bytes.Buffer
	if err := templates.CodeEmail(data).Render(ctx, &html); err != nil {
		return nil, fmt.Errorf("rendering email: %w", err)
	}

	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(i18n.T(ctx, "email_code_subject"))
	msg.SetBodyString(mail.TypeTextPlain, templates.CodeEmailText(ctx, data))
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())

	return msg, nil
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

func (s *Service) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(15 * time.Second),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// LogNotifier writes codes to the log instead of mailing them. It is meant
// for development setups without SMTP.
type LogNotifier struct{}

// SendCode logs the code.
func (LogNotifier) SendCode(ctx context.Context, toEmail, code string) error {
	slog.InfoContext(ctx, "verification_code", "email", toEmail, "code", code, "locale", i18n.GetLocale(ctx))
	return nil
}
