// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/config"
	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Marketplace",
		TLS:      true,
	}
}

func TestNewService(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig(), "https://example.com", 10*time.Minute)

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := email.NewService(cfg, "https://example.com", 10*time.Minute)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := email.NewService(cfg, "https://example.com", 10*time.Minute)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestCodeMessage(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := email.NewService(validSMTPConfig(), "https://example.com/", 10*time.Minute)
	require.NoError(t, err)
	ctx := i18n.WithLocale(context.Background(), language.English)

	msg, err := svc.CodeMessage(ctx, "ada@example.com", "042917")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "Subject: Your Marketplace verification code")
	assert.Contains(t, raw, "<ada@example.com>")
	assert.Contains(t, raw, "noreply@example.com")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "042917")
}

func TestCodeMessage_InvalidRecipient(t *testing.T) {
	require.NoError(t, i18n.Init())
	svc, err := email.NewService(validSMTPConfig(), "https://example.com", 10*time.Minute)
	require.NoError(t, err)

	_, err = svc.CodeMessage(context.Background(), "not an address", "123456")

	assert.Error(t, err)
}

func TestSendCode_UnreachableServer(t *testing.T) {
	require.NoError(t, i18n.Init())
	cfg := validSMTPConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.TLS = false
	svc, err := email.NewService(cfg, "https://example.com", 10*time.Minute)
	require.NoError(t, err)

	err = svc.SendCode(context.Background(), "ada@example.com", "123456")

	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	err := email.LogNotifier{}.SendCode(context.Background(), "ada@example.com", "042917")

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"verification_code"`)
	assert.Contains(t, buf.String(), `"code":"042917"`)
}
