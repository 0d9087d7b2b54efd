// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInit(t *testing.T) {
	require.NoError(t, i18n.Init())
	require.NoError(t, i18n.Init())
}

func TestT(t *testing.T) {
	require.NoError(t, i18n.Init())

	tests := []struct {
		lang     language.Tag
		expected string
	}{
		{language.English, "Marketplace"},
		{language.German, "Marktplatz"},
		{language.Russian, "Маркетплейс"},
	}

	for _, tt := range tests {
		t.Run(tt.lang.String(), func(t *testing.T) {
			ctx := i18n.WithLocale(context.Background(), tt.lang)
			assert.Equal(t, tt.expected, i18n.T(ctx, "app_name"))
		})
	}
}

func TestT_UnknownKey(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.T(ctx, "unknown_key_that_does_not_exist")
	assert.Equal(t, "unknown_key_that_does_not_exist", result)
}

func TestT_NoLocaleContext(t *testing.T) {
	require.NoError(t, i18n.Init())

	assert.Equal(t, "Marketplace", i18n.T(context.Background(), "app_name"))
}

func TestTData(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.German)

	result := i18n.TData(ctx, "email_code_greeting", map[string]any{"Name": "Ada"})
	assert.Equal(t, "Hallo Ada,", result)
}

func TestTPlural(t *testing.T) {
	require.NoError(t, i18n.Init())

	en := i18n.WithLocale(context.Background(), language.English)
	assert.Equal(t, "Wrong code. 1 attempt left.", i18n.TPlural(en, "error_invalid_code", 1))
	assert.Equal(t, "Wrong code. 3 attempts left.", i18n.TPlural(en, "error_invalid_code", 3))

	ru := i18n.WithLocale(context.Background(), language.Russian)
	assert.Equal(t, "Неверный код. Осталась 1 попытка.", i18n.TPlural(ru, "error_invalid_code", 1))
	assert.Equal(t, "Неверный код. Осталось 3 попытки.", i18n.TPlural(ru, "error_invalid_code", 3))
	assert.Equal(t, "Код действителен 10 минут.", i18n.TPlural(ru, "email_code_expiry", 10))
}

func TestCataloguesComplete(t *testing.T) {
	require.NoError(t, i18n.Init())

	ids := []string{
		"error_invalid_request", "error_invalid_email", "error_name_required",
		"error_invalid_code_format", "error_password_invalid", "error_email_taken",
		"error_blocked", "error_no_attempt", "error_expired", "error_rate_limited",
		"error_invalid_credentials", "error_unauthorized", "error_internal",
		"registration_code_sent", "registration_code_not_sent", "logout_success",
		"email_code_subject", "email_code_intro", "email_code_ignore",
	}

	for _, tag := range i18n.Supported {
		ctx := i18n.WithLocale(context.Background(), tag)
		for _, id := range ids {
			assert.NotEqual(t, id, i18n.T(ctx, id), "%s missing in %s", id, tag)
		}
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		expected       language.Tag
		acceptLanguage string
	}{
		{language.English, "en"},
		{language.English, "en-US"},
		{language.German, "de"},
		{language.German, "de-DE"},
		{language.German, "de-AT"},
		{language.Russian, "ru-RU"},
		{language.English, "fr"}, // fallback to English
		{language.English, ""},   // empty defaults to English
		{language.German, "de, en;q=0.9"},
		{language.English, "en, de;q=0.9"},
		{language.Russian, "fr, ru;q=0.8, en;q=0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.acceptLanguage, func(t *testing.T) {
			assert.Equal(t, tt.expected, i18n.MatchLanguage(tt.acceptLanguage))
		})
	}
}

func TestWithLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.German)

	assert.Equal(t, "de", i18n.GetLocale(ctx))
}

func TestGetLocale_Default(t *testing.T) {
	assert.Equal(t, "en", i18n.GetLocale(context.Background()))
}
