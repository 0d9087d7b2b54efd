// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates_test

import (
	"bytes"
	"context"
	"testing"

	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"codeberg.org/oliverandrich/go-marketplace/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestCodeEmail(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), language.German)

	var buf bytes.Buffer
	err := templates.CodeEmail(templates.CodeEmailData{
		Name:          "<Ada>",
		Code:          "042917",
		ExpiryMinutes: 10,
		SiteURL:       "https://market.example.com",
	}).Render(ctx, &buf)

	require.NoError(t, err)
	html := buf.String()
	assert.Contains(t, html, `lang="de"`)
	assert.Contains(t, html, "042917")
	assert.Contains(t, html, "Hallo &lt;Ada&gt;,")
	assert.Contains(t, html, "10 Minuten")
	assert.Contains(t, html, `href="https://market.example.com"`)
	assert.NotContains(t, html, "<Ada>")
}

func TestCodeEmailText(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), language.English)

	text := templates.CodeEmailText(ctx, templates.CodeEmailData{
		Name:          "ada@example.com",
		Code:          "000123",
		ExpiryMinutes: 1,
	})

	assert.Contains(t, text, "Hello ada@example.com,")
	assert.Contains(t, text, "    000123\n")
	assert.Contains(t, text, "The code is valid for 1 minute.")
	assert.Contains(t, text, "Marketplace")
}
