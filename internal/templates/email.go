// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// CodeEmailData is the content of the verification code email.
type CodeEmailData struct {
	Name          string
	Code          string
	ExpiryMinutes int
	SiteURL       string
}

// CodeEmailText renders the plain text part of the verification code email.
func CodeEmailText(ctx context.Context, d CodeEmailData) string {
	var b strings.Builder
	b.WriteString(TData(ctx, "email_code_greeting", map[string]any{"Name": d.Name}))
	b.WriteString("\n\n")
	b.WriteString(T(ctx, "email_code_intro"))
	b.WriteString("\n\n    ")
	b.WriteString(d.Code)
	b.WriteString("\n\n")
	b.WriteString(TPlural(ctx, "email_code_expiry", d.ExpiryMinutes))
	b.WriteString("\n")
	b.WriteString(T(ctx, "email_code_ignore"))
	b.WriteString("\n\n-- \n")
	b.WriteString(T(ctx, "app_name"))
	if d.SiteURL != "" {
		b.WriteString("\n")
		b.WriteString(d.SiteURL)
	}
	b.WriteString("\n")
	return b.String()
}

// CodeEmail renders the HTML part of the verification code email.
func CodeEmail(d CodeEmailData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="`)
		b.WriteString(templ.EscapeString(Locale(ctx)))
		b.WriteString(`"><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(T(ctx, "email_code_subject")))
		b.WriteString(`</title></head><body style="font-family:sans-serif;color:#1f2937">`)
		b.WriteString(`<p>`)
		b.WriteString(templ.EscapeString(TData(ctx, "email_code_greeting", map[string]any{"Name": d.Name})))
		b.WriteString(`</p><p>`)
		b.WriteString(templ.EscapeString(T(ctx, "email_code_intro")))
		b.WriteString(`</p><p style="font-size:28px;font-weight:bold;letter-spacing:6px">`)
		b.WriteString(templ.EscapeString(d.Code))
		b.WriteString(`</p><p>`)
		b.WriteString(templ.EscapeString(TPlural(ctx, "email_code_expiry", d.ExpiryMinutes)))
		b.WriteString(`</p><p style="color:#6b7280">`)
		b.WriteString(templ.EscapeString(T(ctx, "email_code_ignore")))
		b.WriteString(`</p>`)
		if d.SiteURL != "" {
			b.WriteString(`<p><a href="`)
			b.WriteString(templ.EscapeString(d.SiteURL))
			b.WriteString(`">`)
			b.WriteString(templ.EscapeString(T(ctx, "app_name")))
			b.WriteString(`</a></p>`)
		}
		b.WriteString(`</body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
