// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed common_passwords.txt
var commonPasswordList string

var commonPasswords = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(commonPasswordList, "\n") {
		if pw := strings.ToLower(strings.TrimSpace(line)); pw != "" {
			set[pw] = struct{}{}
		}
	}
	return set
}()

// similarityThreshold is the LCS ratio above which a password counts as
// derived from a personal attribute.
const similarityThreshold = 0.7

// PasswordValidator holds the password policy.
type PasswordValidator struct {
	MinLength            int
	RequireUppercase     bool
	RequireLowercase     bool
	RequireDigit         bool
	RequireSpecial       bool
	CheckCommonPasswords bool
	CheckUserSimilarity  bool
}

// DefaultPasswordValidator returns the policy applied at registration.
func DefaultPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		MinLength:            10,
		CheckCommonPasswords: true,
		CheckUserSimilarity:  true,
	}
}

// ValidationError is one failed check. Code doubles as the suffix of the
// "password_" message ID; Params fill its template.
type ValidationError struct {
	Code    string
	Message string
	Params  map[string]any
}

func (e ValidationError) Error() string {
	return e.Message
}

// PasswordValidationError is returned when a password violates the policy.
type PasswordValidationError struct {
	Errors []ValidationError
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return e.Errors[0].Message
}

// Codes returns the codes of all failed checks.
func (e *PasswordValidationError) Codes() []string {
	codes := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		codes[i] = err.Code
	}
	return codes
}

// ValidationResult holds all validation errors.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

type charClasses struct {
	upper, lower, digit, special bool
}

func classify(password string) charClasses {
	var cc charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			cc.upper = true
		case unicode.IsLower(r):
			cc.lower = true
		case unicode.IsDigit(r):
			cc.digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			cc.special = true
		}
	}
	return cc
}

// Validate runs every enabled check; attributes are the email, its local part
// and the names the password must not resemble.
func (v *PasswordValidator) Validate(password string, attributes ...string) ValidationResult {
	cc := classify(password)

	checks := []struct {
		failed bool
		err    ValidationError
	}{
		{utf8.RuneCountInString(password) < v.MinLength, ValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("Password must be at least %d characters long.", v.MinLength),
			Params:  map[string]any{"MinLength": v.MinLength},
		}},
		{v.RequireUppercase && !cc.upper, ValidationError{Code: "no_uppercase", Message: "Password needs an uppercase letter."}},
		{v.RequireLowercase && !cc.lower, ValidationError{Code: "no_lowercase", Message: "Password needs a lowercase letter."}},
		{v.RequireDigit && !cc.digit, ValidationError{Code: "no_digit", Message: "Password needs a digit."}},
		{v.RequireSpecial && !cc.special, ValidationError{Code: "no_special", Message: "Password needs a special character."}},
		{isEntirelyNumeric(password), ValidationError{Code: "entirely_numeric", Message: "Password cannot be entirely numeric."}},
		{v.CheckCommonPasswords && isCommonPassword(password), ValidationError{Code: "common_password", Message: "Password is too common."}},
		{v.CheckUserSimilarity && resemblesAny(password, attributes), ValidationError{Code: "too_similar", Message: "Password is too similar to your personal details."}},
	}

	errs := make([]ValidationError, 0, len(checks))
	for _, c := range checks {
		if c.failed {
			errs = append(errs, c.err)
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func isEntirelyNumeric(password string) bool {
	if password == "" {
		return false
	}
	return strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}

func isCommonPassword(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}

// resemblesAny reports whether password contains, is contained in, or is
// mostly made of one of the attributes. Attributes under three characters
// are ignored.
func resemblesAny(password string, attributes []string) bool {
	pw := strings.ToLower(password)
	for _, attr := range attributes {
		if len(attr) < 3 {
			continue
		}
		a := strings.ToLower(attr)
		if strings.Contains(pw, a) || strings.Contains(a, pw) || lcsRatio(pw, a) > similarityThreshold {
			return true
		}
	}
	return false
}

// lcsRatio is the length of the longest common subsequence of a and b
// relative to the longer of the two.
func lcsRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}

	return float64(prev[len(b)]) / float64(max(len(a), len(b)))
}
