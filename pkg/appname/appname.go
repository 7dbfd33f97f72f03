// Package appname turns user supplied identifiers into valid Heroku application names.
package appname

import (
	"errors"
	"fmt"
	"strings"
)

// Heroku rejects application names longer than this.
const MaxLength = 30

var (
	ErrEmpty        = errors.New("application name is empty after sanitization")
	ErrTooLong      = fmt.Errorf("application name is longer than %d characters", MaxLength)
	ErrLeadingDigit = errors.New("application name must start with a letter")
)

// Sanitize lowercases raw, replaces every character outside [a-z0-9-] with a hyphen,
// collapses consecutive hyphens and strips leading and trailing hyphens.
// The result is empty if raw contains no usable characters.
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	hyphen := false
	for _, r := range strings.ToLower(raw) {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !valid {
			hyphen = b.Len() > 0
			continue
		}
		if hyphen {
			b.WriteByte('-')
			hyphen = false
		}
		b.WriteRune(r)
	}

	return b.String()
}

// Validate checks a sanitized name against the remaining platform naming rules.
func Validate(name string) error {
	switch {
	case len(name) == 0:
		return ErrEmpty
	case len(name) > MaxLength:
		return ErrTooLong
	case name[0] < 'a' || name[0] > 'z':
		return ErrLeadingDigit
	}
	return nil
}
