// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
	waveNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9 _-]*[a-z0-9]$`)
)

var reservedWaveNames = map[string]struct{}{
	"admin":    {},
	"api":      {},
	"auth":     {},
	"health":   {},
	"metrics":  {},
	"posts":    {},
	"comments": {},
	"users":    {},
	"waves":    {},
}

// ValidatePassword checks if a password meets security requirements.
// bcrypt ignores everything past 72 bytes, so longer passwords are refused.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if len(password) > 72 {
		return fmt.Errorf("password must not exceed 72 bytes")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("password must contain at least one letter and one digit")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// NormalizeWaveName lowercases and trims a wave name the way it is stored.
func NormalizeWaveName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateWaveName validates an already normalized wave name.
func ValidateWaveName(name string) error {
	if n := utf8.RuneCountInString(name); n < 3 || n > 50 {
		return fmt.Errorf("wave name must be 3-50 characters")
	}
	if !waveNameRegex.MatchString(name) {
		return fmt.Errorf("wave name may only contain lowercase letters, numbers, spaces, underscores and hyphens, and must start and end with a letter or number")
	}
	if _, reserved := reservedWaveNames[name]; reserved {
		return fmt.Errorf("wave name is reserved")
	}
	return nil
}
