package service

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]{1,30}$`)
)

const minPasswordLength = 8

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateEmail(email string) error {
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return validationError("email is not a valid address")
	}
	return nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return validationError("username must be 1-30 characters of a-z, 0-9 or _")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return validationError("password must be at least %d characters", minPasswordLength)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return validationError("password must contain a letter and a digit")
	}
	return nil
}

func validateTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return validationError("unknown timezone %q", tz)
	}
	return nil
}

func validateName(field, value string) error {
	if len(value) > 100 {
		return validationError("%s must be at most 100 characters", field)
	}
	return nil
}
