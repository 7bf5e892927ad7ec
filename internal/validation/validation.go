package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"roomchat/internal/errors"
)

// Input limits for values arriving over HTTP
const (
	MaxDisplayNameLength = 64
	MaxRoomIDLength      = 128
	MaxMessageLength     = 4096
	MaxSearchLength      = 256
	MaxURLLength         = 2048
)

// ValidateStringLength checks the rune count of value against bounds
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	n := utf8.RuneCountInString(value)
	if n < minLength {
		return errors.NewValidationError(fieldName, value,
			fmt.Sprintf("too short (min %d characters)", minLength))
	}
	if n > maxLength {
		return errors.NewValidationError(fieldName, truncate(value),
			fmt.Sprintf("too long (max %d characters)", maxLength))
	}
	return nil
}

// ValidateDisplayName allows blank input, which joins as the default name
func ValidateDisplayName(name string) error {
	if err := ValidateStringLength(name, "displayName", 0, MaxDisplayNameLength); err != nil {
		return err
	}
	return rejectControl(name, "displayName")
}

// ValidateRoomID allows blank input, which joins the default room
func ValidateRoomID(roomID string) error {
	if err := ValidateStringLength(roomID, "roomId", 0, MaxRoomIDLength); err != nil {
		return err
	}
	return rejectControl(roomID, "roomId")
}

// ValidateMessageText bounds drafts and edits. Newlines are allowed.
func ValidateMessageText(text string) error {
	if !utf8.ValidString(text) {
		return errors.NewValidationError("text", "", "must be valid UTF-8")
	}
	return ValidateStringLength(text, "text", 0, MaxMessageLength)
}

func ValidateSearchQuery(query string) error {
	return ValidateStringLength(query, "query", 0, MaxSearchLength)
}

// ValidateAPIBaseURL accepts an empty value or an absolute http(s) URL
func ValidateAPIBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := ValidateStringLength(raw, "apiBaseUrl", 0, MaxURLLength); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.NewValidationError("apiBaseUrl", raw, "must be an http or https URL")
	}
	return nil
}

func rejectControl(value, fieldName string) error {
	for _, r := range value {
		if unicode.IsControl(r) {
			return errors.NewValidationError(fieldName, truncate(value), "contains control characters")
		}
	}
	return nil
}

func truncate(s string) string {
	const keep = 32
	if utf8.RuneCountInString(s) <= keep {
		return s
	}
	return string([]rune(s)[:keep]) + "..."
}
