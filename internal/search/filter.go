package search

import (
	"strings"

	"roomchat/internal/models"
)

// Filter returns the messages matching query, in their original order. A
// message matches when its text, sender name or any attachment file name
// contains the trimmed query, ignoring case. A blank query returns messages
// unchanged.
func Filter(messages []models.Message, query string) []models.Message {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return messages
	}

	matched := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if Matches(m, q) {
			matched = append(matched, m)
		}
	}
	return matched
}

// Matches reports whether m contains the already lowercased needle
func Matches(m models.Message, needle string) bool {
	if strings.Contains(strings.ToLower(m.Text), needle) ||
		strings.Contains(strings.ToLower(m.SenderName), needle) {
		return true
	}
	for _, a := range m.Attachments {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return true
		}
	}
	return false
}
