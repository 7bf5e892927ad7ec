package settings

import (
	"context"
	"strings"

	"roomchat/internal/constants"
)

// APIBaseURL reads and writes the saved API endpoint
type APIBaseURL struct {
	kv       KV
	fallback string
}

// NewAPIBaseURL binds the setting to kv. A blank fallback means
// constants.DefaultAPIBaseURL.
func NewAPIBaseURL(kv KV, fallback string) *APIBaseURL {
	if strings.TrimSpace(fallback) == "" {
		fallback = constants.DefaultAPIBaseURL
	}
	return &APIBaseURL{kv: kv, fallback: fallback}
}

// Load returns the stored value, or the fallback when nothing was ever saved.
// A saved empty string is returned as is.
func (a *APIBaseURL) Load(ctx context.Context) (string, error) {
	v, ok, err := a.kv.Get(ctx, constants.APIBaseURLKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return a.fallback, nil
	}
	return v, nil
}

// Save trims and stores value, returning what was stored
func (a *APIBaseURL) Save(ctx context.Context, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if err := a.kv.Set(ctx, constants.APIBaseURLKey, trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// SavedMessage is the confirmation shown after Save
func SavedMessage(value string) string {
	return "Saved: " + value
}
