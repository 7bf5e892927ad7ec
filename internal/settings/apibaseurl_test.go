package settings

import (
	"context"
	"errors"
	"testing"

	"roomchat/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingKV) Set(context.Context, string, string) error { return f.err }

func TestAPIBaseURL_DefaultWhenUnset(t *testing.T) {
	url := NewAPIBaseURL(NewMemory(), "")

	v, err := url.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultAPIBaseURL, v)
}

func TestAPIBaseURL_ConfiguredFallback(t *testing.T) {
	url := NewAPIBaseURL(NewMemory(), "http://staging:3000")

	v, err := url.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://staging:3000", v)
}

func TestAPIBaseURL_SaveTrims(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	url := NewAPIBaseURL(kv, "")

	saved, err := url.Save(ctx, "  http://example.test:8080 \n")
	require.NoError(t, err)
	assert.Equal(t, "http://example.test:8080", saved)
	assert.Equal(t, "Saved: http://example.test:8080", SavedMessage(saved))

	raw, ok, err := kv.Get(ctx, constants.APIBaseURLKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "http://example.test:8080", raw)

	v, err := url.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://example.test:8080", v)
}

func TestAPIBaseURL_SavedEmptyIsKept(t *testing.T) {
	ctx := context.Background()
	url := NewAPIBaseURL(NewMemory(), "")

	_, err := url.Save(ctx, "   ")
	require.NoError(t, err)

	v, err := url.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestAPIBaseURL_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	url := NewAPIBaseURL(failingKV{err: boom}, "")

	_, err := url.Load(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = url.Save(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestAPIBaseURL_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir()+"/settings.db")
	url := NewAPIBaseURL(s, "")

	_, err := url.Save(ctx, " http://localhost:4000 ")
	require.NoError(t, err)

	v, err := url.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", v)
}
