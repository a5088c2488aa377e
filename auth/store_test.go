package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MailerSuite/Final-sub009/errors"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")

	_, ok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetToken(ctx, " abc "))
	token, ok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	assert.True(t, errors.IsInvalid(s.SetToken(ctx, "  ")))

	require.NoError(t, s.Clear(ctx))
	_, ok, _ = s.Token(ctx)
	assert.False(t, ok)
}

func TestFileStore_RoundTripAndPermissions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	s := NewFileStore(path, nil)

	_, ok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "missing file means no token")

	require.NoError(t, s.SetToken(ctx, "durable-token"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A fresh store over the same file sees the token.
	token, ok, err := NewFileStore(path, nil).Token(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "durable-token", token)

	require.NoError(t, s.Clear(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, s.Clear(ctx), "clearing twice is not an error")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewFileStore(path, nil).Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrParsingFailed)
}

func TestChain_DurableTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryStore("durable")
	session := NewMemoryStore("session")
	chain := Chain(durable, session)

	token, ok, err := chain.Token(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "durable", token)

	require.NoError(t, durable.Clear(ctx))
	token, _, _ = chain.Token(ctx)
	assert.Equal(t, "session", token, "falls back to the session store")
}

func TestChain_ClearRemovesFromAllStores(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryStore("a")
	session := NewMemoryStore("b")
	chain := Chain(durable, nil, session)

	require.NoError(t, chain.Clear(ctx))

	_, ok, _ := durable.Token(ctx)
	assert.False(t, ok)
	_, ok, _ = session.Token(ctx)
	assert.False(t, ok)
	_, ok, _ = chain.Token(ctx)
	assert.False(t, ok)
}

func TestChain_SetTokenWritesFirstStore(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryStore("")
	session := NewMemoryStore("")
	chain := Chain(durable, session)

	require.NoError(t, chain.SetToken(ctx, "fresh"))
	token, _, _ := durable.Token(ctx)
	assert.Equal(t, "fresh", token)
	_, ok, _ := session.Token(ctx)
	assert.False(t, ok)

	assert.Error(t, Chain().SetToken(ctx, "x"))
}

type failingStore struct{ err error }

func (f failingStore) Token(context.Context) (string, bool, error) { return "", false, f.err }
func (f failingStore) SetToken(context.Context, string) error      { return f.err }
func (f failingStore) Clear(context.Context) error                 { return f.err }

func TestChain_ErrorSurfacesOnlyWithoutToken(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend down")

	token, ok, err := Chain(failingStore{boom}, NewMemoryStore("session")).Token(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "session", token)

	_, ok, err = Chain(failingStore{boom}, NewMemoryStore("")).Token(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)

	err = Chain(failingStore{boom}, NewMemoryStore("x")).Clear(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestBearerHeader(t *testing.T) {
	assert.Equal(t, "Bearer abc", BearerHeader("abc"))
}
