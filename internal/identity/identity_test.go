package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadClear(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "identity.json"))

	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrNoIdentity))

	require.NoError(t, s.Save("ana"))
	id, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "ana", id.Nickname)
	assert.False(t, id.SavedAt.IsZero())

	require.NoError(t, s.Clear())
	_, err = s.Load()
	assert.True(t, errors.Is(err, ErrNoIdentity))

	require.NoError(t, s.Clear(), "clearing twice is fine")
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := NewStore(path).Load()
	assert.True(t, errors.Is(err, ErrNoIdentity))
}

func TestStore_BlankNickname(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nickname":"  "}`), 0o600))

	_, err := NewStore(path).Load()
	assert.True(t, errors.Is(err, ErrNoIdentity))
}
