// Package identity keeps the logged-in nickname across restarts.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrNoIdentity = errors.New("no stored identity")

type Identity struct {
	Nickname string    `json:"nickname"`
	SavedAt  time.Time `json:"savedAt"`
}

// Store is a single JSON file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load returns ErrNoIdentity when nothing was saved or the file is unusable.
func (s *Store) Load() (Identity, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Identity{}, ErrNoIdentity
	}
	if err != nil {
		return Identity{}, errors.Wrap(err, "read identity")
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return Identity{}, errors.Wrapf(ErrNoIdentity, "corrupt identity file: %v", err)
	}
	if strings.TrimSpace(id.Nickname) == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

func (s *Store) Save(nickname string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create identity dir")
	}
	raw, err := json.Marshal(Identity{Nickname: nickname, SavedAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "encode identity")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, "write identity")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "write identity")
}

// Clear removes the stored identity; a missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove identity")
	}
	return nil
}
