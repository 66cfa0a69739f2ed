package devserver

import (
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pelusa-v/pelusa-spaces/internal/chat"
	"github.com/pkg/errors"
)

var (
	ErrInvalidName = errors.New("space name is required")
	ErrSpaceExists = errors.New("a space with that name already exists")
)

// normalizeSpace trims, collapses slashes and lowercases a space name into
// its id: " Random  Stuff/ " -> "random-stuff".
func normalizeSpace(name string) string {
	r := strings.TrimSpace(name)
	if r == "" {
		return ""
	}
	r = path.Clean("/" + r)
	r = strings.TrimPrefix(r, "/")
	r = strings.ToLower(strings.Join(strings.Fields(r), "-"))
	if r == "." {
		return ""
	}
	return r
}

// Spaces is the relay's directory. The REST handlers and the hub share it.
type Spaces struct {
	mu    sync.RWMutex
	byID  map[string]chat.Space
	order []string
}

func NewSpaces(defaultSpace string) *Spaces {
	s := &Spaces{byID: map[string]chat.Space{}}
	id := normalizeSpace(defaultSpace)
	if id == "" {
		id = "general"
	}
	s.byID[id] = chat.Space{ID: id, Name: defaultSpace, Description: "Default space", IsDefault: true}
	s.order = append(s.order, id)
	return s
}

func (s *Spaces) Create(name, description, createdBy string) (chat.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := normalizeSpace(name)
	if id == "" {
		return chat.Space{}, ErrInvalidName
	}
	if _, ok := s.byID[id]; ok {
		return chat.Space{}, ErrSpaceExists
	}
	sp := chat.Space{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedBy:   createdBy,
	}
	s.byID[id] = sp
	s.order = append(s.order, id)
	return sp, nil
}

// List returns the default space first, then the rest by name.
func (s *Spaces) List() []chat.Space {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Space, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Spaces) Get(id string) (chat.Space, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.byID[normalizeSpace(id)]
	return sp, ok
}

func (s *Spaces) Default() chat.Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if s.byID[id].IsDefault {
			return s.byID[id]
		}
	}
	return chat.Space{}
}
