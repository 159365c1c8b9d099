package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Secret is a JSON-encoded parameter from which one string field is read.
// The value is fetched on first use and cached for the lifetime of the
// process. Failed fetches are not cached.
type Secret struct {
	getter Getter
	name   string
	field  string

	mu     sync.RWMutex
	loaded bool
	value  string
}

// NewSecret creates a Secret reading field from the JSON value stored under name.
func NewSecret(g Getter, name, field string) (*Secret, error) {
	if g == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("paramstore: secret name must not be empty")
	}
	if strings.TrimSpace(field) == "" {
		return nil, errors.New("paramstore: secret field must not be empty")
	}
	return &Secret{getter: g, name: name, field: field}, nil
}

func (s *Secret) Value(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.loaded {
		v := s.value
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.value, nil
	}

	raw, err := s.getter.GetParameter(ctx, s.name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch secret: %w", err)
	}
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("paramstore: secret %q is not valid JSON", s.name)
	}
	v := gjson.Get(raw, s.field)
	if v.Type != gjson.String || v.String() == "" {
		return "", fmt.Errorf("paramstore: secret %q has no %q field", s.name, s.field)
	}

	s.value = v.String()
	s.loaded = true
	return s.value, nil
}
