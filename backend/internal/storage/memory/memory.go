// Package memory is an in-process tree store for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/staffhub/staffhub/backend/internal/storage/tree"
	"github.com/staffhub/staffhub/shared/errors"
)

type Storage struct {
	mu   sync.RWMutex
	root any
}

func New() *Storage {
	return &Storage{}
}

// NewFromJSON creates a store preloaded with a JSON document.
func NewFromJSON(data []byte) (*Storage, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse seed document: %w", err)
	}
	return &Storage{root: root}, nil
}

func (s *Storage) Get(ctx context.Context, path tree.Path) (json.RawMessage, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := tree.Lookup(s.root, path)
	if !ok {
		return nil, errors.NotFound("node %s not found", path)
	}
	data, err := tree.Encode(node)
	if err != nil {
		return nil, errors.StoreError(err, "get")
	}
	return data, nil
}

func (s *Storage) Set(ctx context.Context, path tree.Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	v, err := tree.Normalize(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = tree.Assign(s.root, path, v)
	return nil
}

func (s *Storage) Update(ctx context.Context, path tree.Path, fields map[string]any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Merge mutates in place, so work on a copy to keep Update all-or-nothing
	working, err := tree.Normalize(s.root)
	if err != nil {
		return errors.StoreError(err, "update")
	}
	root, err := tree.Merge(working, path, fields)
	if err != nil {
		return err
	}
	s.root = root
	return nil
}

func (s *Storage) Remove(ctx context.Context, path tree.Path) error {
	if err := path.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = tree.Assign(s.root, path, nil)
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Storage) Close() error {
	return nil
}
