package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
	"github.com/staffhub/staffhub/backend/internal/storage/tree"
	internal_errors "github.com/staffhub/staffhub/shared/errors"
)

// =========================================================================
// Public Methods (satisfy the tree.Store interface)
// =========================================================================

// Get reads the subtree at path. Nested paths are resolved inside postgres
// with the #> operator so only the requested subtree is transferred.
func (s *Storage) Get(ctx context.Context, path tree.Path) (json.RawMessage, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	return s.get(ctx, s.db, path)
}

// Set replaces the node at path, creating parents.
func (s *Storage) Set(ctx context.Context, path tree.Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	v, err := tree.Normalize(value)
	if err != nil {
		return err
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	return s.mutate(ctx, path.Root(), func(doc any) (any, error) {
		return tree.Assign(doc, path[1:], v), nil
	})
}

// Update writes several children of an existing node in one transaction.
func (s *Storage) Update(ctx context.Context, path tree.Path, fields map[string]any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	return s.mutate(ctx, path.Root(), func(doc any) (any, error) {
		return tree.Merge(doc, path[1:], fields)
	})
}

// Remove deletes the node at path. Removing a missing node succeeds.
func (s *Storage) Remove(ctx context.Context, path tree.Path) error {
	if err := path.Validate(); err != nil {
		return err
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	return s.mutate(ctx, path.Root(), func(doc any) (any, error) {
		return tree.Assign(doc, path[1:], nil), nil
	})
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

func (s *Storage) get(ctx context.Context, q Querier, path tree.Path) (json.RawMessage, error) {
	var doc []byte
	var err error
	if len(path) == 1 {
		err = q.QueryRowContext(ctx, `SELECT doc FROM tree_nodes WHERE root = $1`, path.Root()).Scan(&doc)
	} else {
		err = q.QueryRowContext(ctx,
			`SELECT doc #> $2::text[] FROM tree_nodes WHERE root = $1`,
			path.Root(), pq.Array([]string(path[1:])),
		).Scan(&doc)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internal_errors.NotFound("node %s not found", path)
	}
	if err != nil {
		return nil, internal_errors.StoreError(err, "get")
	}
	if doc == nil || string(doc) == "null" {
		return nil, internal_errors.NotFound("node %s not found", path)
	}
	return doc, nil
}

// mutate locks the root row, applies fn to its decoded document and writes
// the result back. A nil result deletes the row.
func (s *Storage) mutate(ctx context.Context, root string, fn func(doc any) (any, error)) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		doc, exists, err := s.lockRoot(ctx, tx, root)
		if err != nil {
			return err
		}

		updated, err := fn(doc)
		if err != nil {
			return err
		}

		if updated == nil {
			if !exists {
				return nil
			}
			return s.deleteRoot(ctx, tx, root)
		}
		return s.saveRoot(ctx, tx, root, updated)
	})
}

func (s *Storage) lockRoot(ctx context.Context, q Querier, root string) (any, bool, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, `SELECT doc FROM tree_nodes WHERE root = $1 FOR UPDATE`, root).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, internal_errors.StoreError(err, "lock")
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, internal_errors.StoreError(err, "decode")
	}
	return doc, true, nil
}

func (s *Storage) saveRoot(ctx context.Context, q Querier, root string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return internal_errors.StoreError(err, "encode")
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO tree_nodes (root, doc, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (root)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		root, string(data),
	)
	if err != nil {
		return internal_errors.StoreError(err, "save")
	}
	return nil
}

func (s *Storage) deleteRoot(ctx context.Context, q Querier, root string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM tree_nodes WHERE root = $1`, root); err != nil {
		return internal_errors.StoreError(err, "delete")
	}
	return nil
}
