// Package redis stores the tree in redis. Every top-level collection is one
// hash: each field is a direct child key and its value is the child's JSON.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/staffhub/staffhub/backend/internal/storage/tree"
	"github.com/staffhub/staffhub/shared/config"
	internal_errors "github.com/staffhub/staffhub/shared/errors"
	"github.com/staffhub/staffhub/shared/logger"
)

const (
	defaultPrefix = "staffhub"
	maxTxRetries  = 10
)

type Storage struct {
	client *redis.Client
	prefix string
	cfg    *config.Config
}

// Connect initializes a client from a redis:// URL or a plain host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to redis", "component", "redis")
	client, err := Connect(ctx, cfg.Private.Redis.Url)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("successfully connected to redis", "component", "redis")
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg *config.Config) *Storage {
	prefix := cfg.Public.Store.RedisPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Storage{client: client, prefix: prefix, cfg: cfg}
}

func (s *Storage) Get(ctx context.Context, path tree.Path) (json.RawMessage, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	key := s.key(path.Root())
	if len(path) == 1 {
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, internal_errors.StoreError(err, "get")
		}
		if len(fields) == 0 {
			return nil, internal_errors.NotFound("node %s not found", path)
		}
		return encodeHash(fields), nil
	}

	raw, err := s.client.HGet(ctx, key, path[1]).Result()
	if errors.Is(err, redis.Nil) {
		return nil, internal_errors.NotFound("node %s not found", path)
	}
	if err != nil {
		return nil, internal_errors.StoreError(err, "get")
	}
	if len(path) == 2 {
		return json.RawMessage(raw), nil
	}

	var child any
	if err := json.Unmarshal([]byte(raw), &child); err != nil {
		return nil, internal_errors.StoreError(err, "decode")
	}
	node, ok := tree.Lookup(child, path[2:])
	if !ok {
		return nil, internal_errors.NotFound("node %s not found", path)
	}
	data, err := tree.Encode(node)
	if err != nil {
		return nil, internal_errors.StoreError(err, "encode")
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
	return s.mutate(ctx, path, func(node any, rest []string) (any, error) {
		return tree.Assign(node, rest, v), nil
	})
}

// Update runs as one optimistic transaction on the collection hash.
func (s *Storage) Update(ctx context.Context, path tree.Path, fields map[string]any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, path, func(node any, rest []string) (any, error) {
		return tree.Merge(node, rest, fields)
	})
}

func (s *Storage) Remove(ctx context.Context, path tree.Path) error {
	if err := path.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, path, func(node any, rest []string) (any, error) {
		return tree.Assign(node, rest, nil), nil
	})
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) key(root string) string {
	return s.prefix + ":" + root
}

func (s *Storage) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout())
}

// mutate watches the collection hash, applies fn to the affected node and
// writes the result in MULTI/EXEC. A path of one segment rewrites the whole
// hash, a deeper path rewrites a single field. fn receives the node and the
// remaining path below it.
func (s *Storage) mutate(ctx context.Context, path tree.Path, fn func(node any, rest []string) (any, error)) error {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	key := s.key(path.Root())
	txf := func(tx *redis.Tx) error {
		if len(path) == 1 {
			return s.mutateRoot(ctx, tx, key, fn)
		}
		return s.mutateField(ctx, tx, key, path[1], path[2:], fn)
	}

	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		logger.Log.Debug("redis transaction conflict, retrying", "component", "redis", "key", key, "attempt", attempt+1)
	}
	if err == nil {
		return nil
	}

	var domainErr *internal_errors.ErrorWithStatusCode
	if errors.As(err, &domainErr) {
		return err
	}
	return internal_errors.StoreError(err, "write")
}

func (s *Storage) mutateRoot(ctx context.Context, tx *redis.Tx, key string, fn func(any, []string) (any, error)) error {
	fields, err := tx.HGetAll(ctx, key).Result()
	if err != nil {
		return err
	}
	var doc any
	if len(fields) > 0 {
		if err := json.Unmarshal(encodeHash(fields), &doc); err != nil {
			return internal_errors.StoreError(err, "decode")
		}
	}

	updated, err := fn(doc, nil)
	if err != nil {
		return err
	}
	children, err := hashFields(updated)
	if err != nil {
		return err
	}

	_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(children) > 0 {
			p.HSet(ctx, key, children)
		}
		return nil
	})
	return err
}

func (s *Storage) mutateField(ctx context.Context, tx *redis.Tx, key, field string, rest []string, fn func(any, []string) (any, error)) error {
	var child any
	raw, err := tx.HGet(ctx, key, field).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(raw), &child); err != nil {
			return internal_errors.StoreError(err, "decode")
		}
	}

	updated, err := fn(child, rest)
	if err != nil {
		return err
	}

	if updated == nil {
		if child == nil {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HDel(ctx, key, field)
			return nil
		})
		return err
	}

	data, err := tree.Encode(updated)
	if err != nil {
		return internal_errors.StoreError(err, "encode")
	}
	_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, field, string(data))
		return nil
	})
	return err
}

// hashFields flattens a collection document into hash fields.
func hashFields(doc any) (map[string]any, error) {
	children := make(map[string]any)
	switch d := doc.(type) {
	case nil:
	case map[string]any:
		for k, v := range d {
			if v == nil {
				continue
			}
			data, err := tree.Encode(v)
			if err != nil {
				return nil, internal_errors.StoreError(err, "encode")
			}
			children[k] = string(data)
		}
	case []any:
		for i, v := range d {
			if v == nil {
				continue
			}
			data, err := tree.Encode(v)
			if err != nil {
				return nil, internal_errors.StoreError(err, "encode")
			}
			children[strconv.Itoa(i)] = string(data)
		}
	default:
		return nil, internal_errors.ParseError("collection value must be an object or an array")
	}
	return children, nil
}

// encodeHash rebuilds the collection object from hash fields. Hashes are
// unordered, so keys follow tree.SortKeys.
func encodeHash(fields map[string]string) json.RawMessage {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	tree.SortKeys(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		b.Write(name)
		b.WriteByte(':')
		b.WriteString(fields[k])
	}
	b.WriteByte('}')
	return json.RawMessage(b.String())
}
