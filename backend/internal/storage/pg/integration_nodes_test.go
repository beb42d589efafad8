package pg

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/staffhub/staffhub/backend/internal/storage/tree"
	internal_errors "github.com/staffhub/staffhub/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T) {
	t.Helper()
	resetRoot(t, "User")
	err := storage.Set(context.Background(), tree.Path{"User"}, map[string]any{
		"abc": map[string]any{"approvedStatus": false, "roleId": 1},
		"sup": map[string]any{
			"approvedStatus": true,
			"roleId":         2,
			"usersList":      []string{"a@example.com", "b@example.com"},
		},
		"blk": map[string]any{"approvedStatus": true, "blockedStatus": true, "failedLoginCounter": 3},
	})
	require.NoError(t, err)
}

func TestGet(t *testing.T) {
	seedUsers(t)
	ctx := context.Background()

	t.Run("whole collection", func(t *testing.T) {
		raw, err := storage.Get(ctx, tree.Path{"User"})
		require.NoError(t, err)
		var users map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &users))
		assert.Len(t, users, 3)
	})

	t.Run("nested field", func(t *testing.T) {
		raw, err := storage.Get(ctx, tree.Path{"User", "sup", "roleId"})
		require.NoError(t, err)
		assert.JSONEq(t, `2`, string(raw))
	})

	t.Run("array element by index", func(t *testing.T) {
		raw, err := storage.Get(ctx, tree.Path{"User", "sup", "usersList", "1"})
		require.NoError(t, err)
		assert.JSONEq(t, `"b@example.com"`, string(raw))
	})

	t.Run("missing child", func(t *testing.T) {
		_, err := storage.Get(ctx, tree.Path{"User", "nobody"})
		assert.True(t, internal_errors.IsNotFound(err))
	})

	t.Run("missing root", func(t *testing.T) {
		resetRoot(t, "Nothing")
		_, err := storage.Get(ctx, tree.Path{"Nothing"})
		assert.True(t, internal_errors.IsNotFound(err))
	})

	t.Run("invalid path never reaches the db", func(t *testing.T) {
		_, err := storage.Get(ctx, tree.Path{"User", "a.b"})
		assert.True(t, internal_errors.IsParse(err))
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("writes both fields atomically", func(t *testing.T) {
		seedUsers(t)
		err := storage.Update(ctx, tree.Path{"User", "blk"}, map[string]any{"blockedStatus": false, "failedLoginCounter": 0})
		require.NoError(t, err)

		raw, err := storage.Get(ctx, tree.Path{"User", "blk", "blockedStatus"})
		require.NoError(t, err)
		assert.JSONEq(t, `false`, string(raw))

		raw, err = storage.Get(ctx, tree.Path{"User", "blk", "failedLoginCounter"})
		require.NoError(t, err)
		assert.JSONEq(t, `0`, string(raw))
	})

	t.Run("missing node is not created", func(t *testing.T) {
		seedUsers(t)
		err := storage.Update(ctx, tree.Path{"User", "ghost"}, map[string]any{"approvedStatus": true})
		assert.True(t, internal_errors.IsNotFound(err))

		_, err = storage.Get(ctx, tree.Path{"User", "ghost"})
		assert.True(t, internal_errors.IsNotFound(err))
	})

	t.Run("nil removes child", func(t *testing.T) {
		seedUsers(t)
		err := storage.Update(ctx, tree.Path{"User", "sup"}, map[string]any{"usersList": nil})
		require.NoError(t, err)

		_, err = storage.Get(ctx, tree.Path{"User", "sup", "usersList"})
		assert.True(t, internal_errors.IsNotFound(err))
	})

	t.Run("concurrent updates do not lose writes", func(t *testing.T) {
		seedUsers(t)
		var wg sync.WaitGroup
		fields := []string{"firstName", "lastName", "jobTitle", "phoneNumber"}
		for _, f := range fields {
			wg.Add(1)
			go func(field string) {
				defer wg.Done()
				assert.NoError(t, storage.Update(ctx, tree.Path{"User", "abc"}, map[string]any{field: "x"}))
			}(f)
		}
		wg.Wait()

		for _, f := range fields {
			_, err := storage.Get(ctx, tree.Path{"User", "abc", f})
			assert.NoError(t, err, f)
		}
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	seedUsers(t)

	require.NoError(t, storage.Remove(ctx, tree.Path{"User", "abc"}))
	_, err := storage.Get(ctx, tree.Path{"User", "abc"})
	assert.True(t, internal_errors.IsNotFound(err))

	// second remove is a success
	require.NoError(t, storage.Remove(ctx, tree.Path{"User", "abc"}))

	// removing the last children drops the root row
	require.NoError(t, storage.Remove(ctx, tree.Path{"User", "sup"}))
	require.NoError(t, storage.Remove(ctx, tree.Path{"User", "blk"}))
	_, err = storage.Get(ctx, tree.Path{"User"})
	assert.True(t, internal_errors.IsNotFound(err))
}

func TestSetNested(t *testing.T) {
	ctx := context.Background()
	resetRoot(t, "UserSkills")

	require.NoError(t, storage.Set(ctx, tree.Path{"UserSkills", "0"}, map[string]string{"userHash": "abc", "skillId": "go"}))
	require.NoError(t, storage.Set(ctx, tree.Path{"UserSkills", "1"}, map[string]string{"userHash": "sup", "skillId": "sql"}))

	raw, err := storage.Get(ctx, tree.Path{"UserSkills"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"0":{"userHash":"abc","skillId":"go"},"1":{"userHash":"sup","skillId":"sql"}}`, string(raw))
}
