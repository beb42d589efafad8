package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/staffhub/staffhub/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleUnmarshal(t *testing.T) {
	tests := []struct {
		raw      string
		expected Role
	}{
		{`2`, RoleSupervisor},
		{`"2"`, RoleSupervisor},
		{`" 2 "`, RoleSupervisor},
		{`1`, RoleOrdinary},
		{`"1"`, RoleOrdinary},
		{`2.0`, RoleSupervisor},
		{`2.5`, RoleUnknown},
		{`2.9`, RoleUnknown},
		{`1.9999`, RoleUnknown},
		{`1e300`, RoleUnknown},
		{`-1e300`, RoleUnknown},
		{`null`, RoleUnknown},
		{`"admin"`, RoleUnknown},
		{`true`, RoleUnknown},
		{`{}`, RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var r Role
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			assert.Equal(t, tt.expected, r)
		})
	}
}

func TestParseHashedEmail(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		h, err := ParseHashedEmail("abc123")
		require.NoError(t, err)
		assert.Equal(t, HashedEmail("abc123"), h)
	})

	for _, bad := range []string{"", "a/b", "a.b", "a#b", "a$b", "a[b", "a]b", "a\nb", strings.Repeat("a", 129)} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := ParseHashedEmail(bad)
			require.Error(t, err)
			assert.True(t, errors.IsParse(err))
		})
	}
}

func TestDecodeEntries(t *testing.T) {
	t.Run("object keeps document order", func(t *testing.T) {
		entries, err := DecodeEntries(json.RawMessage(`{"z":1,"a":2,"m":null}`))
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "z", entries[0].Key)
		assert.Equal(t, "a", entries[1].Key)
		assert.Equal(t, "m", entries[2].Key)
		assert.True(t, IsNull(entries[2].Value))
	})

	t.Run("array keyed by index", func(t *testing.T) {
		entries, err := DecodeEntries(json.RawMessage(`["x", null, "y"]`))
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "0", entries[0].Key)
		assert.Equal(t, "2", entries[2].Key)
	})

	t.Run("null is empty", func(t *testing.T) {
		entries, err := DecodeEntries(json.RawMessage(`null`))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("scalar is an error", func(t *testing.T) {
		_, err := DecodeEntries(json.RawMessage(`42`))
		assert.Error(t, err)
	})
}

func TestDecodeUser(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		raw := json.RawMessage(`{
			"email": "boss@example.com",
			"firstName": "Ana",
			"roleId": "2",
			"approvedStatus": true,
			"blockedStatus": true,
			"failedLoginCounter": 3,
			"password": "ignored",
			"edits": {"lastName": "Pop", "jobTitle": null},
			"usersList": {"1": "b@example.com", "0": "a@example.com"}
		}`)
		user, issues, err := DecodeUser("h1", raw)
		require.NoError(t, err)
		assert.Empty(t, issues)

		assert.Equal(t, HashedEmail("h1"), user.HashedEmail)
		assert.Equal(t, "boss@example.com", user.Email)
		assert.True(t, user.RoleId.IsSupervisor())
		assert.True(t, user.ApprovedStatus)
		assert.True(t, user.BlockedStatus)
		assert.Equal(t, 3, user.FailedLoginCounter)
		assert.Equal(t, map[string]string{"lastName": "Pop"}, user.Edits)
		assert.Equal(t, []string{"b@example.com", "a@example.com"}, user.UsersList)
	})

	t.Run("absent fields default", func(t *testing.T) {
		user, _, err := DecodeUser("abc", json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.False(t, user.ApprovedStatus)
		assert.False(t, user.BlockedStatus)
		assert.Zero(t, user.FailedLoginCounter)
		assert.Equal(t, RoleUnknown, user.RoleId)
		assert.False(t, user.HasPendingEdits())
		assert.Nil(t, user.UsersList)
	})

	t.Run("users list as array", func(t *testing.T) {
		user, _, err := DecodeUser("abc", json.RawMessage(`{"usersList": [null, "a@x.com", ""]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"a@x.com"}, user.UsersList)
	})

	t.Run("empty edits are not pending", func(t *testing.T) {
		user, _, err := DecodeUser("abc", json.RawMessage(`{"edits": {}}`))
		require.NoError(t, err)
		assert.False(t, user.HasPendingEdits())
	})

	t.Run("non-object record", func(t *testing.T) {
		_, _, err := DecodeUser("abc", json.RawMessage(`"oops"`))
		assert.Error(t, err)
	})

	t.Run("wrong flag type", func(t *testing.T) {
		_, _, err := DecodeUser("abc", json.RawMessage(`{"approvedStatus": "yes"}`))
		assert.Error(t, err)
		_, _, err = DecodeUser("abc", json.RawMessage(`{"blockedStatus": 1}`))
		assert.Error(t, err)
	})

	t.Run("malformed auxiliary fields keep the record", func(t *testing.T) {
		tests := []struct {
			name  string
			raw   string
			field string
		}{
			{"negative counter", `{"blockedStatus": true, "failedLoginCounter": -1}`, FieldFailedLoginCounter},
			{"string counter", `{"blockedStatus": true, "failedLoginCounter": "0"}`, FieldFailedLoginCounter},
			{"fractional counter", `{"blockedStatus": true, "failedLoginCounter": 1.5}`, FieldFailedLoginCounter},
			{"scalar edits", `{"blockedStatus": true, "edits": "see ticket"}`, FieldEdits},
			{"scalar users list", `{"blockedStatus": true, "usersList": "a@x.com"}`, FieldUsersList},
			{"numeric name", `{"blockedStatus": true, "firstName": 7}`, "firstName"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				user, issues, err := DecodeUser("abc", json.RawMessage(tt.raw))
				require.NoError(t, err)
				assert.True(t, user.BlockedStatus)
				assert.Zero(t, user.FailedLoginCounter)
				assert.False(t, user.HasPendingEdits())
				assert.Empty(t, user.UsersList)
				assert.Empty(t, user.FirstName)

				require.Len(t, issues, 1)
				assert.Equal(t, "abc", issues[0].Key)
				assert.Equal(t, tt.field, issues[0].Field)
			})
		}
	})

	t.Run("non-string users list entry", func(t *testing.T) {
		user, issues, err := DecodeUser("abc", json.RawMessage(`{"usersList": ["a@x.com", 42, "b@x.com"]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"a@x.com", "b@x.com"}, user.UsersList)
		require.Len(t, issues, 1)
		assert.Equal(t, FieldUsersList, issues[0].Field)
		assert.ErrorContains(t, issues[0], "element 1")
	})
}

func TestDecodeUserSkill(t *testing.T) {
	t.Run("string skill id", func(t *testing.T) {
		s, err := DecodeUserSkill(json.RawMessage(`{"userHash":"u1","skillId":"go"}`))
		require.NoError(t, err)
		assert.Equal(t, UserSkill{UserHash: "u1", SkillId: "go"}, s)
	})

	t.Run("numeric skill id", func(t *testing.T) {
		s, err := DecodeUserSkill(json.RawMessage(`{"userHash":"u1","skillId":7}`))
		require.NoError(t, err)
		assert.Equal(t, "7", s.SkillId)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := DecodeUserSkill(json.RawMessage(`{"skillId":"go"}`))
		assert.Error(t, err)
		_, err = DecodeUserSkill(json.RawMessage(`{"userHash":"u1"}`))
		assert.Error(t, err)
	})
}

func TestDecodeUserCollection(t *testing.T) {
	raw := json.RawMessage(`{
		"zzz": {"approvedStatus": false},
		"abc": {"approvedStatus": true, "roleId": "2"},
		"gone": null,
		"bad": "not a record",
		"odd": {"approvedStatus": false, "edits": "see ticket"}
	}`)

	users, issues, err := DecodeUserCollection(raw)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, HashedEmail("zzz"), users[0].HashedEmail)
	assert.Equal(t, HashedEmail("abc"), users[1].HashedEmail)
	assert.True(t, users[1].RoleId.IsSupervisor())
	assert.Equal(t, HashedEmail("odd"), users[2].HashedEmail)
	require.Len(t, issues, 2)
	assert.Equal(t, "bad", issues[0].Key)
	assert.Empty(t, issues[0].Field)
	assert.Equal(t, "odd", issues[1].Key)
	assert.Equal(t, FieldEdits, issues[1].Field)

	t.Run("absent collection", func(t *testing.T) {
		users, issues, err := DecodeUserCollection(nil)
		require.NoError(t, err)
		assert.Empty(t, users)
		assert.Empty(t, issues)
	})

	t.Run("scalar collection", func(t *testing.T) {
		_, _, err := DecodeUserCollection(json.RawMessage(`42`))
		assert.Error(t, err)
	})
}

func TestDecodeUserSkills(t *testing.T) {
	raw := json.RawMessage(`[
		{"userHash": "u1", "skillId": "go"},
		null,
		{"userHash": "u2"},
		{"userHash": "u1", "skillId": "go"}
	]`)

	skills, skipped, err := DecodeUserSkills(raw)
	require.NoError(t, err)
	assert.Equal(t, []UserSkill{{UserHash: "u1", SkillId: "go"}, {UserHash: "u1", SkillId: "go"}}, skills)
	require.Len(t, skipped, 1)
	assert.Equal(t, "2", skipped[0].Key)
}
