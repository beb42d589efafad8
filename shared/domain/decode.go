package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Entry is one child of a JSON object or array, in document order.
// Array children are keyed by their decimal index.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// IsNull reports whether raw is empty or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeEntries splits a JSON object or array into its children, keeping the
// order they appear in the document. Null yields no entries.
func DecodeEntries(raw json.RawMessage) ([]Entry, error) {
	if IsNull(raw) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}

	var entries []Entry
	switch tok {
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("decode collection key: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("decode collection: unexpected key %v", keyTok)
			}
			var value json.RawMessage
			if err := dec.Decode(&value); err != nil {
				return nil, fmt.Errorf("decode collection value %q: %w", key, err)
			}
			entries = append(entries, Entry{Key: key, Value: value})
		}
	case json.Delim('['):
		for i := 0; dec.More(); i++ {
			var value json.RawMessage
			if err := dec.Decode(&value); err != nil {
				return nil, fmt.Errorf("decode collection element %d: %w", i, err)
			}
			entries = append(entries, Entry{Key: strconv.Itoa(i), Value: value})
		}
	default:
		return nil, fmt.Errorf("decode collection: expected object or array, got %v", tok)
	}
	return entries, nil
}

// DecodeUser converts a stored user document into a User tagged with id.
// Unknown fields are ignored; absent flags decode as false and an absent
// counter as zero.
//
// Only a record that is not an object, or whose approvedStatus or
// blockedStatus cannot be read, is an error. Any other malformed field is
// left at its zero value and reported in issues, so the record still shows
// up in the moderation queues.
func DecodeUser(id HashedEmail, raw json.RawMessage) (user User, issues []DecodeError, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return User{}, nil, fmt.Errorf("user %s: record is not an object", id)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return User{}, nil, fmt.Errorf("user %s: %w", id, err)
	}

	user = User{HashedEmail: id}
	if err := decodeField(fields[FieldApprovedStatus], &user.ApprovedStatus); err != nil {
		return User{}, nil, fmt.Errorf("user %s: %s: %w", id, FieldApprovedStatus, err)
	}
	if err := decodeField(fields[FieldBlockedStatus], &user.BlockedStatus); err != nil {
		return User{}, nil, fmt.Errorf("user %s: %s: %w", id, FieldBlockedStatus, err)
	}

	bad := func(field string, err error) {
		issues = append(issues, DecodeError{Key: string(id), Field: field, Err: err})
	}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"email", &user.Email},
		{"firstName", &user.FirstName},
		{"lastName", &user.LastName},
		{"phoneNumber", &user.PhoneNumber},
		{"jobTitle", &user.JobTitle},
	} {
		if err := decodeField(fields[f.name], f.dst); err != nil {
			*f.dst = ""
			bad(f.name, err)
		}
	}

	// Role never fails, unreadable values become RoleUnknown
	_ = decodeField(fields[FieldRoleId], &user.RoleId)

	var counter int
	switch err := decodeField(fields[FieldFailedLoginCounter], &counter); {
	case err != nil:
		bad(FieldFailedLoginCounter, err)
	case counter < 0:
		bad(FieldFailedLoginCounter, fmt.Errorf("negative value %d", counter))
	default:
		user.FailedLoginCounter = counter
	}

	edits, err := decodeEdits(fields[FieldEdits])
	if err != nil {
		bad(FieldEdits, err)
	}
	user.Edits = edits

	list, skipped, err := DecodeUsersList(fields[FieldUsersList])
	if err != nil {
		bad(FieldUsersList, err)
	}
	for _, s := range skipped {
		bad(FieldUsersList, s)
	}
	user.UsersList = list

	return user, issues, nil
}

// decodeField unmarshals raw into dst unless it is absent or null.
func decodeField(raw json.RawMessage, dst any) error {
	if IsNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// decodeEdits reads the pending edit sub-document. String values are kept
// as is, other scalars keep their JSON text.
func decodeEdits(raw json.RawMessage) (map[string]string, error) {
	if IsNull(raw) {
		return nil, nil
	}
	entries, err := DecodeEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("edits: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	edits := make(map[string]string, len(entries))
	for _, e := range entries {
		if IsNull(e.Value) {
			continue
		}
		var s string
		if err := json.Unmarshal(e.Value, &s); err != nil {
			s = string(bytes.TrimSpace(e.Value))
		}
		edits[e.Key] = s
	}
	if len(edits) == 0 {
		return nil, nil
	}
	return edits, nil
}

// DecodeUsersList reads a supervised-user list (index -> plaintext email),
// stored either as an object or an array. Null slots and empty strings are
// skipped; order is document order. Entries that are not strings are left
// out and reported in skipped; only a list that is not a collection is an
// error.
func DecodeUsersList(raw json.RawMessage) (emails []string, skipped []DecodeError, err error) {
	entries, err := DecodeEntries(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("usersList: %w", err)
	}
	for _, e := range entries {
		if IsNull(e.Value) {
			continue
		}
		var email string
		if err := json.Unmarshal(e.Value, &email); err != nil {
			skipped = append(skipped, DecodeError{Key: e.Key, Err: fmt.Errorf("expected string, got %s", bytes.TrimSpace(e.Value))})
			continue
		}
		if email == "" {
			continue
		}
		emails = append(emails, email)
	}
	return emails, skipped, nil
}

// DecodeUserSkill reads one UserSkills element. Both fields are required.
func DecodeUserSkill(raw json.RawMessage) (UserSkill, error) {
	var rec struct {
		UserHash *string `json:"userHash"`
		SkillId  any     `json:"skillId"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return UserSkill{}, fmt.Errorf("user skill: %w", err)
	}
	if rec.UserHash == nil || *rec.UserHash == "" {
		return UserSkill{}, fmt.Errorf("user skill: missing userHash")
	}

	// skillId is written as a string or a number depending on the client
	var skillId string
	switch v := rec.SkillId.(type) {
	case string:
		skillId = v
	case float64:
		skillId = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if skillId == "" {
		return UserSkill{}, fmt.Errorf("user skill: missing skillId")
	}
	return UserSkill{UserHash: HashedEmail(*rec.UserHash), SkillId: skillId}, nil
}

// DecodeError describes one collection element that could not be decoded.
// Field is set when only that field of the element was unreadable and the
// element itself was kept.
type DecodeError struct {
	Key   string
	Field string
	Err   error
}

func (e DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("element %s field %s: %v", e.Key, e.Field, e.Err)
	}
	return fmt.Sprintf("element %s: %v", e.Key, e.Err)
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

// DecodeUserCollection decodes the whole User collection in document order,
// tagging each record with its key. Records DecodeUser rejects are left out
// of users and reported in issues with an empty Field; unreadable fields of
// kept records are reported with Field set. Only a collection that is not an
// object or array is an error.
func DecodeUserCollection(raw json.RawMessage) (users []User, issues []DecodeError, err error) {
	entries, err := DecodeEntries(raw)
	if err != nil {
		return nil, nil, err
	}
	users = make([]User, 0, len(entries))
	for _, e := range entries {
		if IsNull(e.Value) {
			continue
		}
		user, fieldIssues, err := DecodeUser(HashedEmail(e.Key), e.Value)
		issues = append(issues, fieldIssues...)
		if err != nil {
			issues = append(issues, DecodeError{Key: e.Key, Err: err})
			continue
		}
		users = append(users, user)
	}
	return users, issues, nil
}

// DecodeUserSkills decodes the UserSkills association collection, stored as
// an array or an object. Null slots are ignored, incomplete links are
// reported in skipped.
func DecodeUserSkills(raw json.RawMessage) (skills []UserSkill, skipped []DecodeError, err error) {
	entries, err := DecodeEntries(raw)
	if err != nil {
		return nil, nil, err
	}
	skills = make([]UserSkill, 0, len(entries))
	for _, e := range entries {
		if IsNull(e.Value) {
			continue
		}
		skill, err := DecodeUserSkill(e.Value)
		if err != nil {
			skipped = append(skipped, DecodeError{Key: e.Key, Err: err})
			continue
		}
		skills = append(skills, skill)
	}
	return skills, skipped, nil
}
