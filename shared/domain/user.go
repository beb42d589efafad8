package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/staffhub/staffhub/shared/errors"
)

// Role is the roleId attribute of a user record.
type Role int

const (
	RoleUnknown    Role = 0
	RoleOrdinary   Role = 1
	RoleSupervisor Role = 2
)

func (r Role) IsSupervisor() bool {
	return r == RoleSupervisor
}

// UnmarshalJSON accepts an integral number, a numeric string or null.
// Anything else, fractional numbers included, decodes to RoleUnknown, never
// an error.
func (r *Role) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*r = RoleUnknown
		return nil
	}
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || t < math.MinInt32 || t > math.MaxInt32 {
			*r = RoleUnknown
			return nil
		}
		*r = Role(int(t))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			*r = RoleUnknown
			return nil
		}
		*r = Role(n)
	default:
		*r = RoleUnknown
	}
	return nil
}

// HashedEmail is the identity key of a User record.
// Derive it with crypto.IdentityHasher, or parse it from a request with ParseHashedEmail.
type HashedEmail string

const maxHashedEmailLen = 128

// ForbiddenKeyChars may not appear in a store key segment.
const ForbiddenKeyChars = "/.#$[]"

// ParseHashedEmail validates an identity received from outside.
func ParseHashedEmail(s string) (HashedEmail, error) {
	if s == "" {
		return "", errors.ParseError("hashedEmail is required")
	}
	if len(s) > maxHashedEmailLen {
		return "", errors.ParseError("hashedEmail is too long")
	}
	if strings.ContainsAny(s, ForbiddenKeyChars) {
		return "", errors.ParseError("hashedEmail contains forbidden characters")
	}
	for _, c := range s {
		if c < 0x20 || c == 0x7f {
			return "", errors.ParseError("hashedEmail contains control characters")
		}
	}
	return HashedEmail(s), nil
}

func (h HashedEmail) String() string {
	return string(h)
}

// User is one registered person, keyed by hashed email.
type User struct {
	HashedEmail        HashedEmail       `json:"hashedEmail"`
	Email              string            `json:"email,omitempty"`
	FirstName          string            `json:"firstName,omitempty"`
	LastName           string            `json:"lastName,omitempty"`
	PhoneNumber        string            `json:"phoneNumber,omitempty"`
	JobTitle           string            `json:"jobTitle,omitempty"`
	RoleId             Role              `json:"roleId"`
	ApprovedStatus     bool              `json:"approvedStatus"`
	BlockedStatus      bool              `json:"blockedStatus"`
	FailedLoginCounter int               `json:"failedLoginCounter"`
	Edits              map[string]string `json:"edits,omitempty"`     // pending profile changes
	UsersList          []string          `json:"usersList,omitempty"` // plaintext emails, supervisors only
}

func (u User) HasPendingEdits() bool {
	return len(u.Edits) > 0
}

// Store field names of a user record.
const (
	FieldApprovedStatus     = "approvedStatus"
	FieldBlockedStatus      = "blockedStatus"
	FieldFailedLoginCounter = "failedLoginCounter"
	FieldRoleId             = "roleId"
	FieldEdits              = "edits"
	FieldUsersList          = "usersList"
)

// EditableFields are the record fields a profile edit may change.
var EditableFields = []string{"firstName", "lastName", "phoneNumber", "jobTitle"}

func IsEditableField(name string) bool {
	for _, f := range EditableFields {
		if f == name {
			return true
		}
	}
	return false
}

// UserSkill links a user identity to a skill.
type UserSkill struct {
	UserHash HashedEmail `json:"userHash"`
	SkillId  string      `json:"skillId"`
}
