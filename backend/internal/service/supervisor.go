package service

import (
	"context"
	"encoding/json"

	"github.com/microcosm-cc/bluemonday"
	"github.com/staffhub/staffhub/backend/internal/events"
	"github.com/staffhub/staffhub/backend/internal/storage/tree"
	"github.com/staffhub/staffhub/shared/domain"
	"github.com/staffhub/staffhub/shared/errors"
	"github.com/staffhub/staffhub/shared/logger"
	"github.com/staffhub/staffhub/shared/middleware/metrics"
)

// Top-level store collections.
const (
	UsersCollection      = "User"
	UserSkillsCollection = "UserSkills"
)

// to mock service in tests
type SupervisorService interface {
	IsSupervisor(ctx context.Context, id domain.HashedEmail) (bool, error)
	UsersInScope(ctx context.Context, supervisor domain.HashedEmail) ([]domain.User, error)

	PendingRegistrations(ctx context.Context) ([]domain.User, error)
	ApproveRegistration(ctx context.Context, actor, id domain.HashedEmail) error
	RejectRegistration(ctx context.Context, actor, id domain.HashedEmail) error

	PendingEdits(ctx context.Context, supervisor domain.HashedEmail) ([]domain.User, error)
	ApproveProfileEdit(ctx context.Context, supervisor, id domain.HashedEmail) error
	RejectProfileEdit(ctx context.Context, supervisor, id domain.HashedEmail) error

	BlockedUsers(ctx context.Context) ([]domain.User, error)
	ApproveBlockAppeal(ctx context.Context, actor, id domain.HashedEmail) error
	RejectBlockAppeal(ctx context.Context, actor, id domain.HashedEmail) error

	UsersWithSkill(ctx context.Context, skillId string) ([]domain.User, error)
}

// TreeStorage is the subset of tree.Store the service needs.
type TreeStorage interface {
	Get(ctx context.Context, path tree.Path) (json.RawMessage, error)
	Update(ctx context.Context, path tree.Path, fields map[string]any) error
	Remove(ctx context.Context, path tree.Path) error
}

type IdentityHasher interface {
	HashedEmail(email string) domain.HashedEmail
}

type Supervisor struct {
	storage   TreeStorage
	hasher    IdentityHasher
	publisher events.Publisher
	sanitizer *bluemonday.Policy
}

func NewSupervisor(storage TreeStorage, hasher IdentityHasher, publisher events.Publisher) SupervisorService {
	return &Supervisor{
		storage:   storage,
		hasher:    hasher,
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func userPath(id domain.HashedEmail, fields ...string) tree.Path {
	return tree.Path{UsersCollection, id.String()}.Child(fields...)
}

// IsSupervisor reports whether the record at id carries the supervisor role.
// A missing record is a NotFound error, never false.
func (s *Supervisor) IsSupervisor(ctx context.Context, id domain.HashedEmail) (ok bool, err error) {
	defer func() { metrics.ObserveModeration("is_supervisor", err) }()

	raw, err := s.storage.Get(ctx, userPath(id))
	if err != nil {
		return false, err
	}

	var rec struct {
		RoleId domain.Role `json:"roleId"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.Log.Warn("user record is not an object", "component", "supervisor", "hashed_email", id, "error", err)
		return false, nil
	}
	return rec.RoleId.IsSupervisor(), nil
}

// UsersInScope resolves the supervised-user list of supervisor into records,
// in list order. Listed users without a record are skipped.
func (s *Supervisor) UsersInScope(ctx context.Context, supervisor domain.HashedEmail) (users []domain.User, err error) {
	defer func() { metrics.ObserveModeration("users_in_scope", err) }()

	ids, err := s.scope(ctx, supervisor)
	if err != nil {
		return nil, err
	}

	users = make([]domain.User, 0, len(ids))
	for _, id := range ids {
		raw, err := s.storage.Get(ctx, userPath(id))
		if errors.IsNotFound(err) {
			logger.Log.Warn("supervised user has no record, skipping", "component", "supervisor", "supervisor", supervisor, "hashed_email", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		user, issues, err := domain.DecodeUser(id, raw)
		logDecodeIssues(issues)
		if err != nil {
			logger.Log.Warn("supervised user record is malformed, skipping", "component", "supervisor", "hashed_email", id, "error", err)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// scope checks the supervisor role and returns the identities of the
// supervised-user list, in list order. Unreadable list entries are skipped,
// and a list that is not a collection gives an empty scope.
func (s *Supervisor) scope(ctx context.Context, supervisor domain.HashedEmail) ([]domain.HashedEmail, error) {
	ok, err := s.IsSupervisor(ctx, supervisor)
	if errors.IsNotFound(err) {
		return nil, errors.Unauthorized(err, "no user record for %s", supervisor)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Unauthorized(nil, "%s is not a supervisor", supervisor)
	}

	raw, err := s.storage.Get(ctx, userPath(supervisor, domain.FieldUsersList))
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	emails, skipped, err := domain.DecodeUsersList(raw)
	if err != nil {
		logger.Log.Warn("users list is malformed, scope is empty", "component", "supervisor", "supervisor", supervisor, "error", err)
		return nil, nil
	}
	for _, e := range skipped {
		logger.Log.Warn("skipping malformed users list entry", "component", "supervisor", "supervisor", supervisor, "key", e.Key, "error", e.Err)
	}

	ids := make([]domain.HashedEmail, 0, len(emails))
	for _, email := range emails {
		ids = append(ids, s.hasher.HashedEmail(email))
	}
	return ids, nil
}

// requireInScope fails with Unauthorized unless id is supervised by supervisor.
func (s *Supervisor) requireInScope(ctx context.Context, supervisor, id domain.HashedEmail) error {
	ids, err := s.scope(ctx, supervisor)
	if err != nil {
		return err
	}
	for _, scoped := range ids {
		if scoped == id {
			return nil
		}
	}
	return errors.Unauthorized(nil, "%s is not in the scope of %s", id, supervisor)
}

func (s *Supervisor) PendingRegistrations(ctx context.Context) (users []domain.User, err error) {
	defer func() { metrics.ObserveModeration("pending_registrations", err) }()

	return s.filterUsers(ctx, func(u domain.User) bool { return !u.ApprovedStatus })
}

func (s *Supervisor) BlockedUsers(ctx context.Context) (users []domain.User, err error) {
	defer func() { metrics.ObserveModeration("blocked_users", err) }()

	return s.filterUsers(ctx, func(u domain.User) bool { return u.BlockedStatus })
}

// ApproveRegistration marks the record approved. Approving twice is a no-op;
// a missing record is NotFound and nothing is created.
func (s *Supervisor) ApproveRegistration(ctx context.Context, actor, id domain.HashedEmail) (err error) {
	defer func() { metrics.ObserveModeration("approve_registration", err) }()

	if err := s.storage.Update(ctx, userPath(id), map[string]any{
		domain.FieldApprovedStatus: true,
	}); err != nil {
		return err
	}
	s.publish(ctx, domain.EventRegistrationApproved, id, actor)
	return nil
}

// RejectRegistration deletes the whole record. Rejecting a missing record
// succeeds and publishes nothing.
func (s *Supervisor) RejectRegistration(ctx context.Context, actor, id domain.HashedEmail) (err error) {
	defer func() { metrics.ObserveModeration("reject_registration", err) }()

	removed, err := s.removeIfPresent(ctx, userPath(id))
	if err != nil || !removed {
		return err
	}
	s.publish(ctx, domain.EventRegistrationRejected, id, actor)
	return nil
}

// PendingEdits returns the supervised users with a pending profile edit.
// Edit values are stripped of markup.
func (s *Supervisor) PendingEdits(ctx context.Context, supervisor domain.HashedEmail) (users []domain.User, err error) {
	defer func() { metrics.ObserveModeration("pending_edits", err) }()

	scoped, err := s.UsersInScope(ctx, supervisor)
	if err != nil {
		return nil, err
	}

	users = make([]domain.User, 0)
	for _, u := range scoped {
		if !u.HasPendingEdits() {
			continue
		}
		for k, v := range u.Edits {
			u.Edits[k] = s.sanitizer.Sanitize(v)
		}
		users = append(users, u)
	}
	return users, nil
}

// ApproveProfileEdit copies the editable fields of the pending edit onto the
// record and clears the edit, in one write.
func (s *Supervisor) ApproveProfileEdit(ctx context.Context, supervisor, id domain.HashedEmail) (err error) {
	defer func() { metrics.ObserveModeration("approve_profile_edit", err) }()

	if err := s.requireInScope(ctx, supervisor, id); err != nil {
		return err
	}

	raw, err := s.storage.Get(ctx, userPath(id))
	if err != nil {
		return err
	}
	user, issues, err := domain.DecodeUser(id, raw)
	logDecodeIssues(issues)
	if err != nil {
		return err
	}
	if !user.HasPendingEdits() {
		return errors.NotFound("no pending edit for %s", id)
	}

	fields := map[string]any{domain.FieldEdits: nil}
	for k, v := range user.Edits {
		if !domain.IsEditableField(k) {
			logger.Log.Warn("dropping non-editable field from profile edit", "component", "supervisor", "hashed_email", id, "field", k)
			continue
		}
		fields[k] = s.sanitizer.Sanitize(v)
	}
	if err := s.storage.Update(ctx, userPath(id), fields); err != nil {
		return err
	}
	s.publish(ctx, domain.EventEditApproved, id, supervisor)
	return nil
}

// RejectProfileEdit discards the pending edit. Rejecting when none is
// pending succeeds and publishes nothing.
func (s *Supervisor) RejectProfileEdit(ctx context.Context, supervisor, id domain.HashedEmail) (err error) {
	defer func() { metrics.ObserveModeration("reject_profile_edit", err) }()

	if err := s.requireInScope(ctx, supervisor, id); err != nil {
		return err
	}
	removed, err := s.removeIfPresent(ctx, userPath(id, domain.FieldEdits))
	if err != nil || !removed {
		return err
	}
	s.publish(ctx, domain.EventEditRejected, id, supervisor)
	return nil
}

// ApproveBlockAppeal unblocks the user and resets the failed-login counter
// in a single atomic update.
func (s *Supervisor) ApproveBlockAppeal(ctx context.Context, actor, id domain.HashedEmail) (err error) {
	defer func() { metrics.ObserveModeration("approve_block_appeal", err) }()

	if err := s.storage.Update(ctx, userPath(id), map[string]any{
		domain.FieldBlockedStatus:      false,
		domain.FieldFailedLoginCounter: 0,
	}); err != nil {
		return err
	}
	s.publish(ctx, domain.EventBlockApproved, id, actor)
	return nil
}

// RejectBlockAppeal deletes the whole record. Rejecting a missing record
// succeeds and publishes nothing.
func (s *Supervisor) RejectBlockAppeal(ctx context.Context, actor, id domain.HashedEmail) (err error) {
	defer func() { metrics.ObserveModeration("reject_block_appeal", err) }()

	removed, err := s.removeIfPresent(ctx, userPath(id))
	if err != nil || !removed {
		return err
	}
	s.publish(ctx, domain.EventBlockRejected, id, actor)
	return nil
}

// UsersWithSkill joins the skill links against the user collection. Duplicate
// links give duplicate users; links to missing users are skipped.
func (s *Supervisor) UsersWithSkill(ctx context.Context, skillId string) (users []domain.User, err error) {
	defer func() { metrics.ObserveModeration("users_with_skill", err) }()

	if skillId == "" {
		return nil, errors.ParseError("skillId is required")
	}

	all, err := s.allUsers(ctx)
	if err != nil {
		return nil, err
	}
	byId := make(map[domain.HashedEmail]domain.User, len(all))
	for _, u := range all {
		byId[u.HashedEmail] = u
	}

	raw, err := s.storage.Get(ctx, tree.Path{UserSkillsCollection})
	if errors.IsNotFound(err) {
		return []domain.User{}, nil
	}
	if err != nil {
		return nil, err
	}
	links, skipped, err := domain.DecodeUserSkills(raw)
	if err != nil {
		return nil, err
	}
	for _, e := range skipped {
		logger.Log.Warn("skipping malformed skill link", "component", "supervisor", "key", e.Key, "error", e.Err)
	}

	users = make([]domain.User, 0)
	for _, link := range links {
		if link.SkillId != skillId {
			continue
		}
		user, ok := byId[link.UserHash]
		if !ok {
			logger.Log.Warn("skill link points to missing user, skipping", "component", "supervisor", "hashed_email", link.UserHash, "skill_id", skillId)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// allUsers reads and decodes the whole User collection. An absent
// collection is empty.
func (s *Supervisor) allUsers(ctx context.Context) ([]domain.User, error) {
	raw, err := s.storage.Get(ctx, tree.Path{UsersCollection})
	if errors.IsNotFound(err) {
		return []domain.User{}, nil
	}
	if err != nil {
		return nil, err
	}
	users, issues, err := domain.DecodeUserCollection(raw)
	if err != nil {
		return nil, err
	}
	logDecodeIssues(issues)
	return users, nil
}

// logDecodeIssues reports dropped records and zeroed fields.
func logDecodeIssues(issues []domain.DecodeError) {
	for _, e := range issues {
		if e.Field == "" {
			logger.Log.Warn("skipping malformed user record", "component", "supervisor", "hashed_email", e.Key, "error", e.Err)
			continue
		}
		logger.Log.Warn("ignoring malformed user field", "component", "supervisor", "hashed_email", e.Key, "field", e.Field, "error", e.Err)
	}
}

// removeIfPresent deletes the node at path and reports whether there was
// one. Removal stays idempotent, the report only decides whether an event
// is due.
func (s *Supervisor) removeIfPresent(ctx context.Context, path tree.Path) (bool, error) {
	if _, err := s.storage.Get(ctx, path); err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := s.storage.Remove(ctx, path); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Supervisor) filterUsers(ctx context.Context, keep func(domain.User) bool) ([]domain.User, error) {
	all, err := s.allUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0)
	for _, u := range all {
		if keep(u) {
			users = append(users, u)
		}
	}
	return users, nil
}

// publish emits a moderation event. Delivery failures are logged and never
// undo or fail the applied transition.
func (s *Supervisor) publish(ctx context.Context, eventType string, id, actor domain.HashedEmail) {
	if s.publisher == nil {
		return
	}
	ev := events.NewModerationEvent(eventType, id, actor)
	if err := events.PublishModeration(ctx, s.publisher, ev); err != nil {
		logger.Log.Error("failed to publish moderation event", "component", "supervisor", "event_type", eventType, "hashed_email", id, "error", err)
	}
}
