package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/staffhub/staffhub/shared/api"
	"github.com/staffhub/staffhub/shared/domain"
	mw "github.com/staffhub/staffhub/shared/middleware"
	"github.com/staffhub/staffhub/shared/utils"
)

// moderationFunc is an approve/reject operation applied by actor to id.
type moderationFunc func(ctx context.Context, actor, id domain.HashedEmail) error

// UsersInScope handles GET /v1/supervisor/users
func (h *Handler) UsersInScope(w http.ResponseWriter, r *http.Request) {
	caller, _ := mw.GetCallerFromContext(r)
	users, err := h.supervisor.UsersInScope(r.Context(), caller)
	writeUsers(w, users, err)
}

// PendingRegistrations handles GET /v1/supervisor/registrations
func (h *Handler) PendingRegistrations(w http.ResponseWriter, r *http.Request) {
	users, err := h.supervisor.PendingRegistrations(r.Context())
	writeUsers(w, users, err)
}

// PendingEdits handles GET /v1/supervisor/edits
func (h *Handler) PendingEdits(w http.ResponseWriter, r *http.Request) {
	caller, _ := mw.GetCallerFromContext(r)
	users, err := h.supervisor.PendingEdits(r.Context(), caller)
	writeUsers(w, users, err)
}

// BlockedUsers handles GET /v1/supervisor/blocked
func (h *Handler) BlockedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.supervisor.BlockedUsers(r.Context())
	writeUsers(w, users, err)
}

// UsersWithSkill handles GET /v1/supervisor/skills/{skillId}/users
func (h *Handler) UsersWithSkill(w http.ResponseWriter, r *http.Request) {
	users, err := h.supervisor.UsersWithSkill(r.Context(), chi.URLParam(r, "skillId"))
	writeUsers(w, users, err)
}

// ApproveRegistration handles POST /v1/supervisor/registrations/approve
func (h *Handler) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.supervisor.ApproveRegistration)
}

// RejectRegistration handles POST /v1/supervisor/registrations/reject
func (h *Handler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.supervisor.RejectRegistration)
}

// ApproveProfileEdit handles POST /v1/supervisor/edits/approve
func (h *Handler) ApproveProfileEdit(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.supervisor.ApproveProfileEdit)
}

// RejectProfileEdit handles POST /v1/supervisor/edits/reject
func (h *Handler) RejectProfileEdit(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.supervisor.RejectProfileEdit)
}

// ApproveBlockAppeal handles POST /v1/supervisor/blocked/approve
func (h *Handler) ApproveBlockAppeal(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.supervisor.ApproveBlockAppeal)
}

// RejectBlockAppeal handles POST /v1/supervisor/blocked/reject
func (h *Handler) RejectBlockAppeal(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.supervisor.RejectBlockAppeal)
}

// moderate decodes the target from the body and applies op. A malformed
// payload is rejected before the store is touched.
func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, op moderationFunc) {
	var req api.ModerationRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	id, err := domain.ParseHashedEmail(req.HashedEmail)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	caller, _ := mw.GetCallerFromContext(r)
	if err := op(r.Context(), caller, id); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, api.StatusResponse{Status: "ok"})
}

func writeUsers(w http.ResponseWriter, users []domain.User, err error) {
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	utils.WriteJSON(w, http.StatusOK, api.UsersResponse{Users: users})
}
