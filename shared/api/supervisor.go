package api

import "github.com/staffhub/staffhub/shared/domain"

// Request DTOs

// ModerationRequest names the target of an approve/reject operation.
// Fields other than hashedEmail are ignored.
type ModerationRequest struct {
	HashedEmail string `json:"hashedEmail" validate:"required,max=128,excludesall=/.#$[]"`
}

// Response DTOs

type UsersResponse struct {
	Users []domain.User `json:"users"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
