package service

import (
	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// canSee reports whether the actor may read a record owned by ownerID.
// Records without an owner (guest orders) are visible to admins only.
func (a Actor) canSee(ownerID *uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return ownerID != nil && *ownerID == a.UserID
}
