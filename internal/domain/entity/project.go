package entity

import (
	"github.com/google/uuid"
)

// Project is the subset of a crowdfunding project the authorization layer
// cares about: its identity and who created it. Campaign content, rewards
// and payouts are the server's business.
type Project struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatorID uuid.UUID `json:"creator_id"`
}

// ProjectRoles describes the signed-in user's standing on one project,
// as reported by the server.
type ProjectRoles struct {
	Roles     Roles `json:"roles"`
	IsCreator bool  `json:"isCreator"`
}

// Creator reports whether this standing marks the user as the project's
// creator, either through the explicit flag or the role list.
func (pr ProjectRoles) Creator() bool {
	return pr.IsCreator || pr.Roles.Contains(RoleCreator)
}
