package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the profile snapshot of the signed-in account. It is lazily
// populated from the API and never consulted for authorization decisions;
// those run against the resolved permission set.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}
