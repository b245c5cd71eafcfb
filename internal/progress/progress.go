package progress

import (
	"time"

	"github.com/google/uuid"
)

// Record is the evidence that a user completed a challenge task. At most
// one record may exist per (user, task), enforced by a unique constraint
// in the store. XPEarned is copied from the task at completion time and
// is immune to later edits of the task.
type Record struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	ChallengeItemID uuid.UUID `json:"challenge_item_id" db:"challenge_item_id"`
	PhotoURL        *string   `json:"photo_url,omitempty" db:"photo_url"`
	Notes           *string   `json:"notes,omitempty" db:"notes"`
	XPEarned        int       `json:"xp_earned" db:"xp_earned"`
	CompletedAt     time.Time `json:"completed_at" db:"completed_at"`
}

type CompleteTaskRequest struct {
	PhotoURL *string `json:"photo_url,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}
