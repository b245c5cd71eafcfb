package community

import (
	"time"

	"github.com/google/uuid"
)

// Post is a feed entry. The progress recorder creates one automatically
// when a completion carries a photo; there is no freeform post endpoint.
type Post struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Content     string    `json:"content" db:"content"`
	ImageURL    *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
