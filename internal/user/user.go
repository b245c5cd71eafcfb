package user

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Profile is the user row this service owns. Coins are mutated only by
// reward disbursement inside a won finalization; no handler writes them
// directly. TotalXP and Level are display aggregates kept up to date by
// the progress recorder.
type Profile struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	ClerkID     string    `json:"clerk_id" db:"clerk_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	Bio         *string   `json:"bio,omitempty" db:"bio"`
	Coins       int       `json:"coins" db:"coins"`
	TotalXP     int       `json:"total_xp" db:"total_xp"`
	Level       int       `json:"level" db:"level"`
	IsAdmin     bool      `json:"is_admin" db:"is_admin"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type CreateProfileRequest struct {
	ClerkID     string
	DisplayName string
	AvatarURL   string
}

type UpdateProfileRequest struct {
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

type DeviceToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Platform  string    `json:"platform" db:"platform"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Clerk webhook payloads (svix envelope).
type ClerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ClerkUserData struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ImageURL       string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}
