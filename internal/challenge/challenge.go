package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Challenge struct {
	ID                              uuid.UUID  `json:"id" db:"id"`
	Title                           string     `json:"title" db:"title"`
	Description                     string     `json:"description" db:"description"`
	ImageURL                        *string    `json:"image_url,omitempty" db:"image_url"`
	StartDate                       time.Time  `json:"start_date" db:"start_date"`
	EndDate                         time.Time  `json:"end_date" db:"end_date"`
	TotalDays                       int        `json:"total_days" db:"total_days"`
	MaxParticipants                 *int       `json:"max_participants,omitempty" db:"max_participants"`
	DifficultyLevel                 *string    `json:"difficulty_level,omitempty" db:"difficulty_level"`
	IsActive                        bool       `json:"is_active" db:"is_active"`
	IsFinished                      bool       `json:"is_finished" db:"is_finished"`
	ManuallyFinalized               bool       `json:"manually_finalized" db:"manually_finalized"`
	GiveRewardsOnManualFinalization bool       `json:"give_rewards_on_manual_finalization" db:"give_rewards_on_manual_finalization"`
	CreatedBy                       uuid.UUID  `json:"created_by" db:"created_by"`
	CreatedAt                       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                       time.Time  `json:"updated_at" db:"updated_at"`
	Items                           []*Item    `json:"items,omitempty"`
	RewardTiers                     []*RewardTier `json:"reward_tiers,omitempty"`
}

// Item is a unit of daily work inside a challenge. Items are created
// together with their challenge and never edited afterwards.
type Item struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ChallengeID   uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Title         string    `json:"title" db:"title"`
	Description   *string   `json:"description,omitempty" db:"description"`
	XPPoints      int       `json:"xp_points" db:"xp_points"`
	UnlockTime    string    `json:"unlock_time" db:"unlock_time"` // "HH:MM", local time
	UnlockDays    []int     `json:"unlock_days" db:"unlock_days"` // challenge day numbers, empty = every day
	RequiresPhoto bool      `json:"requires_photo" db:"requires_photo"`
	OrderIndex    int       `json:"order_index" db:"order_index"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	// Completed is filled per viewer on the enrolled listing; it is not a
	// column.
	Completed bool `json:"completed" db:"-"`
}

type Enrollment struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	EnrolledAt  time.Time `json:"enrolled_at" db:"enrolled_at"`
}

// RewardTier maps a final leaderboard position to a coin payout.
// Fixed once the challenge starts.
type RewardTier struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Position    int       `json:"position" db:"position"`
	CoinsReward int       `json:"coins_reward" db:"coins_reward"`
}

type CreateChallengeRequest struct {
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	ImageURL        *string             `json:"image_url,omitempty"`
	StartDate       time.Time           `json:"start_date"`
	EndDate         time.Time           `json:"end_date"`
	MaxParticipants *int                `json:"max_participants,omitempty"`
	DifficultyLevel *string             `json:"difficulty_level,omitempty"`
	Items           []CreateItemRequest `json:"items"`
	RewardTiers     []RewardTierRequest `json:"reward_tiers"`
}

type CreateItemRequest struct {
	Title         string  `json:"title"`
	Description   *string `json:"description,omitempty"`
	XPPoints      int     `json:"xp_points"`
	UnlockTime    string  `json:"unlock_time"`
	UnlockDays    []int   `json:"unlock_days"`
	RequiresPhoto bool    `json:"requires_photo"`
	OrderIndex    int     `json:"order_index"`
}

type RewardTierRequest struct {
	Position    int `json:"position"`
	CoinsReward int `json:"coins_reward"`
}
