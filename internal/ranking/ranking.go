package ranking

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Entry is a computed leaderboard row. Entries are derived entirely from
// progress records and replaced wholesale on every recompute; they are
// never patched in place.
type Entry struct {
	ID          uuid.UUID `json:"id,omitempty" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Position    int       `json:"position" db:"position"`
	TotalXP     int       `json:"total_xp" db:"total_xp"`
	CoinsEarned int       `json:"coins_earned" db:"coins_earned"`
}

// Standing is one enrolled user's aggregated XP before positions are
// assigned.
type Standing struct {
	UserID      uuid.UUID
	DisplayName string
	EnrolledAt  time.Time
	TotalXP     int
}

type Leaderboard struct {
	Entries    []*Entry `json:"entries"`
	TotalUsers int      `json:"total_users"`
}

// AssignPositions orders standings into final leaderboard entries.
// Sort order: total XP descending, then earlier enrollment, then user ID.
// The secondary keys make the ordering fully deterministic so repeated
// computations over the same records always agree.
func AssignPositions(challengeID uuid.UUID, standings []Standing) []*Entry {
	sorted := make([]Standing, len(standings))
	copy(sorted, standings)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalXP != sorted[j].TotalXP {
			return sorted[i].TotalXP > sorted[j].TotalXP
		}
		if !sorted[i].EnrolledAt.Equal(sorted[j].EnrolledAt) {
			return sorted[i].EnrolledAt.Before(sorted[j].EnrolledAt)
		}
		return sorted[i].UserID.String() < sorted[j].UserID.String()
	})

	entries := make([]*Entry, len(sorted))
	for i, s := range sorted {
		entries[i] = &Entry{
			ChallengeID: challengeID,
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			Position:    i + 1,
			TotalXP:     s.TotalXP,
		}
	}
	return entries
}
