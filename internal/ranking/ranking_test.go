package ranking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	userC = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func TestAssignPositions_OrdersByXP(t *testing.T) {
	challengeID := uuid.New()
	enrolled := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	entries := AssignPositions(challengeID, []Standing{
		{UserID: userA, DisplayName: "A", EnrolledAt: enrolled, TotalXP: 30},
		{UserID: userB, DisplayName: "B", EnrolledAt: enrolled.Add(time.Hour), TotalXP: 50},
	})

	require.Len(t, entries, 2)
	assert.Equal(t, userB, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 50, entries[0].TotalXP)
	assert.Equal(t, userA, entries[1].UserID)
	assert.Equal(t, 2, entries[1].Position)
	assert.Equal(t, 30, entries[1].TotalXP)
}

func TestAssignPositions_TieBreaks(t *testing.T) {
	challengeID := uuid.New()
	early := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)

	// same XP: earlier enrollment wins; same enrollment: lower user ID wins
	entries := AssignPositions(challengeID, []Standing{
		{UserID: userC, EnrolledAt: early, TotalXP: 40},
		{UserID: userB, EnrolledAt: late, TotalXP: 40},
		{UserID: userA, EnrolledAt: late, TotalXP: 40},
	})

	require.Len(t, entries, 3)
	assert.Equal(t, userC, entries[0].UserID)
	assert.Equal(t, userA, entries[1].UserID)
	assert.Equal(t, userB, entries[2].UserID)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
	}
}

// Two computations over the same standings must return identical output.
func TestAssignPositions_Deterministic(t *testing.T) {
	challengeID := uuid.New()
	enrolled := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	standings := []Standing{
		{UserID: userB, EnrolledAt: enrolled, TotalXP: 10},
		{UserID: userA, EnrolledAt: enrolled, TotalXP: 10},
		{UserID: userC, EnrolledAt: enrolled, TotalXP: 25},
	}

	first := AssignPositions(challengeID, standings)
	second := AssignPositions(challengeID, standings)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, *first[i], *second[i])
	}
}

// The leaderboard must neither create nor destroy XP.
func TestAssignPositions_ConservesXP(t *testing.T) {
	challengeID := uuid.New()
	standings := []Standing{
		{UserID: userA, TotalXP: 120},
		{UserID: userB, TotalXP: 0},
		{UserID: userC, TotalXP: 45},
	}

	var want int
	for _, s := range standings {
		want += s.TotalXP
	}

	var got int
	for _, e := range AssignPositions(challengeID, standings) {
		got += e.TotalXP
	}
	assert.Equal(t, want, got)
}

func TestAssignPositions_Empty(t *testing.T) {
	assert.Empty(t, AssignPositions(uuid.New(), nil))
}
