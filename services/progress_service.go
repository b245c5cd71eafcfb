package services

import (
	"context"
	"fmt"
	"time"

	"fitquestAPI/internal/challenge"
	"fitquestAPI/internal/progress"
	"fitquestAPI/middleware"
	"fitquestAPI/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProgressService struct {
	db *pgxpool.Pool
}

func NewProgressService(db *pgxpool.Pool) *ProgressService {
	return &ProgressService{db: db}
}

// CompleteTask records a task completion for the user. Preconditions are
// checked in a fixed order so callers always get the most specific error:
// challenge closed, not enrolled, task not unlocked, already completed,
// photo required.
//
// The duplicate guard is the unique (user_id, challenge_item_id) index:
// two concurrent submissions both pass the read check, but only one insert
// lands. The loser sees zero rows affected and gets ErrAlreadyCompleted,
// so XP can never be granted twice for the same task.
//
// Rankings are NOT recomputed here; they are derived on demand and at
// finalization.
func (s *ProgressService) CompleteTask(ctx context.Context, clerkID string, challengeID, itemID uuid.UUID, now time.Time, req *progress.CompleteTaskRequest) (*progress.Record, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT user_id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found with clerk_id: %s", clerkID)
		}
		return nil, fmt.Errorf("%w: %v", challenge.ErrStoreUnavailable, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ch := &challenge.Challenge{}
	item := &challenge.Item{}
	err = tx.QueryRow(ctx, `
		SELECT
			c.id, c.start_date, c.end_date, c.total_days, c.is_finished,
			ci.id, ci.challenge_id, ci.title, ci.xp_points,
			ci.unlock_time, ci.unlock_days, ci.requires_photo
		FROM challenge_items ci
		INNER JOIN challenges c ON c.id = ci.challenge_id
		WHERE ci.id = $1 AND ci.challenge_id = $2
	`, itemID, challengeID).Scan(
		&ch.ID, &ch.StartDate, &ch.EndDate, &ch.TotalDays, &ch.IsFinished,
		&item.ID, &item.ChallengeID, &item.Title, &item.XPPoints,
		&item.UnlockTime, &item.UnlockDays, &item.RequiresPhoto,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, challenge.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if ch.IsFinished {
		return nil, challenge.ErrChallengeClosed
	}

	// Only enrolled users may complete tasks. Without this, XP could land
	// on a profile while the ranking aggregation, which walks enrollments,
	// never sees it.
	var enrolled bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM challenge_enrollments WHERE challenge_id = $1 AND user_id = $2)
	`, challengeID, userID).Scan(&enrolled)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return nil, challenge.ErrNotEnrolled
	}

	if !challenge.IsTaskAvailable(item, ch, now) {
		return nil, challenge.ErrTaskNotUnlocked
	}

	var alreadyDone bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_progress WHERE user_id = $1 AND challenge_item_id = $2)
	`, userID, itemID).Scan(&alreadyDone)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing progress: %w", err)
	}
	if alreadyDone {
		return nil, challenge.ErrAlreadyCompleted
	}

	if item.RequiresPhoto && (req.PhotoURL == nil || *req.PhotoURL == "") {
		return nil, challenge.ErrPhotoRequired
	}

	record := &progress.Record{
		ID:              uuid.New(),
		UserID:          userID,
		ChallengeItemID: itemID,
		PhotoURL:        req.PhotoURL,
		Notes:           req.Notes,
		XPEarned:        item.XPPoints,
		CompletedAt:     now.UTC(),
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO user_progress (id, user_id, challenge_item_id, photo_url, notes, xp_earned, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, challenge_item_id) DO NOTHING
	`, record.ID, record.UserID, record.ChallengeItemID, record.PhotoURL, record.Notes,
		record.XPEarned, record.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// lost the uniqueness race to a concurrent submission
		return nil, challenge.ErrAlreadyCompleted
	}

	// Display aggregates on the profile; coins are untouched here.
	_, err = tx.Exec(ctx, `
		UPDATE profiles
		SET total_xp = total_xp + $1,
		    level = (total_xp + $1) / $2 + 1,
		    updated_at = NOW()
		WHERE user_id = $3
	`, record.XPEarned, utils.XPPerLevel, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile XP: %w", err)
	}

	// A completion with a photo doubles as a feed post, like the mobile
	// clients expect.
	if record.PhotoURL != nil && *record.PhotoURL != "" {
		content := "Task completed!"
		if record.Notes != nil && *record.Notes != "" {
			content = fmt.Sprintf("Task completed! %s", *record.Notes)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO community_posts (id, user_id, challenge_id, content, image_url, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), userID, challengeID, content, record.PhotoURL, record.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create community post: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	middleware.TasksCompleted.Inc()
	return record, nil
}
