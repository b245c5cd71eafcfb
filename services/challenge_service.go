package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"fitquestAPI/internal/challenge"
	"fitquestAPI/internal/community"
	"fitquestAPI/internal/ranking"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the ranking
// aggregation can run standalone or inside the finalization transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type ChallengeService struct {
	db *pgxpool.Pool
}

func NewChallengeService(db *pgxpool.Pool) *ChallengeService {
	return &ChallengeService{db: db}
}

func (s *ChallengeService) resolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT user_id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, fmt.Errorf("user not found with clerk_id: %s", clerkID)
		}
		return uuid.Nil, fmt.Errorf("%w: %v", challenge.ErrStoreUnavailable, err)
	}
	return userID, nil
}

// GetEnrolledChallenges returns the challenges the user has joined, with
// their items and reward tiers attached. Items for all challenges are
// fetched in one query each, never per challenge.
func (s *ChallengeService) GetEnrolledChallenges(ctx context.Context, clerkID string) ([]*challenge.Challenge, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT
		c.id, c.title, c.description, c.image_url,
		c.start_date, c.end_date, c.total_days, c.max_participants, c.difficulty_level,
		c.is_active, c.is_finished, c.manually_finalized, c.give_rewards_on_manual_finalization,
		c.created_by, c.created_at, c.updated_at
	FROM challenges c
	INNER JOIN challenge_enrollments e ON e.challenge_id = c.id AND e.user_id = $1
	ORDER BY c.start_date DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	challenges, err := scanChallenges(rows)
	if err != nil {
		return nil, err
	}

	if err := s.attachItemsAndRewards(ctx, challenges); err != nil {
		return nil, err
	}
	if err := s.markCompletedItems(ctx, userID, challenges); err != nil {
		return nil, err
	}
	return challenges, nil
}

// markCompletedItems flags, for the viewing user, which items already have
// a progress record. One query over all listed challenges.
func (s *ChallengeService) markCompletedItems(ctx context.Context, userID uuid.UUID, challenges []*challenge.Challenge) error {
	items := make(map[uuid.UUID]*challenge.Item)
	ids := make([]uuid.UUID, 0)
	for _, ch := range challenges {
		for _, item := range ch.Items {
			items[item.ID] = item
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT challenge_item_id
		FROM user_progress
		WHERE user_id = $1 AND challenge_item_id = ANY($2)
	`, userID, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID uuid.UUID
		if err := rows.Scan(&itemID); err != nil {
			return fmt.Errorf("failed to scan progress: %w", err)
		}
		if item, ok := items[itemID]; ok {
			item.Completed = true
		}
	}
	return rows.Err()
}

// GetDiscoverableChallenges returns active, unfinished challenges the user
// has not joined yet.
func (s *ChallengeService) GetDiscoverableChallenges(ctx context.Context, clerkID string) ([]*challenge.Challenge, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT
		c.id, c.title, c.description, c.image_url,
		c.start_date, c.end_date, c.total_days, c.max_participants, c.difficulty_level,
		c.is_active, c.is_finished, c.manually_finalized, c.give_rewards_on_manual_finalization,
		c.created_by, c.created_at, c.updated_at
	FROM challenges c
	WHERE c.is_active = TRUE
	  AND c.is_finished = FALSE
	  AND NOT EXISTS (
		SELECT 1 FROM challenge_enrollments e
		WHERE e.challenge_id = c.id AND e.user_id = $1
	  )
	ORDER BY c.start_date ASC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	challenges, err := scanChallenges(rows)
	if err != nil {
		return nil, err
	}

	if err := s.attachItemsAndRewards(ctx, challenges); err != nil {
		return nil, err
	}
	return challenges, nil
}

// JoinChallenge enrolls the user. The (challenge, user) pair is unique at
// the store level, so a double join maps to ErrAlreadyEnrolled even under
// concurrent requests.
func (s *ChallengeService) JoinChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.Enrollment, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row lock serializes concurrent joins, so the capacity count below
	// cannot be read twice before either insert lands.
	var isFinished bool
	var maxParticipants *int
	err = tx.QueryRow(ctx, `SELECT is_finished, max_participants FROM challenges WHERE id = $1 FOR UPDATE`, challengeID).
		Scan(&isFinished, &maxParticipants)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, challenge.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	if isFinished {
		return nil, challenge.ErrChallengeClosed
	}

	if maxParticipants != nil {
		var enrolled int
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM challenge_enrollments WHERE challenge_id = $1`, challengeID).Scan(&enrolled)
		if err != nil {
			return nil, fmt.Errorf("failed to count enrollments: %w", err)
		}
		if enrolled >= *maxParticipants {
			return nil, challenge.ErrChallengeFull
		}
	}

	enrollment := &challenge.Enrollment{
		ID:          uuid.New(),
		ChallengeID: challengeID,
		UserID:      userID,
		EnrolledAt:  time.Now().UTC(),
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO challenge_enrollments (id, challenge_id, user_id, enrolled_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (challenge_id, user_id) DO NOTHING
	`, enrollment.ID, enrollment.ChallengeID, enrollment.UserID, enrollment.EnrolledAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enroll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, challenge.ErrAlreadyEnrolled
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return enrollment, nil
}

// CreateChallenge inserts a challenge with its items and reward tiers in
// one transaction. Items and tiers are immutable afterwards.
func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if req.Title == "" {
		return nil, fmt.Errorf("challenge title is required")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("end_date must be after start_date")
	}

	totalDays := int(req.EndDate.Sub(req.StartDate).Hours()/24 + 0.999)
	now := time.Now().UTC()

	ch := &challenge.Challenge{
		ID:              uuid.New(),
		Title:           req.Title,
		Description:     req.Description,
		ImageURL:        req.ImageURL,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		TotalDays:       totalDays,
		MaxParticipants: req.MaxParticipants,
		DifficultyLevel: req.DifficultyLevel,
		IsActive:        true,
		CreatedBy:       userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO challenges (
			id, title, description, image_url, start_date, end_date, total_days,
			max_participants, difficulty_level, is_active, is_finished,
			manually_finalized, give_rewards_on_manual_finalization,
			created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, FALSE, FALSE, FALSE, $10, $11, $11)
	`, ch.ID, ch.Title, ch.Description, ch.ImageURL, ch.StartDate, ch.EndDate, ch.TotalDays,
		ch.MaxParticipants, ch.DifficultyLevel, ch.CreatedBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	for _, itemReq := range req.Items {
		item := &challenge.Item{
			ID:            uuid.New(),
			ChallengeID:   ch.ID,
			Title:         itemReq.Title,
			Description:   itemReq.Description,
			XPPoints:      itemReq.XPPoints,
			UnlockTime:    itemReq.UnlockTime,
			UnlockDays:    itemReq.UnlockDays,
			RequiresPhoto: itemReq.RequiresPhoto,
			OrderIndex:    itemReq.OrderIndex,
			CreatedAt:     now,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO challenge_items (
				id, challenge_id, title, description, xp_points,
				unlock_time, unlock_days, requires_photo, order_index, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, item.ID, item.ChallengeID, item.Title, item.Description, item.XPPoints,
			item.UnlockTime, item.UnlockDays, item.RequiresPhoto, item.OrderIndex, item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create challenge item: %w", err)
		}
		ch.Items = append(ch.Items, item)
	}

	for _, tierReq := range req.RewardTiers {
		tier := &challenge.RewardTier{
			ID:          uuid.New(),
			ChallengeID: ch.ID,
			Position:    tierReq.Position,
			CoinsReward: tierReq.CoinsReward,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO challenge_final_rewards (id, challenge_id, position, coins_reward)
			VALUES ($1, $2, $3, $4)
		`, tier.ID, tier.ChallengeID, tier.Position, tier.CoinsReward)
		if err != nil {
			return nil, fmt.Errorf("failed to create reward tier: %w", err)
		}
		ch.RewardTiers = append(ch.RewardTiers, tier)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ch, nil
}

// GetChallengeFeed returns the photo posts of a challenge, newest first.
func (s *ChallengeService) GetChallengeFeed(ctx context.Context, challengeID uuid.UUID) ([]*community.Post, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM challenges WHERE id = $1)`, challengeID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", challenge.ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, challenge.ErrChallengeNotFound
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, challenge_id, content, image_url, created_at
		FROM community_posts
		WHERE challenge_id = $1
		ORDER BY created_at DESC
		LIMIT 100
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer rows.Close()

	posts := []*community.Post{}
	for rows.Next() {
		post := &community.Post{}
		if err := rows.Scan(&post.ID, &post.UserID, &post.ChallengeID, &post.Content, &post.ImageURL, &post.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// isTransientStoreError reports whether a failure is worth retrying:
// connection-class and timeout failures, plus serialization and deadlock
// rollbacks. Deterministic errors (bad SQL, scan mismatches) are not and
// must surface to the caller as-is.
func isTransientStoreError(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08xxx connection exceptions, 40001/40P01 serialization failures.
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// GetRankings computes the current leaderboard on demand. The read is
// idempotent, so transient store failures are retried a few times with
// backoff before giving up. Anything else fails immediately.
func (s *ChallengeService) GetRankings(ctx context.Context, challengeID uuid.UUID) (*ranking.Leaderboard, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM challenges WHERE id = $1)`, challengeID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", challenge.ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, challenge.ErrChallengeNotFound
	}

	var entries []*ranking.Entry
	backoff := 200 * time.Millisecond
	for attempt := 1; ; attempt++ {
		entries, err = computeRankings(ctx, s.db, challengeID)
		if err == nil {
			break
		}
		if !isTransientStoreError(err) {
			return nil, fmt.Errorf("failed to compute rankings: %w", err)
		}
		if attempt >= 3 || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", challenge.ErrStoreUnavailable, err)
		}
		log.Printf("GetRankings: attempt %d failed for challenge %s: %v", attempt, challengeID, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", challenge.ErrStoreUnavailable, ctx.Err())
		}
		backoff *= 2
	}

	return &ranking.Leaderboard{Entries: entries, TotalUsers: len(entries)}, nil
}

// computeRankings is the single authorized aggregation path: one batched
// query summing XP per enrolled user, then deterministic ordering in Go.
// Both the rankings endpoint and the finalizer go through here.
func computeRankings(ctx context.Context, q querier, challengeID uuid.UUID) ([]*ranking.Entry, error) {
	query := `
	SELECT
		e.user_id,
		COALESCE(p.display_name, '') AS display_name,
		e.enrolled_at,
		COALESCE(SUM(up.xp_earned), 0) AS total_xp
	FROM challenge_enrollments e
	LEFT JOIN profiles p ON p.user_id = e.user_id
	LEFT JOIN challenge_items ci ON ci.challenge_id = e.challenge_id
	LEFT JOIN user_progress up ON up.challenge_item_id = ci.id AND up.user_id = e.user_id
	WHERE e.challenge_id = $1
	GROUP BY e.user_id, p.display_name, e.enrolled_at
	`

	rows, err := q.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rankings: %w", err)
	}
	defer rows.Close()

	var standings []ranking.Standing
	for rows.Next() {
		var st ranking.Standing
		if err := rows.Scan(&st.UserID, &st.DisplayName, &st.EnrolledAt, &st.TotalXP); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read standings: %w", err)
	}

	return ranking.AssignPositions(challengeID, standings), nil
}

func scanChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	var challenges []*challenge.Challenge
	for rows.Next() {
		ch := &challenge.Challenge{}
		err := rows.Scan(
			&ch.ID, &ch.Title, &ch.Description, &ch.ImageURL,
			&ch.StartDate, &ch.EndDate, &ch.TotalDays, &ch.MaxParticipants, &ch.DifficultyLevel,
			&ch.IsActive, &ch.IsFinished, &ch.ManuallyFinalized, &ch.GiveRewardsOnManualFinalization,
			&ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read challenges: %w", err)
	}
	return challenges, nil
}

// attachItemsAndRewards loads items and reward tiers for all the given
// challenges in two queries total.
func (s *ChallengeService) attachItemsAndRewards(ctx context.Context, challenges []*challenge.Challenge) error {
	if len(challenges) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*challenge.Challenge, len(challenges))
	ids := make([]uuid.UUID, 0, len(challenges))
	for _, ch := range challenges {
		byID[ch.ID] = ch
		ids = append(ids, ch.ID)
	}

	itemRows, err := s.db.Query(ctx, `
		SELECT id, challenge_id, title, description, xp_points,
		       unlock_time, unlock_days, requires_photo, order_index, created_at
		FROM challenge_items
		WHERE challenge_id = ANY($1)
		ORDER BY order_index ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch challenge items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item := &challenge.Item{}
		err := itemRows.Scan(
			&item.ID, &item.ChallengeID, &item.Title, &item.Description, &item.XPPoints,
			&item.UnlockTime, &item.UnlockDays, &item.RequiresPhoto, &item.OrderIndex, &item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan challenge item: %w", err)
		}
		if ch, ok := byID[item.ChallengeID]; ok {
			ch.Items = append(ch.Items, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return fmt.Errorf("failed to read challenge items: %w", err)
	}

	tierRows, err := s.db.Query(ctx, `
		SELECT id, challenge_id, position, coins_reward
		FROM challenge_final_rewards
		WHERE challenge_id = ANY($1)
		ORDER BY position ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch reward tiers: %w", err)
	}
	defer tierRows.Close()

	for tierRows.Next() {
		tier := &challenge.RewardTier{}
		if err := tierRows.Scan(&tier.ID, &tier.ChallengeID, &tier.Position, &tier.CoinsReward); err != nil {
			return fmt.Errorf("failed to scan reward tier: %w", err)
		}
		if ch, ok := byID[tier.ChallengeID]; ok {
			ch.RewardTiers = append(ch.RewardTiers, tier)
		}
	}
	return tierRows.Err()
}
