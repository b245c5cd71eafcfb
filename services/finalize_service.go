package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"fitquestAPI/internal/challenge"
	"fitquestAPI/internal/ranking"
	"fitquestAPI/middleware"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FinalizeService struct {
	db       *pgxpool.Pool
	notifier *NotificationService
}

func NewFinalizeService(db *pgxpool.Pool, notifier *NotificationService) *FinalizeService {
	return &FinalizeService{db: db, notifier: notifier}
}

// Winner is a ranked user who received coins during finalization.
type Winner struct {
	UserID   uuid.UUID `json:"user_id"`
	Position int       `json:"position"`
	Coins    int       `json:"coins"`
}

type FinalizeResult struct {
	ChallengeTitle string
	Rankings       int
	RewardsGiven   bool
	Winners        []Winner
}

// Finalize closes a challenge exactly once. The scheduled sweep and the
// admin endpoint both land here; the conditional update on is_finished is
// the single serialization point between them. Everything runs in one
// transaction, so a crash before commit leaves the challenge open and the
// whole routine can simply be re-run: rankings recompute identically and
// no coins were paid.
func (s *FinalizeService) Finalize(ctx context.Context, challengeID uuid.UUID, giveRewards, manual bool) (*FinalizeResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var title string
	err = tx.QueryRow(ctx, `SELECT title FROM challenges WHERE id = $1`, challengeID).Scan(&title)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, challenge.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	// Claim. Only one finalizer can flip is_finished; a concurrent
	// attempt blocks on the row lock and then matches zero rows.
	tag, err := tx.Exec(ctx, `
		UPDATE challenges
		SET is_finished = TRUE,
		    is_active = FALSE,
		    manually_finalized = $2,
		    give_rewards_on_manual_finalization = $3,
		    updated_at = NOW()
		WHERE id = $1 AND is_finished = FALSE
	`, challengeID, manual, giveRewards)
	if err != nil {
		return nil, fmt.Errorf("failed to claim challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, challenge.ErrAlreadyFinalized
	}

	// Final standings reflect every progress record up to this instant.
	entries, err := computeRankings(ctx, tx, challengeID)
	if err != nil {
		return nil, err
	}

	var winners []Winner
	if giveRewards {
		winners, err = applyRewardTiers(ctx, tx, challengeID, entries)
		if err != nil {
			return nil, err
		}
	}

	// Rankings are replaced wholesale, never patched.
	_, err = tx.Exec(ctx, `DELETE FROM challenge_rankings WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear old rankings: %w", err)
	}

	for _, entry := range entries {
		_, err = tx.Exec(ctx, `
			INSERT INTO challenge_rankings (id, challenge_id, user_id, position, total_xp, coins_earned, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, uuid.New(), entry.ChallengeID, entry.UserID, entry.Position, entry.TotalXP, entry.CoinsEarned)
		if err != nil {
			return nil, fmt.Errorf("failed to insert ranking: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit finalization: %w", err)
	}

	trigger := "sweep"
	if manual {
		trigger = "manual"
	}
	middleware.ChallengesFinalized.WithLabelValues(trigger).Inc()

	result := &FinalizeResult{
		ChallengeTitle: title,
		Rankings:       len(entries),
		RewardsGiven:   giveRewards,
		Winners:        winners,
	}

	// Best effort; the finalization already committed.
	if s.notifier != nil && len(winners) > 0 {
		if err := s.notifier.NotifyWinners(ctx, title, winners); err != nil {
			log.Printf("Finalize: failed to notify winners of %s: %v", challengeID, err)
		}
	}

	return result, nil
}

// applyRewardTiers pays each configured position. Ties share the payout:
// every entry sitting at a rewarded position receives that tier's coins.
// The coin update is a relative increment so concurrent balance changes
// elsewhere are never lost.
func applyRewardTiers(ctx context.Context, tx pgx.Tx, challengeID uuid.UUID, entries []*ranking.Entry) ([]Winner, error) {
	tierRows, err := tx.Query(ctx, `
		SELECT position, coins_reward
		FROM challenge_final_rewards
		WHERE challenge_id = $1
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reward tiers: %w", err)
	}

	tiers := make(map[int]int)
	for tierRows.Next() {
		var position, coins int
		if err := tierRows.Scan(&position, &coins); err != nil {
			tierRows.Close()
			return nil, fmt.Errorf("failed to scan reward tier: %w", err)
		}
		tiers[position] = coins
	}
	if err = tierRows.Err(); err != nil {
		tierRows.Close()
		return nil, fmt.Errorf("failed to read reward tiers: %w", err)
	}
	tierRows.Close()

	var winners []Winner
	var totalCoins int
	for _, entry := range entries {
		coins, ok := tiers[entry.Position]
		if !ok || coins <= 0 {
			continue
		}

		_, err = tx.Exec(ctx, `
			UPDATE profiles
			SET coins = coins + $1, updated_at = NOW()
			WHERE user_id = $2
		`, coins, entry.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to award coins to user %s: %w", entry.UserID, err)
		}

		entry.CoinsEarned = coins
		totalCoins += coins
		winners = append(winners, Winner{UserID: entry.UserID, Position: entry.Position, Coins: coins})
	}

	middleware.CoinsDisbursed.Add(float64(totalCoins))
	return winners, nil
}

// SweepExpired finalizes every challenge whose end date has passed.
// Natural expiry always pays rewards. One challenge failing must not
// block the rest, so errors are logged and counted per challenge.
func (s *FinalizeService) SweepExpired(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM challenges
		WHERE end_date < NOW() AND is_finished = FALSE
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired challenges: %w", err)
	}

	var expired []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan challenge id: %w", err)
		}
		expired = append(expired, id)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to read expired challenges: %w", err)
	}
	rows.Close()

	finalized := 0
	for _, id := range expired {
		finalizeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		_, err := s.Finalize(finalizeCtx, id, true, false)
		cancel()

		switch {
		case err == nil:
			finalized++
		case err == challenge.ErrAlreadyFinalized:
			// an admin got there first, nothing to do
		default:
			middleware.SweepFailures.Inc()
			log.Printf("SweepExpired: failed to finalize challenge %s: %v", id, err)
		}
	}

	return finalized, nil
}
