package services

import (
	"context"
	"fmt"
	"time"

	"fitquestAPI/internal/challenge"
	"fitquestAPI/internal/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error) {
	p := &user.Profile{}
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, clerk_id, display_name, avatar_url, bio,
		       coins, total_xp, level, is_admin, created_at, updated_at
		FROM profiles
		WHERE clerk_id = $1
	`, clerkID).Scan(
		&p.ID, &p.UserID, &p.ClerkID, &p.DisplayName, &p.AvatarURL, &p.Bio,
		&p.Coins, &p.TotalXP, &p.Level, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found with clerk_id: %s", clerkID)
		}
		return nil, fmt.Errorf("%w: %v", challenge.ErrStoreUnavailable, err)
	}
	return p, nil
}

// IsAdmin gates the admin endpoints. Authorization is checked here, not
// in the finalizer, which trusts its callers.
func (s *UserService) IsAdmin(ctx context.Context, clerkID string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRow(ctx, `SELECT is_admin FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&isAdmin)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check admin flag: %w", err)
	}
	return isAdmin, nil
}

// CreateProfile provisions the local profile row for a new Clerk user.
func (s *UserService) CreateProfile(ctx context.Context, req *user.CreateProfileRequest) (*user.Profile, error) {
	now := time.Now().UTC()
	p := &user.Profile{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		ClerkID:     req.ClerkID,
		DisplayName: req.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
		Level:       1,
	}
	if req.AvatarURL != "" {
		p.AvatarURL = &req.AvatarURL
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO profiles (id, user_id, clerk_id, display_name, avatar_url,
		                      coins, total_xp, level, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 1, FALSE, $6, $6)
		ON CONFLICT (clerk_id) DO NOTHING
	`, p.ID, p.UserID, p.ClerkID, p.DisplayName, p.AvatarURL, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	_, err := s.db.Exec(ctx, `
		UPDATE profiles
		SET display_name = COALESCE(NULLIF($2, ''), display_name),
		    avatar_url = COALESCE($3, avatar_url),
		    bio = COALESCE($4, bio),
		    updated_at = NOW()
		WHERE clerk_id = $1
	`, clerkID, req.DisplayName, req.AvatarURL, req.Bio)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetProfileByClerkID(ctx, clerkID)
}

func (s *UserService) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// RegisterDevice stores an FCM token for the user. Tokens are unique;
// re-registering the same token is a no-op.
func (s *UserService) RegisterDevice(ctx context.Context, clerkID string, req *user.RegisterDeviceRequest) error {
	if req.Token == "" {
		return fmt.Errorf("device token is required")
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT user_id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("user not found with clerk_id: %s", clerkID)
		}
		return fmt.Errorf("%w: %v", challenge.ErrStoreUnavailable, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO device_tokens (id, user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
	`, uuid.New(), userID, req.Token, req.Platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// GetDeviceTokens fetches the tokens of all given users in one query.
func (s *UserService) GetDeviceTokens(ctx context.Context, userIDs []uuid.UUID) ([]user.DeviceToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, token, platform, created_at
		FROM device_tokens
		WHERE user_id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []user.DeviceToken
	for rows.Next() {
		var t user.DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
