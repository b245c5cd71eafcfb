package services

import (
	"context"
	"fmt"
	"log"

	"fitquestAPI/internal/user"

	"github.com/google/uuid"
)

// PushProvider sends a push notification to a set of device tokens.
// Satisfied by notification.FCMService.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []user.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	users    *UserService
	provider PushProvider
}

func NewNotificationService(users *UserService) *NotificationService {
	return &NotificationService{users: users}
}

// SetPushProvider injects the push backend. Without one, notifications
// are logged and dropped.
func (s *NotificationService) SetPushProvider(p PushProvider) {
	s.provider = p
}

// NotifyWinners tells every rewarded user how many coins they earned.
// Failures here never affect the finalization that already committed.
func (s *NotificationService) NotifyWinners(ctx context.Context, challengeTitle string, winners []Winner) error {
	if s.provider == nil {
		log.Printf("NotifyWinners: no push provider configured, skipping %d winner(s)", len(winners))
		return nil
	}

	byUser := make(map[uuid.UUID]Winner, len(winners))
	ids := make([]uuid.UUID, 0, len(winners))
	for _, w := range winners {
		byUser[w.UserID] = w
		ids = append(ids, w.UserID)
	}

	tokens, err := s.users.GetDeviceTokens(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load winner device tokens: %w", err)
	}

	tokensByUser := make(map[uuid.UUID][]user.DeviceToken)
	for _, t := range tokens {
		tokensByUser[t.UserID] = append(tokensByUser[t.UserID], t)
	}

	for userID, w := range byUser {
		userTokens := tokensByUser[userID]
		if len(userTokens) == 0 {
			continue
		}

		title := fmt.Sprintf("Challenge finished: %s", challengeTitle)
		body := fmt.Sprintf("You placed #%d and earned %d coins!", w.Position, w.Coins)
		data := map[string]any{
			"type":     "challenge_reward",
			"position": w.Position,
			"coins":    w.Coins,
		}

		if err := s.provider.SendPush(ctx, userTokens, title, body, data); err != nil {
			log.Printf("NotifyWinners: push to user %s failed: %v", userID, err)
		}
	}

	return nil
}
