package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"fitquestAPI/internal/challenge"
	"fitquestAPI/internal/progress"
	"fitquestAPI/middleware"
	"fitquestAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	progressService  *services.ProgressService
}

func NewChallengeHandler(challengeService *services.ChallengeService, progressService *services.ProgressService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		progressService:  progressService,
	}
}

func (h *ChallengeHandler) GetChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challenges, err := h.challengeService.GetEnrolledChallenges(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetDiscoverableChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challenges, err := h.challengeService.GetDiscoverableChallenges(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	enrollment, err := h.challengeService.JoinChallenge(ctx, clerkID, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, enrollment)
}

func (h *ChallengeHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	vars := mux.Vars(r)
	challengeID, err := uuid.Parse(vars["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}
	taskID, err := uuid.Parse(vars["taskId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req progress.CompleteTaskRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	record, err := h.progressService.CompleteTask(ctx, clerkID, challengeID, taskID, time.Now(), &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, record)
}

func (h *ChallengeHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	leaderboard, err := h.challengeService.GetRankings(ctx, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, leaderboard)
}

func (h *ChallengeHandler) GetChallengeFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	posts, err := h.challengeService.GetChallengeFeed(ctx, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, posts)
}

// respondWithServiceError maps the service error taxonomy onto HTTP
// statuses. Validation errors carry their own message; everything else
// is a 500 with the reason logged server-side.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, challenge.ErrChallengeNotFound), errors.Is(err, challenge.ErrTaskNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, challenge.ErrAlreadyCompleted),
		errors.Is(err, challenge.ErrAlreadyEnrolled),
		errors.Is(err, challenge.ErrAlreadyFinalized),
		errors.Is(err, challenge.ErrChallengeClosed),
		errors.Is(err, challenge.ErrChallengeFull):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, challenge.ErrTaskNotUnlocked), errors.Is(err, challenge.ErrNotEnrolled):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, challenge.ErrPhotoRequired):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, challenge.ErrStoreUnavailable):
		log.Printf("Store error: %v", err)
		respondWithError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		log.Printf("Unexpected error: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
