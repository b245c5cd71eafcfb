package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"fitquestAPI/internal/challenge"
	"fitquestAPI/middleware"
	"fitquestAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type AdminHandler struct {
	userService      *services.UserService
	challengeService *services.ChallengeService
	finalizeService  *services.FinalizeService
}

func NewAdminHandler(userService *services.UserService, challengeService *services.ChallengeService, finalizeService *services.FinalizeService) *AdminHandler {
	return &AdminHandler{
		userService:      userService,
		challengeService: challengeService,
		finalizeService:  finalizeService,
	}
}

// requireAdmin resolves the caller and rejects non-admins. Returns the
// clerk ID on success.
func (h *AdminHandler) requireAdmin(ctx context.Context, w http.ResponseWriter) (string, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}

	isAdmin, err := h.userService.IsAdmin(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return "", false
	}
	if !isAdmin {
		respondWithError(w, http.StatusForbidden, "Admin access required")
		return "", false
	}
	return clerkID, true
}

func (h *AdminHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}

	var req challenge.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ch, err := h.challengeService.CreateChallenge(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, ch)
}

type finalizeRequest struct {
	GiveRewards bool `json:"giveRewards"`
}

// FinalizeChallenge is the manual trigger. It converges on the same
// guarded routine as the scheduled sweep; if the sweep wins the race the
// admin simply gets a conflict back.
func (h *AdminHandler) FinalizeChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeId"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Challenge ID is required")
		return
	}

	var req finalizeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.finalizeService.Finalize(ctx, challengeID, req.GiveRewards, true)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":      "Challenge finalized successfully",
		"rankings":     result.Rankings,
		"rewardsGiven": result.RewardsGiven,
	})
}
