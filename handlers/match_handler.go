package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2hm1901/tournament-management/middleware"
	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/services"
)

type MatchHandler struct {
	matchService *services.MatchService
}

func NewMatchHandler(matchService *services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// GetByIDHandler обрабатывает GET /matches/{matchID}
func (h *MatchHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /tournaments/{tournamentID}/matches
func (h *MatchHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var round *int
	if roundStr := r.URL.Query().Get("round"); roundStr != "" {
		value, err := strconv.Atoi(roundStr)
		if err != nil || value <= 0 {
			badRequestResponse(w, r, errors.New("invalid round query parameter"))
			return
		}
		round = &value
	}
	var status *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.MatchStatus(raw)
		status = &s
	}

	matches, err := h.matchService.ListMatches(r.Context(), tournamentID, round, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartHandler обрабатывает POST /matches/{matchID}/start
func (h *MatchHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matchService.StartMatch)
}

// CompleteHandler обрабатывает POST /matches/{matchID}/complete
func (h *MatchHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Score    *models.ScoreData `json:"score"`
		WinnerID *int              `json:"winner_id"`
		Notes    *string           `json:"notes"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.CompleteMatch(r.Context(), currentUserID, matchID, input.Score, input.WinnerID, input.Notes); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, matchID)
}

// WalkoverHandler обрабатывает POST /matches/{matchID}/walkover
func (h *MatchHandler) WalkoverHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		WinnerID int    `json:"winner_id"`
		Reason   string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.Walkover(r.Context(), currentUserID, matchID, input.WinnerID, input.Reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, matchID)
}

// PostponeHandler обрабатывает POST /matches/{matchID}/postpone
func (h *MatchHandler) PostponeHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionWithReason(w, r, h.matchService.PostponeMatch)
}

// CancelHandler обрабатывает POST /matches/{matchID}/cancel
func (h *MatchHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionWithReason(w, r, h.matchService.CancelMatch)
}

// RescheduleHandler обрабатывает PUT /matches/{matchID}/schedule
func (h *MatchHandler) RescheduleHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		ScheduledAt time.Time `json:"scheduled_at"`
		Court       *string   `json:"court"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.RescheduleMatch(r.Context(), currentUserID, matchID, input.ScheduledAt, input.Court); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, matchID)
}

func (h *MatchHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, matchID int) error) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := op(r.Context(), currentUserID, matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, matchID)
}

func (h *MatchHandler) transitionWithReason(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, matchID int, reason string) error) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := op(r.Context(), currentUserID, matchID, input.Reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeMatch(w, r, matchID)
}

func (h *MatchHandler) writeMatch(w http.ResponseWriter, r *http.Request, matchID int) {
	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
