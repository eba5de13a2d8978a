package handlers

import (
	"context"
	"net/http"

	"github.com/2hm1901/tournament-management/middleware"
	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/services"
)

type ParticipantHandler struct {
	participantService *services.ParticipantService
	seedingService     *services.SeedingService
}

func NewParticipantHandler(participantService *services.ParticipantService, seedingService *services.SeedingService) *ParticipantHandler {
	return &ParticipantHandler{
		participantService: participantService,
		seedingService:     seedingService,
	}
}

// RegisterHandler обрабатывает POST /tournaments/{tournamentID}/participants
func (h *ParticipantHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		PlayerID *int `json:"player_id"`
		TeamID   *int `json:"team_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participant, err := h.participantService.Register(r.Context(), tournamentID, input.PlayerID, input.TeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /tournaments/{tournamentID}/participants
func (h *ParticipantHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var statusFilter *models.RegistrationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.RegistrationStatus(raw)
		statusFilter = &status
	}

	participants, err := h.participantService.ListParticipants(r.Context(), tournamentID, statusFilter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ConfirmHandler обрабатывает POST /participants/{participantID}/confirm
func (h *ParticipantHandler) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.participantService.ConfirmRegistration)
}

// RejectHandler обрабатывает POST /participants/{participantID}/reject
func (h *ParticipantHandler) RejectHandler(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.participantService.RejectRegistration)
}

// DisqualifyHandler обрабатывает POST /participants/{participantID}/disqualify
func (h *ParticipantHandler) DisqualifyHandler(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.participantService.Disqualify)
}

// WithdrawHandler обрабатывает POST /participants/{participantID}/withdraw
func (h *ParticipantHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.participantService.Withdraw(r.Context(), participantID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeParticipant(w, r, participantID)
}

// MarkPaidHandler обрабатывает POST /participants/{participantID}/payment
func (h *ParticipantHandler) MarkPaidHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Reference *string `json:"reference"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.participantService.MarkEntryFeePaid(r.Context(), currentUserID, participantID, input.Reference); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeParticipant(w, r, participantID)
}

// AutoSeedHandler обрабатывает POST /tournaments/{tournamentID}/seeds/auto
func (h *ParticipantHandler) AutoSeedHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participants, err := h.seedingService.AutoAssignSeeds(r.Context(), currentUserID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SeedHandler обрабатывает PUT /tournaments/{tournamentID}/seeds
func (h *ParticipantHandler) SeedHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		// participant_id -> seed
		Seeds map[int]int `json:"seeds"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.seedingService.AssignSeeds(r.Context(), currentUserID, tournamentID, input.Seeds); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"seeds": input.Seeds}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ParticipantHandler) statusTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, participantID int) error) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := op(r.Context(), currentUserID, participantID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeParticipant(w, r, participantID)
}

func (h *ParticipantHandler) writeParticipant(w http.ResponseWriter, r *http.Request, participantID int) {
	participant, err := h.participantService.GetParticipant(r.Context(), participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
