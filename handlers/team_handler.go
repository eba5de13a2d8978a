package handlers

import (
	"fmt"
	"net/http"

	"github.com/2hm1901/tournament-management/middleware"
	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/services"
	"github.com/2hm1901/tournament-management/storage"
)

type TeamHandler struct {
	teamService *services.TeamService
	uploader    storage.FileUploader
}

func NewTeamHandler(teamService *services.TeamService, uploader storage.FileUploader) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
		uploader:    uploader,
	}
}

// CreateHandler обрабатывает POST /teams
func (h *TeamHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.GetUserIDFromContext(r.Context()); err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var team models.Team
	if err := readJSON(w, r, &team); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.teamService.CreateTeam(r.Context(), &team); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /teams/{teamID}
func (h *TeamHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.GetTeam(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadLogoHandler обрабатывает POST /teams/{teamID}/logo
func (h *TeamHandler) UploadLogoHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.GetUserIDFromContext(r.Context()); err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	key, err := uploadLogoFromRequest(w, r, h.uploader, fmt.Sprintf("teams/%d", id))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.teamService.UploadLogo(r.Context(), id, key); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"logo_url": h.uploader.GetPublicURL(key)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
