package handlers

import (
	"fmt"
	"net/http"

	"github.com/2hm1901/tournament-management/middleware"
	"github.com/2hm1901/tournament-management/models"
	"github.com/2hm1901/tournament-management/services"
	"github.com/2hm1901/tournament-management/storage"
)

const maxLogoSize = 5 << 20 // 5MB

type PlayerHandler struct {
	playerService *services.PlayerService
	uploader      storage.FileUploader
}

func NewPlayerHandler(playerService *services.PlayerService, uploader storage.FileUploader) *PlayerHandler {
	return &PlayerHandler{
		playerService: playerService,
		uploader:      uploader,
	}
}

// CreateHandler обрабатывает POST /players
func (h *PlayerHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var player models.Player
	if err := readJSON(w, r, &player); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	player.UserID = currentUserID

	if err := h.playerService.CreatePlayer(r.Context(), &player); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /players/{playerID}
func (h *PlayerHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	player, err := h.playerService.GetPlayer(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler обрабатывает PUT /players/{playerID}
func (h *PlayerHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	existing, err := h.playerService.GetPlayer(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if existing.UserID != currentUserID {
		forbiddenResponse(w, r, "players can only edit their own profile")
		return
	}

	var player models.Player
	if err := readJSON(w, r, &player); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	player.ID = id
	player.UserID = existing.UserID

	if err := h.playerService.UpdatePlayer(r.Context(), &player); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadLogoHandler обрабатывает POST /players/{playerID}/logo
func (h *PlayerHandler) UploadLogoHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	existing, err := h.playerService.GetPlayer(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if existing.UserID != currentUserID {
		forbiddenResponse(w, r, "players can only edit their own profile")
		return
	}

	key, err := uploadLogoFromRequest(w, r, h.uploader, fmt.Sprintf("players/%d", id))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.playerService.UploadLogo(r.Context(), id, key); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"logo_url": h.uploader.GetPublicURL(key)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// uploadLogoFromRequest читает multipart-поле "logo" и кладёт файл в хранилище.
func uploadLogoFromRequest(w http.ResponseWriter, r *http.Request, uploader storage.FileUploader, keyPrefix string) (string, error) {
	if uploader == nil {
		return "", fmt.Errorf("logo storage is not configured")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoSize)
	if err := r.ParseMultipartForm(maxLogoSize); err != nil {
		return "", fmt.Errorf("failed to parse multipart form: %w", err)
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		return "", fmt.Errorf("missing logo file: %w", err)
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "image/png" && contentType != "image/jpeg" {
		return "", fmt.Errorf("unsupported logo content type %q", contentType)
	}

	key := fmt.Sprintf("%s/%s", keyPrefix, header.Filename)
	result, err := uploader.Upload(r.Context(), key, contentType, file)
	if err != nil {
		return "", err
	}
	return result.Key, nil
}
