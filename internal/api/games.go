package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/gamelog/internal/covers"
	"github.com/erazemk/gamelog/internal/imaging"
	"github.com/erazemk/gamelog/internal/model"
	"github.com/erazemk/gamelog/internal/store"
)

// maxUpload caps the request body of a create or update.
const maxUpload = 5 << 20

// CoverField is the multipart field that carries the cover image.
const CoverField = "coverImage"

// GamesHandler handles game CRUD endpoints.
type GamesHandler struct {
	DB     *sql.DB
	Covers *covers.Bucket
	// PublicURL is the externally visible base URL used to build cover
	// links. When empty it is derived from the request.
	PublicURL string
}

// gameRequest is a decoded create or update body.
type gameRequest struct {
	input model.GameInput
	cover *imaging.ProcessResult
}

// List handles GET /api/games.
func (h *GamesHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	games, err := store.ListGames(r.Context(), h.DB, status)
	if err != nil {
		slog.Error("failed to list games", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	if games == nil {
		games = []model.Game{}
	}
	for i := range games {
		h.resolveCover(r, &games[i])
	}
	jsonResponse(w, http.StatusOK, games)
}

// Get handles GET /api/games/{id}.
func (h *GamesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}

	game, err := store.GetGame(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get game", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get game")
		return
	}
	if game == nil {
		jsonError(w, http.StatusNotFound, "game not found")
		return
	}

	h.resolveCover(r, game)
	jsonResponse(w, http.StatusOK, game)
}

// Create handles POST /api/games with a JSON or multipart body.
func (h *GamesHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGameRequest(w, r)
	if !ok {
		return
	}

	cover, ok := h.storeCover(w, r, req.cover)
	if !ok {
		return
	}

	game, err := store.CreateGame(r.Context(), h.DB, req.input, cover)
	if err != nil {
		slog.Error("failed to create game", "error", err)
		h.discardCover(r, cover)
		jsonError(w, http.StatusInternalServerError, "failed to create game")
		return
	}

	slog.Info("game created", "id", game.ID, "name", game.Name, "status", game.Status, "cover", cover != nil)
	h.resolveCover(r, game)
	jsonResponse(w, http.StatusCreated, game)
}

// Update handles PUT /api/games/{id}. Every field is replaced; the cover is
// replaced only when a new one is uploaded.
func (h *GamesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeGameRequest(w, r)
	if !ok {
		return
	}

	cover, ok := h.storeCover(w, r, req.cover)
	if !ok {
		return
	}

	oldKey, err := store.UpdateGame(r.Context(), h.DB, id, req.input, cover)
	if errors.Is(err, store.ErrNotFound) {
		h.discardCover(r, cover)
		jsonError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		slog.Error("failed to update game", "id", id, "error", err)
		h.discardCover(r, cover)
		jsonError(w, http.StatusInternalServerError, "failed to update game")
		return
	}
	h.deleteBlob(r, oldKey)

	h.respondWithGame(w, r, id, http.StatusOK)
	slog.Info("game updated", "id", id, "name", req.input.Name, "status", req.input.Status, "cover", cover != nil)
}

// Delete handles DELETE /api/games/{id}.
func (h *GamesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}

	oldKey, err := store.DeleteGame(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete game", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete game")
		return
	}
	h.deleteBlob(r, oldKey)

	slog.Info("game deleted", "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "game deleted"})
}

// RemoveImage handles PUT /api/games/{id}/remove-image.
func (h *GamesHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}

	oldKey, err := store.ClearGameCover(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		slog.Error("failed to remove cover", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to remove cover")
		return
	}
	h.deleteBlob(r, oldKey)

	h.respondWithGame(w, r, id, http.StatusOK)
	if oldKey != "" {
		slog.Info("game cover removed", "id", id)
	}
}

// GetCover handles GET /api/games/{id}/cover.
func (h *GamesHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(w, r)
	if !ok {
		return
	}

	game, err := store.GetGame(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get game", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get cover")
		return
	}
	if game == nil || game.CoverKey == "" {
		jsonError(w, http.StatusNotFound, "no cover")
		return
	}

	data, mimeType, err := h.Covers.Get(r.Context(), game.CoverKey)
	if errors.Is(err, covers.ErrNotFound) {
		slog.Warn("cover blob missing", "id", id, "key", game.CoverKey)
		jsonError(w, http.StatusNotFound, "no cover")
		return
	}
	if err != nil {
		slog.Error("failed to read cover", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get cover")
		return
	}
	if mimeType == "" {
		mimeType = game.CoverMime
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write cover response", "error", err)
	}
}

// decodeGameRequest reads a JSON or multipart body, validates the fields,
// and processes an attached cover. It writes the error response itself.
func (h *GamesHandler) decodeGameRequest(w http.ResponseWriter, r *http.Request) (*gameRequest, bool) {
	req := &gameRequest{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
			return nil, false
		}
		req.input = model.GameInput{
			Name:        r.FormValue("name"),
			Platform:    r.FormValue("platform"),
			Status:      r.FormValue("status"),
			Description: r.FormValue("description"),
		}

		file, _, err := r.FormFile(CoverField)
		switch {
		case errors.Is(err, http.ErrMissingFile):
			// Fields only.
		case err != nil:
			jsonError(w, http.StatusBadRequest, "invalid cover image")
			return nil, false
		default:
			defer file.Close()
			result, err := imaging.Process(file)
			if err != nil {
				slog.Warn("rejected cover image", "error", err)
				jsonError(w, http.StatusBadRequest, "cover image must be JPEG, PNG, or WebP")
				return nil, false
			}
			req.cover = result
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		if err := decodeJSON(r, &req.input); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return nil, false
		}
	}

	if msg := normalizeInput(&req.input); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return nil, false
	}
	return req, true
}

// normalizeInput trims the fields and applies defaults. It returns a
// validation message, or "" when the input is acceptable.
func normalizeInput(in *model.GameInput) string {
	in.Name = strings.TrimSpace(in.Name)
	in.Platform = strings.TrimSpace(in.Platform)
	in.Description = strings.TrimSpace(in.Description)

	if in.Name == "" {
		return "name required"
	}
	if in.Platform == "" {
		return "platform required"
	}
	if in.Status == "" {
		in.Status = model.StatusBacklog
	}
	if !model.ValidStatus(in.Status) {
		return "invalid status"
	}
	return ""
}

// storeCover writes a processed cover to the bucket. A nil result stores
// nothing and returns a nil cover.
func (h *GamesHandler) storeCover(w http.ResponseWriter, r *http.Request, result *imaging.ProcessResult) (*store.Cover, bool) {
	if result == nil {
		return nil, true
	}
	key, err := h.Covers.Put(r.Context(), result.Data, result.MIME)
	if err != nil {
		slog.Error("failed to store cover", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save cover")
		return nil, false
	}
	return &store.Cover{Key: key, MIME: result.MIME}, true
}

// discardCover removes a cover blob that no row ended up referencing.
func (h *GamesHandler) discardCover(r *http.Request, cover *store.Cover) {
	if cover != nil {
		h.deleteBlob(r, cover.Key)
	}
}

func (h *GamesHandler) deleteBlob(r *http.Request, key string) {
	if key == "" {
		return
	}
	if err := h.Covers.Delete(r.Context(), key); err != nil {
		slog.Error("failed to delete cover blob", "key", key, "error", err)
	}
}

func (h *GamesHandler) respondWithGame(w http.ResponseWriter, r *http.Request, id int64, status int) {
	game, err := store.GetGame(r.Context(), h.DB, id)
	if err != nil || game == nil {
		slog.Error("failed to reload game", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	h.resolveCover(r, game)
	jsonResponse(w, status, game)
}

// resolveCover fills in the public cover URL from the stored key.
func (h *GamesHandler) resolveCover(r *http.Request, g *model.Game) {
	if g.CoverKey == "" {
		g.CoverImage = nil
		return
	}
	u := fmt.Sprintf("%s/api/games/%d/cover?v=%d", h.baseURL(r), g.ID, g.UpdatedAt.Unix())
	g.CoverImage = &u
}

func (h *GamesHandler) baseURL(r *http.Request) string {
	if h.PublicURL != "" {
		return strings.TrimRight(h.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}

// gameID parses the {id} path value, writing a 400 on failure.
func gameID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid game id")
		return 0, false
	}
	return id, true
}
