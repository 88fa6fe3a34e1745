// Package api provides HTTP API handlers for stored photo captures.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/posebooth/internal/store"
)

// CaptureHandler handles HTTP requests for capture resources.
type CaptureHandler struct {
	store *store.Store
}

// NewCaptureHandler creates a new CaptureHandler with the given store.
func NewCaptureHandler(s *store.Store) *CaptureHandler {
	return &CaptureHandler{store: s}
}

// ServeHTTP routes /api/captures, /api/captures/{id} and
// /api/captures/{id}/image.
func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/captures")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, id)
		case http.MethodDelete:
			h.delete(w, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "image":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.image(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type cropResponse struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type captureResponse struct {
	ID        string       `json:"id"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Crop      cropResponse `json:"crop"`
	SizeBytes int64        `json:"size_bytes"`
	TakenAt   string       `json:"taken_at"`
	ImageURL  string       `json:"image_url"`
}

type listCapturesResponse struct {
	Captures []captureResponse `json:"captures"`
	Total    int               `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(c *store.Capture) captureResponse {
	return captureResponse{
		ID:     c.ID,
		Width:  c.Width,
		Height: c.Height,
		Crop: cropResponse{
			X:      c.Crop.Min.X,
			Y:      c.Crop.Min.Y,
			Width:  c.Crop.Dx(),
			Height: c.Crop.Dy(),
		},
		SizeBytes: c.SizeBytes,
		TakenAt:   c.TakenAt.Format(time.RFC3339),
		ImageURL:  "/api/captures/" + c.ID + "/image",
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/captures?limit=N, newest first.
func (h *CaptureHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	captures, err := h.store.Captures().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list captures")
		return
	}
	total, err := h.store.Captures().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count captures")
		return
	}

	response := listCapturesResponse{
		Captures: make([]captureResponse, 0, len(captures)),
		Total:    total,
	}
	for _, c := range captures {
		response.Captures = append(response.Captures, toResponse(c))
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *CaptureHandler) lookup(w http.ResponseWriter, id string) (*store.Capture, bool) {
	c, err := h.store.Captures().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Capture not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get capture")
		return nil, false
	}
	return c, true
}

// get handles GET /api/captures/{id}.
func (h *CaptureHandler) get(w http.ResponseWriter, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

// image handles GET /api/captures/{id}/image and serves the JPEG.
func (h *CaptureHandler) image(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}
	if _, err := os.Stat(c.Path); err != nil {
		writeError(w, http.StatusNotFound, "Capture image missing")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, c.Path)
}

// delete handles DELETE /api/captures/{id}. The JPEG is removed with the row.
func (h *CaptureHandler) delete(w http.ResponseWriter, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}
	if err := h.store.Captures().Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete capture")
		return
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusInternalServerError, "Failed to remove capture image")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
