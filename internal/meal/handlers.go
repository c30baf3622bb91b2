package meal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zombor/calorie-scan/internal/analysis"
)

// formOverhead is the multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

// stateResponse is the JSON form of a session state
type stateResponse struct {
	Phase Phase `json:"phase"`
	State
}

func newStateResponse(state State) stateResponse {
	return stateResponse{Phase: state.Phase(), State: state}
}

// selectImageResponse reports whether an upload was taken and the resulting state
type selectImageResponse struct {
	Accepted bool          `json:"accepted"`
	State    stateResponse `json:"state"`
}

// corsError writes a plain-text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON writes a JSON body with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handleIndex serves the full page for the caller's session
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	controller := s.session(w, r)

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderPage(w, controller.State()); err != nil {
		slog.Error("Error rendering page", "error", err)
	}
}

// handlePanel serves the uploader/result fragment
func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	controller := s.session(w, r)

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderPanel(w, controller.State()); err != nil {
		slog.Error("Error rendering panel", "error", err)
	}
}

// handleGetState returns the session state
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	controller := s.session(w, r)
	writeJSON(w, http.StatusOK, newStateResponse(controller.State()))
}

// handleSelectImage takes a dropped or picked file
func (s *Server) handleSelectImage(w http.ResponseWriter, r *http.Request) {
	controller := s.session(w, r)

	maxSize := s.service.uploader.maxSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)
	if err := r.ParseMultipartForm(maxSize + formOverhead); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Please compress or resize your image.", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	source := ParseSource(r.FormValue("source"))
	selection, state, err := s.service.SelectImage(controller, source, File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
	})
	if err != nil {
		slog.Error("Error selecting image", "filename", header.Filename, "source", source, "error", err)
		switch {
		case errors.Is(err, ErrTooLarge):
			jsonError(w, "File is too large. Please compress or resize your image.", http.StatusRequestEntityTooLarge)
		case errors.Is(err, analysis.ErrUnsupportedImage):
			jsonError(w, "Unsupported image format. Supported formats: JPEG, PNG, GIF, WebP, HEIC.", http.StatusUnsupportedMediaType)
		default:
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, selectImageResponse{
		Accepted: selection.Accepted,
		State:    newStateResponse(state),
	})
}

// handleClearImage returns the session to idle
func (s *Server) handleClearImage(w http.ResponseWriter, r *http.Request) {
	controller := s.session(w, r)
	writeJSON(w, http.StatusOK, newStateResponse(controller.Clear()))
}

// handleAnalyze runs the analysis and returns the resulting state.
// An analysis failure is part of the state, so it still answers 200.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	controller := s.session(w, r)

	state, err := controller.Analyze(r.Context())
	switch {
	case errors.Is(err, ErrNoImage):
		jsonError(w, "No image selected", http.StatusBadRequest)
		return
	case errors.Is(err, ErrAnalysisInProgress):
		jsonError(w, "Analysis already in progress", http.StatusConflict)
		return
	case err != nil && !errors.Is(err, ErrStaleAnalysis):
		slog.Error("Error analyzing image", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newStateResponse(state))
}

// handleListHistory returns recent successful analyses
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			corsError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.service.ListHistory(limit)
	if errors.Is(err, ErrHistoryDisabled) {
		corsError(w, "History is disabled", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error listing history", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleGetHistoryEntry returns a single history entry
func (s *Server) handleGetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "History entry ID required", http.StatusBadRequest)
		return
	}

	entry, err := s.service.GetHistoryEntry(id)
	if err != nil {
		corsError(w, "History entry not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteHistoryEntry deletes a history entry
func (s *Server) handleDeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "History entry ID required", http.StatusBadRequest)
		return
	}

	if err := s.service.DeleteHistoryEntry(id); err != nil {
		slog.Error("Error deleting history entry", "id", id, "error", err)
		corsError(w, "History entry not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
