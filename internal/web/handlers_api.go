package web

import (
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/jsonbi/internal/core"
)

// HistoryResponse wraps publish records for JSON encoding.
type HistoryResponse struct {
	Records []core.PublishRecord `json:"records"`
}

// handleAPIConvert accepts either a multipart form with a "file" field or a
// raw JSON body. Raw bodies take their file name from the "name" query
// parameter.
func (s *Server) handleAPIConvert(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var preview *core.Preview
	var err error

	if strings.HasPrefix(mediaType, "multipart/") {
		upload, ferr := s.readUploadedFile(w, r)
		if ferr != nil {
			s.respondError(w, r, ferr, 0)
			return
		}
		defer upload.File.Close()
		preview, err = s.service.Normalize(r.Context(), upload.Name, upload.File)
	} else {
		body := http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+1)
		preview, err = s.service.Normalize(r.Context(), r.URL.Query().Get("name"), body)
	}

	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, preview)
}

// handleAPIPreview returns the preview of a live session.
func (s *Server) handleAPIPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.Preview(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleAPIPublish publishes a session and returns the created dataset.
func (s *Server) handleAPIPublish(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.Publish(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleAPIHistory returns recent publish attempts, newest first.
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.History(r.Context(), parseIntParam(r, "limit", core.DefaultHistoryLimit))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []core.PublishRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: records})
}

// handleAPIStatus returns the publish limiter and session counts.
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}
