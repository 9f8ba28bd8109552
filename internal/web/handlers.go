package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/jsonbi/internal/core"
	"github.com/JonMunkholm/jsonbi/internal/logging"
	"github.com/JonMunkholm/jsonbi/internal/web/views"
)

// handleIndex renders the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	renderHTML(w, http.StatusOK, views.UploadPage(s.cfg.Upload.MaxFileSize, nil))
}

// handleConvert converts an uploaded file and renders its preview. Failures
// are shown above the upload form so the user can pick another file.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUploadedFile(w, r)
	if err != nil {
		s.renderUploadError(w, r, err)
		return
	}
	defer upload.File.Close()

	preview, err := s.service.Normalize(r.Context(), upload.Name, upload.File)
	if err != nil {
		s.renderUploadError(w, r, err)
		return
	}

	renderHTML(w, http.StatusOK, views.PreviewPage(preview, &views.Notice{
		Kind:    views.NoticeInfo,
		Message: "File converted. Review the preview and publish when ready.",
	}))
}

func (s *Server) renderUploadError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := logRequestError(r, err, status)
	renderHTML(w, status, views.UploadPage(s.cfg.Upload.MaxFileSize, views.ErrorNotice(msg)))
}

// handlePreviewPage re-renders the preview of a live session.
func (s *Server) handlePreviewPage(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.Preview(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.renderUploadError(w, r, err)
		return
	}
	renderHTML(w, http.StatusOK, views.PreviewPage(preview, nil))
}

// handlePublish sends the session's table to Power BI. On failure the
// preview is shown again with the provider's message so the user can retry.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	preview, err := s.service.Preview(sessionID)
	if err != nil {
		s.renderUploadError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.Publish(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			s.renderUploadError(w, r, err)
			return
		}
		status := statusFor(err)
		msg := logRequestError(r, err, status)
		renderHTML(w, status, views.PreviewPage(preview, views.ErrorNotice(msg)))
		return
	}

	logging.FromContext(ctx).Info("dataset published",
		"file", preview.FileName,
		"dataset", result.DatasetName,
		"rows", result.Rows,
	)
	renderHTML(w, http.StatusOK, views.PublishedPage(preview.FileName, result, s.cfg.Upload.MaxFileSize))
}

// handleHistoryPage lists recent publish attempts.
func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.History(r.Context(), parseIntParam(r, "limit", core.DefaultHistoryLimit))
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderHTML(w, http.StatusOK, views.HistoryPage(records))
}

// handleHealth reports liveness for load balancers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
