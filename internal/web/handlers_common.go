// Package web provides HTTP handlers for the upload application.
// This file contains shared utilities and helper functions used across handlers.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"maragu.dev/gomponents"

	"github.com/JonMunkholm/jsonbi/internal/core"
)

const (
	// multipartOverhead is the allowance for multipart headers and
	// boundaries on top of the file size limit.
	multipartOverhead = 1 << 20

	// maxMemory is how much of a multipart form is buffered in memory
	// before spilling to temporary files.
	maxMemory = 32 << 20

	// formFileField is the multipart field that carries the upload.
	formFileField = "file"
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// uploadedFile is the file part of a multipart upload.
type uploadedFile struct {
	Name string
	File multipart.File
}

// readUploadedFile parses a multipart form and returns its file field.
// An oversized body is reported as core.ErrFileTooLarge and a missing
// field as core.ErrNoFile. The caller closes the file.
func (s *Server) readUploadedFile(w http.ResponseWriter, r *http.Request) (*uploadedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, uploadFormError(err)
	}

	file, header, err := r.FormFile(formFileField)
	if err != nil {
		return nil, uploadFormError(err)
	}
	return &uploadedFile{Name: header.Filename, File: file}, nil
}

// uploadFormError translates request body errors into service errors.
func uploadFormError(err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, maxBytes.Limit)
	case errors.Is(err, http.ErrMissingFile):
		return core.ErrNoFile
	case errors.Is(err, http.ErrNotMultipart):
		return fmt.Errorf("%w: request is not a multipart form", core.ErrNoFile)
	}
	return fmt.Errorf("%w: %v", core.ErrNoFile, err)
}

// renderHTML writes a gomponents node as an HTML response.
func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := node.Render(w); err != nil {
		slog.Error("render html", "error", err)
	}
}
