package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/jsonbi/internal/logging"
	"github.com/JonMunkholm/jsonbi/internal/powerbi"
	"github.com/JonMunkholm/jsonbi/internal/tabular"
)

var (
	// ErrNoFile is returned when an upload carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrFileTooLarge is returned when an upload exceeds Options.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedFileType is returned for uploads without a .json extension.
	ErrUnsupportedFileType = errors.New("unsupported file type: expected a .json file")
)

// DefaultMaxFileSize caps uploads when Options.MaxFileSize is not set.
const DefaultMaxFileSize int64 = 10 << 20

// defaultFileName names uploads that arrive without one.
const defaultFileName = "upload.json"

// Publisher creates a remote dataset from a table. *powerbi.Client
// implements it.
type Publisher interface {
	PublishTable(ctx context.Context, t *tabular.Table) (*powerbi.PublishResult, error)
}

// Options configures a Service.
type Options struct {
	MaxFileSize            int64
	PreviewRows            int
	SessionTTL             time.Duration
	MaxSessions            int
	MaxConcurrentPublishes int
	MaxPublishWait         time.Duration

	// Recorded in history; the publisher owns the real destination.
	WorkspaceID string
	DatasetName string
}

// Service converts uploaded JSON into tables, holds them until the user
// publishes, and records every publish attempt.
type Service struct {
	publisher Publisher
	history   HistoryStore
	sessions  *SessionStore
	limiter   *PublishLimiter
	opts      Options
}

// NewService creates a Service. A nil history keeps records in memory.
func NewService(publisher Publisher, history HistoryStore, opts Options) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = tabular.PreviewRows
	}
	if history == nil {
		history = NewMemoryHistory(DefaultHistoryLimit)
	}

	return &Service{
		publisher: publisher,
		history:   history,
		sessions:  NewSessionStore(opts.SessionTTL, opts.MaxSessions),
		limiter:   NewPublishLimiter(opts.MaxConcurrentPublishes, opts.MaxPublishWait),
		opts:      opts,
	}
}

// Preview is the first rows of a converted upload plus the session that
// holds the full table.
type Preview struct {
	SessionID string        `json:"sessionId"`
	FileName  string        `json:"fileName"`
	Columns   []string      `json:"columns"`
	Rows      []tabular.Row `json:"rows"`
	TotalRows int           `json:"totalRows"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Normalize reads a JSON document from r, converts it into a table and
// stores the table in a new session. Parse and shape failures are returned
// as *tabular.ParseError and *tabular.UnsupportedShapeError.
func (s *Service) Normalize(ctx context.Context, fileName string, r io.Reader) (*Preview, error) {
	if r == nil {
		return nil, ErrNoFile
	}

	name := cleanFileName(fileName)
	if name == "" {
		name = defaultFileName
	}
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, name)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, s.opts.MaxFileSize)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	table, err := tabular.NormalizeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", name, err)
	}

	sess := s.sessions.Put(name, table)
	logging.FromContext(ctx).Info("json converted",
		"session_id", sess.ID,
		"file", name,
		"bytes", len(data),
		"rows", table.Len(),
		"columns", len(table.Columns),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return s.preview(sess), nil
}

// Preview returns the preview of an existing session.
func (s *Service) Preview(sessionID string) (*Preview, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.preview(sess), nil
}

func (s *Service) preview(sess *Session) *Preview {
	p := tabular.Preview(sess.Table, s.opts.PreviewRows)
	return &Preview{
		SessionID: sess.ID,
		FileName:  sess.FileName,
		Columns:   p.Columns,
		Rows:      p.Rows,
		TotalRows: sess.Table.Len(),
		ExpiresAt: sess.ExpiresAt,
	}
}

// Publish sends the session's full table to the publisher. The attempt is
// recorded in history whatever the outcome. A successful publish ends the
// session; a failed one leaves it in place so the user can try again.
// While a publish runs, other publishes of the same session fail with
// ErrPublishInProgress. Errors from the publisher are returned unchanged.
func (s *Service) Publish(ctx context.Context, sessionID string) (*powerbi.PublishResult, error) {
	sess, err := s.sessions.Claim(sessionID)
	if err != nil {
		return nil, err
	}
	published := false
	defer func() {
		if published {
			s.sessions.Delete(sess.ID)
		} else {
			s.sessions.Unclaim(sess.ID)
		}
	}()

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "session_id", sess.ID, "file", sess.FileName)
	logger.Info("publish started", "rows", sess.Table.Len(), "columns", len(sess.Table.Columns))

	start := time.Now()
	result, err := s.publisher.PublishTable(ctx, sess.Table)

	rec := PublishRecord{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		FileName:    sess.FileName,
		WorkspaceID: s.opts.WorkspaceID,
		DatasetName: s.opts.DatasetName,
		Rows:        sess.Table.Len(),
		Columns:     len(sess.Table.Columns),
		IPAddress:   IPAddressFromContext(ctx),
		UserAgent:   UserAgentFromContext(ctx),
		Duration:    time.Since(start),
		CreatedAt:   start.UTC(),
	}
	applyOutcome(&rec, result, err)

	// Recorded even when the request was cancelled.
	if herr := s.history.Record(context.WithoutCancel(ctx), rec); herr != nil {
		logger.Warn("failed to record publish history", "publish_id", rec.ID, "error", herr)
	}

	if err != nil {
		logger.Warn("publish failed", "publish_id", rec.ID, "status", rec.Status, "error", err)
		return nil, err
	}

	published = true
	logger.Info("publish completed",
		"publish_id", rec.ID,
		"dataset_id", rec.DatasetID,
		"duration_ms", rec.Duration.Milliseconds(),
	)
	return result, nil
}

// applyOutcome fills the status fields of rec from a publish result.
func applyOutcome(rec *PublishRecord, result *powerbi.PublishResult, err error) {
	var (
		authErr   *powerbi.AuthenticationError
		uploadErr *powerbi.UploadError
	)

	switch {
	case err == nil:
		rec.Status = StatusPublished
		if result != nil {
			rec.DatasetID = result.DatasetID
			rec.HTTPStatus = result.StatusCode
			if result.WorkspaceID != "" {
				rec.WorkspaceID = result.WorkspaceID
			}
			if result.DatasetName != "" {
				rec.DatasetName = result.DatasetName
			}
		}
	case errors.As(err, &authErr):
		rec.Status = StatusAuthFailed
		rec.HTTPStatus = authErr.StatusCode
		rec.Error = authErr.Error()
	case errors.As(err, &uploadErr):
		rec.Status = StatusUploadFailed
		rec.HTTPStatus = uploadErr.StatusCode
		rec.Error = uploadErr.Error()
	default:
		rec.Status = StatusUploadFailed
		rec.Error = err.Error()
	}
}

// History returns up to limit recent publish attempts, newest first. The
// limit is capped at MaxHistoryLimit.
func (s *Service) History(ctx context.Context, limit int) ([]PublishRecord, error) {
	records, err := s.history.Recent(ctx, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("load publish history: %w", err)
	}
	return records, nil
}

// Status is a snapshot of the service for monitoring.
type Status struct {
	Publishes   PublishLimiterStatus `json:"publishes"`
	Sessions    int                  `json:"sessions"`
	WorkspaceID string               `json:"workspaceId"`
	DatasetName string               `json:"datasetName"`
}

// Status returns the current limiter and session counts.
func (s *Service) Status() Status {
	return Status{
		Publishes:   s.limiter.Status(),
		Sessions:    s.sessions.Len(),
		WorkspaceID: s.opts.WorkspaceID,
		DatasetName: s.opts.DatasetName,
	}
}

// WaitForPublishes blocks until in-flight publishes finish or ctx is done.
func (s *Service) WaitForPublishes(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
