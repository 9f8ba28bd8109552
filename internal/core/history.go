package core

import (
	"context"
	"sync"
	"time"
)

// PublishStatus is the outcome of one publish attempt.
type PublishStatus string

const (
	StatusPublished    PublishStatus = "published"
	StatusAuthFailed   PublishStatus = "auth_failed"
	StatusUploadFailed PublishStatus = "upload_failed"
)

// DefaultHistoryLimit is the page size used when Recent gets a non-positive limit.
const DefaultHistoryLimit = 50

// MaxHistoryLimit caps the page size of a history query.
const MaxHistoryLimit = 500

// historyLimit maps a requested page size into [1, MaxHistoryLimit].
func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}

// PublishRecord is one entry of the publish history.
type PublishRecord struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"sessionId,omitempty"`
	FileName    string        `json:"fileName,omitempty"`
	WorkspaceID string        `json:"workspaceId"`
	DatasetName string        `json:"datasetName"`
	DatasetID   string        `json:"datasetId,omitempty"`
	Rows        int           `json:"rows"`
	Columns     int           `json:"columns"`
	Status      PublishStatus `json:"status"`
	HTTPStatus  int           `json:"httpStatus,omitempty"`
	Error       string        `json:"error,omitempty"`
	IPAddress   string        `json:"ipAddress,omitempty"`
	UserAgent   string        `json:"userAgent,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// HistoryStore persists publish attempts.
type HistoryStore interface {
	Record(ctx context.Context, rec PublishRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]PublishRecord, error)
}

// MemoryHistory keeps the most recent records in memory. It is used when no
// database is configured.
type MemoryHistory struct {
	mu      sync.Mutex
	records []PublishRecord
	limit   int
}

// NewMemoryHistory creates a store that retains at most limit records.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryHistory{limit: limit}
}

func (m *MemoryHistory) Record(_ context.Context, rec PublishRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, rec)
	if over := len(m.records) - m.limit; over > 0 {
		m.records = append(m.records[:0:0], m.records[over:]...)
	}
	return nil
}

func (m *MemoryHistory) Recent(_ context.Context, limit int) ([]PublishRecord, error) {
	limit = historyLimit(limit)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(limit, len(m.records))
	out := make([]PublishRecord, 0, n)
	for i := len(m.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}
