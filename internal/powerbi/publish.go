package powerbi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/JonMunkholm/jsonbi/internal/tabular"
)

// PublishResult describes a dataset created by Publish.
type PublishResult struct {
	DatasetID   string        `json:"datasetId,omitempty"`
	DatasetName string        `json:"datasetName"`
	WorkspaceID string        `json:"workspaceId"`
	TableName   string        `json:"tableName"`
	Rows        int           `json:"rows"`
	Columns     int           `json:"columns"`
	StatusCode  int           `json:"statusCode"`
	Duration    time.Duration `json:"duration"`
}

// DatasetsURL returns the dataset-creation endpoint for workspaceID.
func (c *Client) DatasetsURL(workspaceID string) string {
	return c.cfg.APIBaseURL + "/v1.0/myorg/groups/" + url.PathEscape(workspaceID) + "/datasets"
}

// Publish creates a dataset named datasetName in workspaceID holding t.
// Only 201 Created counts as success; any other outcome is an *UploadError
// carrying the response body. The request is sent at most once.
func (c *Client) Publish(ctx context.Context, t *tabular.Table, token *AccessToken, workspaceID, datasetName string) (*PublishResult, error) {
	if token == nil || token.Value == "" {
		return nil, &UploadError{Err: errors.New("missing access token")}
	}

	start := time.Now()
	payload := BuildPayload(datasetName, c.cfg.TableName, t)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &UploadError{Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.DatasetsURL(workspaceID), bytes.NewReader(body))
	if err != nil {
		return nil, &UploadError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, &UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusCreated {
		c.logger.Warn("dataset creation rejected",
			"workspace_id", workspaceID,
			"dataset", datasetName,
			"status", resp.StatusCode,
		)
		return nil, &UploadError{StatusCode: resp.StatusCode, Body: capBody(respBody)}
	}

	var created struct {
		ID string `json:"id"`
	}
	// The body is informational; a 201 without a parsable id is still success.
	_ = json.Unmarshal(respBody, &created)

	result := &PublishResult{
		DatasetID:   created.ID,
		DatasetName: datasetName,
		WorkspaceID: workspaceID,
		TableName:   c.cfg.TableName,
		Rows:        t.Len(),
		Columns:     len(t.Columns),
		StatusCode:  resp.StatusCode,
		Duration:    time.Since(start),
	}
	c.logger.Info("dataset created",
		"workspace_id", workspaceID,
		"dataset", datasetName,
		"dataset_id", result.DatasetID,
		"rows", result.Rows,
		"columns", result.Columns,
	)
	return result, nil
}

// PublishTable authenticates with the configured credentials and publishes t
// to the configured workspace and dataset name. Publish is not attempted
// when authentication fails.
func (c *Client) PublishTable(ctx context.Context, t *tabular.Table) (*PublishResult, error) {
	token, err := c.Authenticate(ctx, c.cfg.Credentials())
	if err != nil {
		return nil, err
	}
	return c.Publish(ctx, t, token, c.cfg.WorkspaceID, c.cfg.DatasetName)
}
