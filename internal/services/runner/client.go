package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/common"
	"github.com/shopwise/dealagent/internal/interfaces"
)

// Client talks to the external task runner: HTTP for submit and fetch,
// a websocket endpoint for push events.
type Client struct {
	config     *common.RunnerConfig
	logger     arbor.ILogger
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a new task runner client
func NewClient(config *common.RunnerConfig, logger arbor.ILogger) interfaces.RunnerClient {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		dialer:     websocket.DefaultDialer,
	}
}

type submitRequest struct {
	Query  string                 `json:"query"`
	Kind   string                 `json:"kind"`
	Params map[string]interface{} `json:"params,omitempty"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

// Submit starts a task and returns the externally assigned task id
func (c *Client) Submit(ctx context.Context, query string, kind string, params map[string]interface{}) (string, error) {
	payload, err := json.Marshal(submitRequest{Query: query, Kind: kind, Params: params})
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/tasks", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("task submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("task runner returned status %d on submit", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read submit response: %w", err)
	}

	var submitted submitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if submitted.TaskID == "" {
		return "", fmt.Errorf("task runner returned empty task id")
	}

	c.logger.Info().Str("task_id", submitted.TaskID).Str("kind", kind).Msg("Task submitted")
	return submitted.TaskID, nil
}

// Fetch returns the current record for a task id
func (c *Client) Fetch(ctx context.Context, taskID string) (*interfaces.TaskRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("task fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, interfaces.ErrTaskNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("task runner returned status %d on fetch", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch response: %w", err)
	}

	var record interfaces.TaskRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to decode task record: %w", err)
	}
	return &record, nil
}

// Subscribe opens the push-event stream for one task id. Events for other
// tasks arriving on the shared endpoint are filtered out.
func (c *Client) Subscribe(ctx context.Context, taskID string) (interfaces.TaskSubscription, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.config.EventsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial event endpoint: %w", err)
	}

	c.logger.Debug().Str("task_id", taskID).Str("endpoint", c.config.EventsURL).Msg("Event subscription opened")
	return newSubscription(conn, taskID, c.logger), nil
}
