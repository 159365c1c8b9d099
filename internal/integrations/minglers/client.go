// Package minglers is a client for the multi-persona discussion engine.
package minglers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"menu-planner/internal/integrations/upstream"
)

const (
	discussPath   = "/api/v1/discuss"
	broadcastPath = "/api/v1/ws/broadcast"

	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// ErrTaskNotFound is returned when the engine does not know a task id.
var ErrTaskNotFound = errors.New("minglers: task not found")

// DiscussRequest carries the household personas and the menus to discuss.
// All fields are passed through to the engine unmodified.
type DiscussRequest struct {
	People      json.RawMessage `json:"people"`
	Chef        json.RawMessage `json:"chef"`
	Consultants json.RawMessage `json:"consultants"`
	Menu        json.RawMessage `json:"menu"`
}

// TaskAccepted is the engine's answer to a discussion submission.
type TaskAccepted struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskStatus is the engine's view of a discussion task.
type TaskStatus struct {
	TaskID      string          `json:"task_id"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	StartedAt   *string         `json:"started_at,omitempty"`
	CompletedAt *string         `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// HasResult reports whether the engine attached a result payload.
func (s TaskStatus) HasResult() bool {
	trimmed := bytes.TrimSpace(s.Result)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

type broadcastMessage struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type Client struct {
	http *upstream.Client
}

func New(baseURL string, opts ...upstream.Option) (*Client, error) {
	c, err := upstream.New(baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("minglers: %w", err)
	}
	return &Client{http: c}, nil
}

// Discuss submits a discussion task. The returned task id is not validated
// here; callers decide how to treat a missing one.
func (c *Client) Discuss(ctx context.Context, req DiscussRequest) (TaskAccepted, error) {
	raw, err := c.http.DoJSON(ctx, http.MethodPost, discussPath, nil, req)
	if err != nil {
		return TaskAccepted{}, fmt.Errorf("minglers: discuss: %w", err)
	}
	var out TaskAccepted
	if err := json.Unmarshal(raw, &out); err != nil {
		return TaskAccepted{}, fmt.Errorf("minglers: decode discuss response: %w", err)
	}
	return out, nil
}

// DiscussionStatus fetches the state of a task. An unknown task yields
// ErrTaskNotFound.
func (c *Client) DiscussionStatus(ctx context.Context, taskID string) (TaskStatus, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return TaskStatus{}, errors.New("minglers: task id must not be empty")
	}
	raw, err := c.http.DoJSON(ctx, http.MethodGet, discussPath+"/"+url.PathEscape(taskID), nil, nil)
	if err != nil {
		if code, ok := upstream.StatusCode(err); ok && code == http.StatusNotFound {
			return TaskStatus{}, fmt.Errorf("minglers: status %q: %w", taskID, ErrTaskNotFound)
		}
		return TaskStatus{}, fmt.Errorf("minglers: status %q: %w", taskID, err)
	}
	var out TaskStatus
	if err := json.Unmarshal(raw, &out); err != nil {
		return TaskStatus{}, fmt.Errorf("minglers: decode status response: %w", err)
	}
	return out, nil
}

// Broadcast posts a system message to the engine's live channel.
func (c *Client) Broadcast(ctx context.Context, name, message string) error {
	_, err := c.http.DoJSON(ctx, http.MethodPost, broadcastPath, nil, broadcastMessage{
		Type:    "system",
		Name:    name,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("minglers: broadcast: %w", err)
	}
	return nil
}
