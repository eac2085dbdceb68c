package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"todobridge/core/logger"
)

// DefaultBaseURL is the Todoist REST API v2 base URL (overridable in tests).
const DefaultBaseURL = "https://api.todoist.com/rest/v2"

const defaultTimeout = 15 * time.Second

// Project is a Todoist project as returned by GET /projects.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Attachment describes a file to attach to a task via a follow-up comment.
type Attachment struct {
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
	FileName string `json:"file_name"`
}

// Draft is a not-yet-submitted task.
type Draft struct {
	Content     string
	Description string
	ProjectID   string
	Due         *time.Time
	Attachment  *Attachment
}

// Options tunes a Client; zero values select defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client is a Todoist REST API client bound to a single API token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the given token.
func NewClient(token string, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{token: token, baseURL: base, http: hc}
}

// Projects lists all projects visible to the token.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Validate reports whether the token is usable. Any failure, auth or
// transport alike, counts as invalid; the caller sees a single boolean.
func (c *Client) Validate(ctx context.Context) bool {
	_, err := c.Projects(ctx)
	return err == nil
}

type createTaskRequest struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	DueDatetime string `json:"due_datetime,omitempty"`
}

type createTaskResponse struct {
	ID string `json:"id"`
}

// CreateTask creates a task from the draft and returns its id. When the draft
// carries an attachment, a follow-up comment upload is attempted with the new
// task id; failure of that step does not roll the task back and is reported
// as ErrAttachmentUpload alongside the valid id.
func (c *Client) CreateTask(ctx context.Context, d Draft) (string, error) {
	req := createTaskRequest{
		Content:     d.Content,
		Description: d.Description,
		ProjectID:   d.ProjectID,
	}
	if d.Due != nil {
		req.DueDatetime = d.Due.Format(time.RFC3339)
	}

	var resp createTaskResponse
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &resp); err != nil {
		if errors.Is(err, ErrAuth) {
			return "", fmt.Errorf("create task: %w", err)
		}
		return "", &apiError{op: "create task", body: err.Error(), kind: ErrTaskCreation}
	}

	logger.Debug(ctx, "todoist", "task.create",
		slog.String("status", "ok"),
		slog.String("task_id", resp.ID),
		slog.String("project_id", d.ProjectID),
	)

	if d.Attachment != nil {
		att := *d.Attachment
		if att.FileName == "" {
			att.FileName = fmt.Sprintf("photo_%s.png", resp.ID)
		}
		if err := c.addComment(ctx, resp.ID, att); err != nil {
			return resp.ID, &apiError{op: "attach file", body: err.Error(), kind: ErrAttachmentUpload}
		}
	}
	return resp.ID, nil
}

type commentRequest struct {
	TaskID     string            `json:"task_id"`
	Content    string            `json:"content"`
	Attachment commentAttachment `json:"attachment"`
}

type commentAttachment struct {
	ResourceType string `json:"resource_type"`
	FileURL      string `json:"file_url"`
	FileType     string `json:"file_type"`
	FileName     string `json:"file_name"`
}

func (c *Client) addComment(ctx context.Context, taskID string, att Attachment) error {
	req := commentRequest{
		TaskID:  taskID,
		Content: att.FileURL,
		Attachment: commentAttachment{
			ResourceType: "file",
			FileURL:      att.FileURL,
			FileType:     att.FileType,
			FileName:     att.FileName,
		},
	}
	return c.do(ctx, http.MethodPost, "/comments", req, nil)
}

// DeleteTask removes a task. A task the service no longer recognizes yields
// ErrNotFound.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+taskID, nil, nil)
}

type updateDueRequest struct {
	DueDatetime string `json:"due_datetime"`
}

// UpdateDue sets a new due date-time on an existing task.
func (c *Client) UpdateDue(ctx context.Context, taskID string, due time.Time) error {
	req := updateDueRequest{DueDatetime: due.Format(time.RFC3339)}
	return c.do(ctx, http.MethodPost, "/tasks/"+taskID, req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("todoist: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("todoist: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &apiError{op: method + " " + path, body: err.Error(), kind: ErrUnavailable}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{
			op:     method + " " + path,
			status: resp.StatusCode,
			body:   string(detail),
			kind:   classifyStatus(resp.StatusCode),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("todoist: decode response: %w", err)
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
