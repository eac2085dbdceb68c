package todoist

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the client's failure taxonomy. Callers are expected
// to branch with errors.Is and translate into user-facing replies.
var (
	// ErrAuth indicates the API token was rejected by Todoist.
	ErrAuth = errors.New("todoist: authentication failed")
	// ErrUnavailable indicates a transport failure, timeout, or server-side error.
	ErrUnavailable = errors.New("todoist: service unavailable")
	// ErrNotFound indicates the referenced task no longer exists.
	ErrNotFound = errors.New("todoist: not found")
	// ErrTaskCreation indicates the task itself could not be created.
	ErrTaskCreation = errors.New("todoist: task creation failed")
	// ErrAttachmentUpload indicates the task was created but the follow-up
	// attachment comment failed. The task is not rolled back.
	ErrAttachmentUpload = errors.New("todoist: attachment upload failed")
)

// apiError carries the HTTP detail behind a sentinel kind.
type apiError struct {
	op     string
	status int
	body   string
	kind   error
}

func (e *apiError) Error() string {
	if e.status == 0 {
		return fmt.Sprintf("todoist: %s: %s", e.op, e.body)
	}
	return fmt.Sprintf("todoist: %s: status %d: %s", e.op, e.status, e.body)
}

func (e *apiError) Unwrap() error { return e.kind }

// Code exposes a stable error code for structured log lines.
func (e *apiError) Code() string {
	switch e.kind {
	case ErrAuth:
		return "AUTH_ERROR"
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrTaskCreation:
		return "TASK_CREATION_FAILED"
	case ErrAttachmentUpload:
		return "ATTACHMENT_UPLOAD_FAILED"
	default:
		return "SERVICE_UNAVAILABLE"
	}
}

// classifyStatus maps an HTTP status to the matching sentinel.
func classifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 404:
		return ErrNotFound
	case status == 429 || status >= 500:
		return ErrUnavailable
	default:
		return ErrUnavailable
	}
}
