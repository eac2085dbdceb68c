package todoist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", Options{BaseURL: srv.URL})
}

func TestProjects(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/projects", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"1","name":"Inbox"},{"id":"2","name":"Work"}]`))
	})

	projects, err := client.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, Project{ID: "1", Name: "Inbox"}, projects[0])
	assert.Equal(t, Project{ID: "2", Name: "Work"}, projects[1])
}

func TestProjectsAuthError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Projects(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.False(t, client.Validate(context.Background()))
}

func TestProjectsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Projects(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateTask(t *testing.T) {
	due := time.Date(2024, 6, 12, 19, 32, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Buy milk", body["content"])
		assert.Equal(t, "42", body["project_id"])
		assert.Equal(t, due.Format(time.RFC3339), body["due_datetime"])

		_, _ = w.Write([]byte(`{"id":"777"}`))
	})

	id, err := client.CreateTask(context.Background(), Draft{
		Content:   "Buy milk",
		ProjectID: "42",
		Due:       &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "777", id)
}

func TestCreateTaskWithAttachment(t *testing.T) {
	var commentBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tasks":
			_, _ = w.Write([]byte(`{"id":"777"}`))
		case "/comments":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&commentBody))
			_, _ = w.Write([]byte(`{"id":"c1"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	id, err := client.CreateTask(context.Background(), Draft{
		Content: "Photo Task",
		Attachment: &Attachment{
			FileURL:  "https://files.example/photo",
			FileType: "image/png",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "777", id)

	require.NotNil(t, commentBody)
	assert.Equal(t, "777", commentBody["task_id"])
	att, ok := commentBody["attachment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "file", att["resource_type"])
	assert.Equal(t, "photo_777.png", att["file_name"])
	assert.Equal(t, "image/png", att["file_type"])
}

func TestCreateTaskAttachmentFailureKeepsTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tasks":
			_, _ = w.Write([]byte(`{"id":"777"}`))
		case "/comments":
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	id, err := client.CreateTask(context.Background(), Draft{
		Content:    "Photo Task",
		Attachment: &Attachment{FileURL: "https://files.example/photo"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttachmentUpload)
	assert.Equal(t, "777", id)
}

func TestCreateTaskFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	id, err := client.CreateTask(context.Background(), Draft{Content: "x"})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.ErrorIs(t, err, ErrTaskCreation)
}

func TestDeleteTaskNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/tasks/777", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.DeleteTask(context.Background(), "777")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDue(t *testing.T) {
	due := time.Date(2024, 6, 12, 19, 32, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks/777", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, due.Format(time.RFC3339), body["due_datetime"])
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.UpdateDue(context.Background(), "777", due))
}

func TestNetworkErrorIsUnavailable(t *testing.T) {
	client := NewClient("tok", Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := client.Projects(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
