package minglers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"menu-planner/internal/integrations/upstream"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestDiscuss_HappyPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, discussPath, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"people":[{"name":"Ann"}],"chef":{"name":"Bo"},"consultants":[],"menu":[{"name":"Soup A"}]}`, string(body))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"task_id":"t1","status":"pending","message":"queued"}`))
	})

	out, err := c.Discuss(context.Background(), DiscussRequest{
		People:      json.RawMessage(`[{"name":"Ann"}]`),
		Chef:        json.RawMessage(`{"name":"Bo"}`),
		Consultants: json.RawMessage(`[]`),
		Menu:        json.RawMessage(`[{"name":"Soup A"}]`),
	})
	require.NoError(t, err)
	require.Equal(t, TaskAccepted{TaskID: "t1", Status: TaskPending, Message: "queued"}, out)
}

func TestDiscuss_MissingTaskIDIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	})
	out, err := c.Discuss(context.Background(), DiscussRequest{})
	require.NoError(t, err)
	require.Empty(t, out.TaskID)
}

func TestDiscuss_ValidationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","chef"],"msg":"field required","type":"missing"}]}`))
	})
	_, err := c.Discuss(context.Background(), DiscussRequest{})
	var valErr *upstream.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Equal(t, "body.chef", valErr.Details[0].Location)
}

func TestDiscuss_MalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`nope`))
	})
	_, err := c.Discuss(context.Background(), DiscussRequest{})
	require.ErrorContains(t, err, "decode discuss response")
}

func TestDiscussionStatus_Completed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/discuss/t1", r.URL.Path)
		_, _ = w.Write([]byte(`{"task_id":"t1","status":"completed","created_at":"2026-10-18T09:00:00Z","completed_at":"2026-10-18T09:05:00Z","result":{"monday":{"name":"Soup A"}}}`))
	})
	st, err := c.DiscussionStatus(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, st.Status)
	require.True(t, st.HasResult())
	require.JSONEq(t, `{"monday":{"name":"Soup A"}}`, string(st.Result))
	require.NotNil(t, st.CompletedAt)
	require.Nil(t, st.StartedAt)
}

func TestDiscussionStatus_RunningWithNullResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_id":"t1","status":"running","created_at":"x","result":null}`))
	})
	st, err := c.DiscussionStatus(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, TaskRunning, st.Status)
	require.False(t, st.HasResult())
}

func TestDiscussionStatus_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.DiscussionStatus(context.Background(), "t1")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDiscussionStatus_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.DiscussionStatus(context.Background(), "t1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTaskNotFound)
}

func TestDiscussionStatus_EmptyTaskID(t *testing.T) {
	c, err := New("http://localhost:1")
	require.NoError(t, err)
	_, err = c.DiscussionStatus(context.Background(), " ")
	require.ErrorContains(t, err, "task id")
}

func TestBroadcast(t *testing.T) {
	var got broadcastMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, broadcastPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.Broadcast(context.Background(), "menu-planner", "discussion started"))
	require.Equal(t, broadcastMessage{Type: "system", Name: "menu-planner", Message: "discussion started"}, got)
}

func TestBroadcast_Error(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	require.ErrorContains(t, c.Broadcast(context.Background(), "n", "m"), "broadcast")
}
