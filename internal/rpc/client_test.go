package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Call_Success(t *testing.T) {
	var gotArgs map[string]any
	var gotPath, gotUser, gotRequestID string
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser = r.Header.Get(HeaderUser)
		gotRequestID = r.Header.Get(HeaderRequestID)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotArgs))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message": "[{\"year\": 2024}]"}`))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL+"/", "alice", nil)
	msg, err := client.Call(context.Background(), "get_weeks_as_dict", map[string]any{
		"year":          2024,
		"from_week_num": 1,
		"to_week_num":   52,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/method/get_weeks_as_dict", gotPath)
	assert.Equal(t, "alice", gotUser)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, map[string]any{"year": 2024.0, "from_week_num": 1.0, "to_week_num": 52.0}, gotArgs)

	var payload string
	require.NoError(t, json.Unmarshal(msg, &payload))
	assert.Equal(t, `[{"year": 2024}]`, payload)
}

func TestClient_Call_RemoteError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"exc_type": "DoesNotExistError", "exception": "week 2024-60 not found"}`))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, "", nil)
	_, err := client.Call(context.Background(), "get_weeks_as_dict", map[string]any{})
	require.Error(t, err)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusNotFound, remote.Status)
	assert.Equal(t, "DoesNotExistError", remote.Type)
	assert.Equal(t, "week 2024-60 not found", remote.Message)
}

func TestClient_Call_MalformedBody(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, "", nil)
	_, err := client.Call(context.Background(), "get_weeks_as_dict", nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Call_TransportError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := mockServer.URL
	mockServer.Close()

	client := NewClient(url, "", nil)
	_, err := client.Call(context.Background(), "get_weeks_as_dict", nil)
	require.Error(t, err)
	var remote *RemoteError
	assert.False(t, errors.As(err, &remote))
}

func TestClient_Call_DeadlineComesFromContext(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer mockServer.Close()

	client := NewClient(mockServer.URL, "", nil)
	assert.Zero(t, client.HTTPClient.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := client.Call(ctx, "get_weeks_as_dict", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
