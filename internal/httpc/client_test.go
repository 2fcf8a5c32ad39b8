package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"threshold":0.25,"frames_required":15}`))
	}))
	defer srv.Close()

	var got struct {
		Threshold      float64 `json:"threshold"`
		FramesRequired int     `json:"frames_required"`
	}
	require.NoError(t, GetJSON(context.Background(), srv.URL, &got))
	assert.Equal(t, 0.25, got.Threshold)
	assert.Equal(t, 15, got.FramesRequired)
}

func TestPostJSON(t *testing.T) {
	var gotBody map[string]any
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out map[string]bool
	require.NoError(t, PostJSON(context.Background(), srv.URL, map[string]int{"frames_required": 4}, &out))
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, float64(4), gotBody["frames_required"])
	assert.True(t, out["ok"])
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown preset"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), srv.URL, nil, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Contains(t, statusErr.Body, "unknown preset")
}
