package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type pinger struct {
	err error
}

func (p pinger) PingContext(context.Context) error { return p.err }

func getHealth(t *testing.T, s *Server) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return resp.Code, body
}

func TestHealth_NoDatabase(t *testing.T) {
	code, body := getHealth(t, New(":0", nil, "release"))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "disabled", body["database"])
}

func TestHealth_DatabaseUp(t *testing.T) {
	code, body := getHealth(t, New(":0", pinger{}, "release"))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "connected", body["database"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	code, body := getHealth(t, New(":0", pinger{err: errors.New("connection refused")}, "release"))
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "unhealthy", body["status"])
}

func TestMount(t *testing.T) {
	s := New(":0", nil, "release")
	s.Mount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tpms_up 1\n"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "tpms_up 1\n", resp.Body.String())
}
