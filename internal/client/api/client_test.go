package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/protocol"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second, zap.NewNop(), opts...)
}

func TestGetSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sessions/abc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"abc","code":"x","language":"python","createdAt":"2025-01-02T03:04:05Z","participants":2}`)
	})

	sess, err := c.GetSession(t.Context(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", sess.ID)
	assert.Equal(t, protocol.LanguagePython, sess.Language)
	assert.Equal(t, 2, sess.Participants)
}

func TestUpdateCodeSendsClientID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/sessions/abc/code", r.URL.Path)
		assert.Equal(t, "me", r.Header.Get("X-Client-Id"))

		var req protocol.UpdateCodeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Code)
		assert.Equal(t, "", *req.Code)
		assert.Equal(t, protocol.LanguageJavaScript, req.Language)

		_, _ = io.WriteString(w, `{"id":"abc","code":"","language":"javascript"}`)
	}, WithClientID("me"))

	sess, err := c.UpdateCode(t.Context(), "abc", "", protocol.LanguageJavaScript)
	require.NoError(t, err)
	assert.Equal(t, "abc", sess.ID)
}

func TestCreateSessionAndReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"new","language":"python"}`)
		case "/sessions/new/execution-result":
			var res protocol.ExecutionResult
			require.NoError(t, json.NewDecoder(r.Body).Decode(&res))
			assert.True(t, res.Success)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	sess, err := c.CreateSession(t.Context(), protocol.LanguagePython)
	require.NoError(t, err)
	assert.Equal(t, "new", sess.ID)

	err = c.ReportExecution(t.Context(), "new", protocol.ExecutionResult{Success: true, Output: "ok", ExecutionTime: 3})
	assert.NoError(t, err)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		code     string
		message  string
	}{
		{
			name:     "session not found",
			status:   http.StatusNotFound,
			body:     `{"message":"Session abc not found","code":"SESSION_NOT_FOUND","status":404}`,
			sentinel: cnst.ErrSessionNotFound,
			code:     protocol.CodeSessionNotFound,
			message:  "Session abc not found",
		},
		{
			name:     "invalid request",
			status:   http.StatusBadRequest,
			body:     `{"message":"invalid language","code":"INVALID_REQUEST","status":400}`,
			sentinel: cnst.ErrSyncFailed,
			code:     protocol.CodeInvalidRequest,
			message:  "invalid language",
		},
		{
			name:     "non json body",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			sentinel: cnst.ErrSyncFailed,
			message:  "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.GetSession(t.Context(), "abc")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestTimeoutIsSyncFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(srv.URL, 50*time.Millisecond, zap.NewNop())
	_, err := c.GetSession(t.Context(), "slow")
	assert.ErrorIs(t, err, cnst.ErrSyncFailed)
}

func TestUnreachableServer(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second, zap.NewNop())
	_, err := c.UpdateCode(t.Context(), "abc", "x", protocol.LanguageJavaScript)
	assert.ErrorIs(t, err, cnst.ErrSyncFailed)
	assert.NotErrorIs(t, err, cnst.ErrSessionNotFound)
}
