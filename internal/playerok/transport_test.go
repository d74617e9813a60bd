package playerok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, url string, retries int) *Transport {
	t.Helper()
	return NewTransport(TransportConfig{
		Endpoint:       url,
		Token:          "test-token",
		MaxRetries:     retries,
		RetryDelay:     time.Millisecond,
		RequestsPerSec: 1000,
	})
}

func writeData(t *testing.T, w http.ResponseWriter, data map[string]any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
}

func TestTransport_Call(t *testing.T) {
	var gotBody map[string]any
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		if c, err := r.Cookie("token"); err == nil {
			gotCookie = c.Value
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeData(t, w, map[string]any{"viewer": map[string]any{"id": "u-1"}})
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	data, err := tp.Call(context.Background(), Operation{
		Name:      "viewer",
		Query:     queryViewer,
		Variables: map[string]any{"x": 1},
	})
	require.NoError(t, err)

	viewer, ok := data["viewer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u-1", viewer["id"])

	assert.Equal(t, "viewer", gotBody["operationName"])
	assert.Equal(t, queryViewer, gotBody["query"])
	assert.Equal(t, "test-token", gotCookie)
}

func TestTransport_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeData(t, w, map[string]any{"ok": true})
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	data, err := tp.Call(context.Background(), Operation{Name: "op", Query: "query {}"})
	require.NoError(t, err)
	assert.Equal(t, true, data["ok"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestTransport_MaxRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	_, err := tp.Call(context.Background(), Operation{Name: "op", Query: "query {}"})
	require.Error(t, err)

	var mre *MaxRetriesError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, 3, mre.Attempts)
	assert.Equal(t, int32(3), calls.Load())

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadGateway, serr.Code)
}

func TestTransport_RetriesMalformedJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.Write([]byte("<html>oops</html>"))
			return
		}
		writeData(t, w, map[string]any{"ok": true})
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	_, err := tp.Call(context.Background(), Operation{Name: "op", Query: "query {}"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTransport_ForbiddenRotatesIdentityAndFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	before := tp.Identity()

	_, err := tp.Call(context.Background(), Operation{Name: "op", Query: "query {}"})
	require.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, int32(1), calls.Load(), "blocked identities must not be retried")

	after := tp.Identity()
	assert.NotEqual(t, before.Headers["Sentry-Trace"], after.Headers["Sentry-Trace"],
		"fingerprint should be regenerated after a block")
}

func TestTransport_BlockPageRotatesIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><title>Just a moment...</title></html>"))
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	before := tp.Identity()

	_, err := tp.Call(context.Background(), Operation{Name: "op", Query: "query {}"})
	require.ErrorIs(t, err, ErrBlocked)

	after := tp.Identity()
	assert.NotEqual(t, before.Headers["Sentry-Trace"], after.Headers["Sentry-Trace"])
}

func TestTransport_GraphQLErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"data":   nil,
			"errors": []map[string]any{{"message": "chat not found"}},
		})
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	_, err := tp.Call(context.Background(), Operation{Name: "chat", Query: queryChat})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "chat", apiErr.Operation)
	assert.Equal(t, "chat not found", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load(), "semantic errors must not be retried")
}

func TestTransport_PersistedQueryUsesGET(t *testing.T) {
	var gotMethod, gotName, gotExtensions, gotVariables string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotName = r.URL.Query().Get("operationName")
		gotExtensions = r.URL.Query().Get("extensions")
		gotVariables = r.URL.Query().Get("variables")
		writeData(t, w, map[string]any{"deals": map[string]any{}})
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	_, err := tp.Call(context.Background(), Operation{
		Name:          "deals",
		Variables:     map[string]any{"first": 24},
		PersistedHash: "abc123",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "deals", gotName)
	assert.Contains(t, gotExtensions, `"sha256Hash":"abc123"`)
	assert.Contains(t, gotExtensions, `"version":1`)
	assert.JSONEq(t, `{"first": 24}`, gotVariables)
}

func TestTransport_UploadMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	var gotOperations, gotMap, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotOperations = r.FormValue("operations")
		gotMap = r.FormValue("map")

		f, _, err := r.FormFile("1")
		require.NoError(t, err)
		defer f.Close()
		buf := make([]byte, 32)
		n, _ := f.Read(buf)
		gotFile = string(buf[:n])

		writeData(t, w, map[string]any{"createChatMessage": map[string]any{"id": "m-1"}})
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	data, err := tp.Upload(context.Background(), Operation{
		Name:  "createChatMessage",
		Query: mutationCreateChatMessage,
		Variables: map[string]any{
			"input": map[string]any{"chatId": "chat-1"},
			"file":  nil,
		},
	}, path)
	require.NoError(t, err)
	assert.NotNil(t, data["createChatMessage"])

	assert.Contains(t, gotOperations, `"operationName":"createChatMessage"`)
	assert.JSONEq(t, `{"1":["variables.file"]}`, gotMap)
	assert.Equal(t, "png-bytes", gotFile)
}

func TestTransport_CancelDuringRetryWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tp := NewTransport(TransportConfig{
		Endpoint:       srv.URL,
		Token:          "t",
		MaxRetries:     5,
		RetryDelay:     10 * time.Second,
		RequestsPerSec: 1000,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tp.Call(ctx, Operation{Name: "op", Query: "query {}"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_IdentityHeadersApplied(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		writeData(t, w, map[string]any{"ok": true})
	}))
	defer srv.Close()

	tp := newTestTransport(t, srv.URL, 3)
	_, err := tp.Call(context.Background(), Operation{Name: "op", Query: "query {}"})
	require.NoError(t, err)
	assert.Equal(t, tp.Identity().Headers["User-Agent"], gotUA)
}
