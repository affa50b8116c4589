package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/keywords"
)

func newClient(t *testing.T, cfg Config, log *zap.Logger) *Client {
	t.Helper()

	c, err := New(cfg, log, 0)
	require.NoError(t, err)
	return c
}

func writeGenerate(w http.ResponseWriter, response string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	_ = json.NewEncoder(w).Encode(api.GenerateResponse{Model: "llama3", Response: response, Done: true})
}

func TestCompleteSendsGenerateRequest(t *testing.T) {
	var got api.GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeGenerate(w, "ok")
	}))
	defer srv.Close()

	c := newClient(t, Config{APIURL: srv.URL + "/", Model: "llama3"}, zap.NewNop())

	out, err := c.Complete(context.Background(), ai.Attempt{Prompt: "p", System: "s", Retry: true})
	require.NoError(t, err)

	assert.Equal(t, "ok", out)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "p", got.Prompt)
	assert.Equal(t, "s", got.System)
	require.NotNil(t, got.Stream)
	assert.False(t, *got.Stream)
	assert.EqualValues(t, retryContext, got.Options["num_ctx"])
	assert.EqualValues(t, ai.Temperature, got.Options["temperature"])
}

func TestCompletePrimaryContext(t *testing.T) {
	var got api.GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeGenerate(w, "ok")
	}))
	defer srv.Close()

	c := newClient(t, Config{APIURL: srv.URL}, zap.NewNop())

	_, err := c.Complete(context.Background(), ai.Attempt{Prompt: "p"})
	require.NoError(t, err)
	assert.EqualValues(t, primaryContext, got.Options["num_ctx"])
	assert.Equal(t, DefaultModel, got.Model)
}

func TestParseCandidateData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGenerate(w, "Here you go: {\"full_name\": \"Jane Doe\", \"skills\": \"Python, AWS\"}")
	}))
	defer srv.Close()

	c := newClient(t, Config{APIURL: srv.URL}, zap.NewNop())
	fields := c.ParseCandidateData(context.Background(), "Jane Doe\nPython AWS", keywords.Set{Required: []string{"Python"}})

	require.False(t, fields.Failed(), fields.Error)
	assert.Equal(t, "Jane Doe", fields.FullName)
	assert.Equal(t, []string{"python", "aws"}, fields.Skills)
	assert.Equal(t, Name, fields.Provider)
	assert.Equal(t, Name, c.Provider())
	assert.Equal(t, DefaultModel, c.Model())
}

func TestParseCandidateDataHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	c := newClient(t, Config{APIURL: srv.URL}, zap.NewNop())
	fields := c.ParseCandidateData(context.Background(), "text", keywords.Set{Required: []string{"Go"}})

	require.True(t, fields.Failed())
	assert.Contains(t, fields.Error, "ollama HTTP error 500")
	assert.Equal(t, "model not loaded", fields.RawResponse)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{APIURL: "http://[::1"}, zap.NewNop(), 0)
	assert.Error(t, err)
}

func TestAvailability(t *testing.T) {
	t.Run("model listed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/version":
				_, _ = w.Write([]byte(`{"version":"0.12.6"}`))
			case "/api/tags":
				_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","model":"llama3:latest"}]}`))
			}
		}))
		defer srv.Close()

		core, logs := observer.New(zapcore.WarnLevel)
		c := newClient(t, Config{APIURL: srv.URL}, zap.New(core))

		require.NoError(t, c.Probe(context.Background()))
		assert.Zero(t, logs.Len())
	})

	t.Run("model missing warns", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/version":
				_, _ = w.Write([]byte(`{"version":"0.12.6"}`))
			case "/api/tags":
				_, _ = w.Write([]byte(`{"models":[{"name":"mistral:7b"}]}`))
			}
		}))
		defer srv.Close()

		core, logs := observer.New(zapcore.WarnLevel)
		c := newClient(t, Config{APIURL: srv.URL}, zap.New(core))

		require.NoError(t, c.Probe(context.Background()))
		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Contains(t, entry.Message, "not available")
		assert.Equal(t, "0.12.6", entry.ContextMap()["server_version"])
	})

	t.Run("version error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"starting"}`))
		}))
		defer srv.Close()

		c := newClient(t, Config{APIURL: srv.URL}, zap.NewNop())
		err := c.Probe(context.Background())

		var serr *ai.StatusError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, http.StatusServiceUnavailable, serr.StatusCode)
		assert.Equal(t, "starting", serr.Body)
	})

	t.Run("server down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		c := newClient(t, Config{APIURL: srv.URL}, zap.NewNop())
		assert.Error(t, c.Probe(context.Background()))
	})
}
