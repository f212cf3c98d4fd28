package oachat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casualjim/oachat/api"
	"github.com/casualjim/oachat/pkg/jsonx"
	"github.com/fogfish/opts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testAPIKey = "sk-test-0123456789"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient starts a server for handler and returns a client pointed at it.
func newTestClient(t *testing.T, handler http.Handler, options ...opts.Option[Config]) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	all := append([]opts.Option[Config]{
		BaseURL(srv.URL),
		APIKey(testAPIKey),
		User("tester"),
		Logger(discardLogger()),
	}, options...)
	client, err := New(all...)
	require.NoError(t, err)
	return client, srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

const summaryBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-3.5-turbo-0125",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi"}, "finish_reason": "length"}],
	"usage": {"prompt_tokens": 8, "completion_tokens": 2, "total_tokens": 10}
}`

func TestVerify(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		doc := gjson.ParseBytes(body)
		assert.Equal(t, DefaultVerifyModel, doc.Get("model").String())
		assert.Equal(t, int64(2), doc.Get("max_tokens").Int())
		assert.Equal(t, "user", doc.Get("messages.0.role").String())
		assert.Equal(t, "hi", doc.Get("messages.0.content").String())
		assert.Equal(t, int64(1), doc.Get("messages.#").Int())
		assert.False(t, doc.Get("stream").Bool())
		assert.False(t, doc.Get("user").Exists())

		writeJSON(w, http.StatusOK, summaryBody)
	}))

	for range 2 {
		summary, err := client.Verify(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "gpt-3.5-turbo-0125", summary.Model)
		assert.Equal(t, "Hi", summary.Content())
		require.NotNil(t, summary.Usage)
		assert.Equal(t, 10, summary.Usage.TotalTokens)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestVerifyWithoutAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, summaryBody)
	}))
	t.Cleanup(srv.Close)

	client, err := New(BaseURL(srv.URL), Logger(discardLogger()))
	require.NoError(t, err)
	_, err = client.Verify(context.Background())
	require.NoError(t, err)
}

func TestBaseURLWithPath(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		writeJSON(w, http.StatusOK, `{"data":[]}`)
	}))
	t.Cleanup(srv.Close)

	for _, base := range []string{srv.URL + "/proxy", srv.URL + "/proxy/"} {
		client, err := New(BaseURL(base), Logger(discardLogger()))
		require.NoError(t, err)
		_, err = client.ListModels(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "/proxy/v1/models", path.Load())
	}
}

func TestListModels(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "envelope",
			body: `{"object":"list","data":[{"id":"gpt-4o","object":"model","created":1,"owned_by":"openai"},{"id":"gpt-3.5-turbo","object":"model","owned_by":"openai"}]}`,
			want: []string{"gpt-4o", "gpt-3.5-turbo"},
		},
		{
			name: "bare list",
			body: `[{"id":"b"},{"id":"a"},{"id":"c"}]`,
			want: []string{"b", "a", "c"},
		},
		{
			name: "empty envelope",
			body: `{"data":[]}`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/models", r.URL.Path)
				writeJSON(w, http.StatusOK, tt.body)
			}))

			models, err := client.ListModels(context.Background())
			require.NoError(t, err)
			ids := make([]string, 0, len(models))
			for _, m := range models {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	t.Run("owner is decoded", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"data":[{"id":"m","owned_by":"me","created":42}]}`)
		}))
		models, err := client.ListModels(context.Background())
		require.NoError(t, err)
		require.Len(t, models, 1)
		assert.Equal(t, api.Model{ID: "m", OwnedBy: "me", Created: 42}, models[0])
	})
}

func TestBufferedErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		ctype   string
		body    string
		check   func(t *testing.T, err error)
		message string
	}{
		{
			name:   "structured service error",
			status: http.StatusUnauthorized,
			ctype:  "application/json",
			body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			check: func(t *testing.T, err error) {
				var serr *ServiceError
				require.ErrorAs(t, err, &serr)
				assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
				assert.Equal(t, "invalid_request_error", serr.Type)
			},
			message: "Incorrect API key provided (invalid_api_key)",
		},
		{
			name:   "flat service error",
			status: http.StatusBadRequest,
			ctype:  "application/json",
			body:   `{"message":"model not found"}`,
			check: func(t *testing.T, err error) {
				var serr *ServiceError
				require.ErrorAs(t, err, &serr)
			},
			message: "model not found",
		},
		{
			name:   "plain http error",
			status: http.StatusInternalServerError,
			ctype:  "text/plain",
			body:   "upstream exploded",
			check: func(t *testing.T, err error) {
				var herr *HTTPError
				require.ErrorAs(t, err, &herr)
				assert.Equal(t, "upstream exploded", string(herr.Body))
			},
			message: "HTTP 500: internal server error.",
		},
		{
			name:   "unexpected content type",
			status: http.StatusOK,
			ctype:  "text/html",
			body:   "<html></html>",
			check: func(t *testing.T, err error) {
				var cerr *UnexpectedContentTypeError
				require.ErrorAs(t, err, &cerr)
			},
			message: "HTTP invalid content type: text/html.",
		},
		{
			name:   "empty body",
			status: http.StatusOK,
			ctype:  "application/json",
			body:   "",
			check: func(t *testing.T, err error) {
				var eerr *EmptyResponseError
				require.ErrorAs(t, err, &eerr)
			},
			message: "Empty response.",
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			ctype:  "application/json",
			body:   `{"data":[`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, jsonx.ErrInvalidJSON)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.ctype)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := client.ListModels(context.Background())
			require.Error(t, err)
			tt.check(t, err)
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}
}

func TestAcceptContentTypes(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.custom+json")
		_, _ = io.WriteString(w, `{"data":[{"id":"x"}]}`)
	}), AcceptContentTypes("application/vnd.custom+json"))

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 1)
}

func TestRequestTimeout(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}), RequestTimeout(50*time.Millisecond))

	_, err := client.ListModels(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsCancelled(err))
}

func TestBufferedCancel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := client.ListModels(ctx)
	require.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, err := New(BaseURL(base), Logger(discardLogger()))
	require.NoError(t, err)
	_, err = client.ListModels(context.Background())
	require.Error(t, err)
	assert.False(t, IsCancelled(err))
	assert.Contains(t, err.Error(), "GET v1/models")
}

func TestComplete(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		doc := gjson.ParseBytes(body)
		assert.Equal(t, "gpt-4o-mini", doc.Get("model").String())
		assert.False(t, doc.Get("stream").Bool())
		assert.Equal(t, "tester", doc.Get("user").String())
		assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles(doc))
		writeJSON(w, http.StatusOK, summaryBody)
	}))

	history := ContextFunc(func(context.Context) ([]api.ChatMessage, error) {
		return []api.ChatMessage{api.UserMessage("a"), api.AssistantMessage("b")}, nil
	})
	summary, err := client.Complete(context.Background(), CompletionParams{
		Model:    "gpt-4o-mini",
		System:   "be brief",
		Messages: []api.ChatMessage{api.UserMessage("c")},
		Stream:   true,
	}, history)
	require.NoError(t, err)
	assert.Equal(t, "Hi", summary.Content())

	t.Run("history error", func(t *testing.T) {
		boom := errors.New("store offline")
		_, err := client.Complete(context.Background(), CompletionParams{Model: "m"}, ContextFunc(func(context.Context) ([]api.ChatMessage, error) {
			return nil, boom
		}))
		require.ErrorIs(t, err, boom)
	})
}

func TestClientConfigIsCopied(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())
	cfg := client.Config()
	cfg.AcceptedContentTypes[0] = "text/html"
	assert.Equal(t, DefaultContentTypes[0], client.Config().AcceptedContentTypes[0])
}

func roles(doc gjson.Result) []string {
	var result []string
	for _, m := range doc.Get("messages").Array() {
		result = append(result, m.Get("role").String())
	}
	return result
}
