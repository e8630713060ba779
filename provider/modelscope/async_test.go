package modelscope

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mhpenta/imagestudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAsync(t *testing.T, mux *http.ServeMux) *AsyncAdapter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := DefaultAsyncConfig("test-key")
	cfg.BaseURL = srv.URL
	return NewAsync(cfg)
}

func TestAsyncAdapter_Submit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.Header.Get("X-ModelScope-Async-Mode"))
		body := decodeBody(t, r)
		assert.Equal(t, ModelQwenImageEdit, body["model"])
		assert.Equal(t, "https://example.com/src.png", body["image_url"])
		_, _ = w.Write([]byte(`{"task_id":"task-42","request_id":"r"}`))
	})
	adapter := newTestAsync(t, mux)
	assert.True(t, adapter.Capabilities().Edit)
	assert.True(t, adapter.Capabilities().Async)

	src := &imagestudio.ImageRef{URL: "https://example.com/src.png"}
	handle, err := adapter.Submit(context.Background(), imagestudio.NewGenerationRequest("add a hat", src, ""))
	require.NoError(t, err)
	assert.Equal(t, "task-42", handle.TaskID)
	assert.Equal(t, ModelQwenImageEdit, handle.Model)
	assert.WithinDuration(t, time.Now(), handle.SubmittedAt, time.Minute)
}

func TestAsyncAdapter_SubmitGenerateModel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, ModelZImageTurbo, body["model"])
		_, _ = w.Write([]byte(`{"task_id":"task-1"}`))
	})
	adapter := newTestAsync(t, mux)

	handle, err := adapter.Submit(context.Background(), imagestudio.NewGenerationRequest("a red cube", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, ModelZImageTurbo, handle.Model)
}

func TestAsyncAdapter_SubmitMissingTaskID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"request_id":"r"}`))
	})
	adapter := newTestAsync(t, mux)

	_, err := adapter.Submit(context.Background(), imagestudio.NewGenerationRequest("cube", nil, ""))
	var pErr *imagestudio.ProviderError
	require.True(t, errors.As(err, &pErr))
	assert.ErrorIs(t, err, imagestudio.ErrMissingTaskID)
}

func TestAsyncAdapter_TaskStatus(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantState imagestudio.TaskState
		wantImage string
		wantRsn   string
	}{
		{
			name:      "pending",
			body:      `{"task_status":"PENDING"}`,
			wantState: imagestudio.TaskPending,
		},
		{
			name:      "running",
			body:      `{"task_status":"RUNNING"}`,
			wantState: imagestudio.TaskPending,
		},
		{
			name:      "succeeded with image",
			body:      `{"task_status":"SUCCEED","output_images":["https://cdn.example.com/a.png","https://cdn.example.com/b.png"]}`,
			wantState: imagestudio.TaskSucceeded,
			wantImage: "https://cdn.example.com/a.png",
		},
		{
			name:      "succeeded without image",
			body:      `{"task_status":"SUCCEEDED","output_images":[]}`,
			wantState: imagestudio.TaskSucceeded,
		},
		{
			name:      "failed with reason",
			body:      `{"task_status":"FAILED","errors":{"message":"content policy"}}`,
			wantState: imagestudio.TaskFailed,
			wantRsn:   "content policy",
		},
		{
			name:      "failed without reason",
			body:      `{"task_status":"FAILED"}`,
			wantState: imagestudio.TaskFailed,
			wantRsn:   "FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "task-9", r.PathValue("id"))
				assert.Equal(t, "image_generation", r.Header.Get("X-ModelScope-Task-Type"))
				_, _ = w.Write([]byte(tt.body))
			})
			adapter := newTestAsync(t, mux)

			status, err := adapter.TaskStatus(context.Background(), &imagestudio.TaskHandle{TaskID: "task-9"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, status.State)
			assert.Equal(t, tt.wantRsn, status.Reason)
			if tt.wantImage == "" {
				assert.Nil(t, status.Image)
			} else {
				require.NotNil(t, status.Image)
				assert.Equal(t, tt.wantImage, status.Image.String())
			}
		})
	}
}

func TestAsyncAdapter_EndToEndWithPoller(t *testing.T) {
	var queries atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_id":"t-1"}`))
	})
	mux.HandleFunc("GET /v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := queries.Add(1)
		switch {
		case n == 1:
			w.WriteHeader(http.StatusBadGateway)
		case n < 3:
			_, _ = w.Write([]byte(`{"task_status":"RUNNING"}`))
		default:
			_, _ = w.Write([]byte(`{"task_status":"SUCCEED","output_images":["https://cdn.example.com/hat.png"]}`))
		}
	})
	adapter := newTestAsync(t, mux)

	orch := imagestudio.NewOrchestrator(adapter,
		imagestudio.WithPoller(imagestudio.NewTaskPoller(imagestudio.WithPollInterval(time.Millisecond))),
	)
	src := &imagestudio.ImageRef{URL: "https://example.com/src.png"}
	result, err := orch.GenerateOrEdit(context.Background(), "add a hat", src, "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/hat.png", result.Image.String())
	assert.Equal(t, int32(3), queries.Load())
}

func TestAsyncAdapter_UnreadableOutputStopsPolling(t *testing.T) {
	var queries atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"task_id":"t-1"}`))
	})
	mux.HandleFunc("GET /v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		queries.Add(1)
		_, _ = w.Write([]byte(`{"task_status":"SUCCEED","output_images":["oss://bucket/out.png"]}`))
	})
	adapter := newTestAsync(t, mux)

	orch := imagestudio.NewOrchestrator(adapter,
		imagestudio.WithPoller(imagestudio.NewTaskPoller(imagestudio.WithPollInterval(time.Millisecond))),
	)
	_, err := orch.GenerateOrEdit(context.Background(), "a lighthouse", nil, "")
	require.Error(t, err)
	assert.Equal(t, imagestudio.KindProvider, imagestudio.KindOf(err))
	assert.False(t, imagestudio.IsTimeoutError(err))
	assert.ErrorIs(t, err, imagestudio.ErrInvalidImageRef)
	assert.Equal(t, int32(1), queries.Load())
}
