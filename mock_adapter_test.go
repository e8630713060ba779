package imagestudio

import (
	"context"
	"sync"
	"time"
)

// MockSyncAdapter is a mock implementation of SyncAdapter.
type MockSyncAdapter struct {
	NameValue    string
	Caps         Capabilities
	GenerateFunc func(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
	CloseFunc    func() error

	mu    sync.Mutex
	calls []*GenerationRequest
}

func (m *MockSyncAdapter) Name() string {
	if m.NameValue == "" {
		return "mock-sync"
	}
	return m.NameValue
}

func (m *MockSyncAdapter) Capabilities() Capabilities { return m.Caps }

func (m *MockSyncAdapter) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &GenerationResult{Image: &ImageRef{Data: []byte("fake-image")}}, nil
}

func (m *MockSyncAdapter) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns the requests received so far.
func (m *MockSyncAdapter) Calls() []*GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*GenerationRequest(nil), m.calls...)
}

// MockAsyncAdapter is a mock implementation of AsyncAdapter. Statuses are served in
// order; the last one repeats once the script runs out.
type MockAsyncAdapter struct {
	NameValue  string
	Caps       Capabilities
	SubmitFunc func(ctx context.Context, req *GenerationRequest) (*TaskHandle, error)
	Script     []ScriptedStatus

	mu       sync.Mutex
	submits  []*GenerationRequest
	statuses int
}

// ScriptedStatus is one canned TaskStatus response.
type ScriptedStatus struct {
	Status *TaskStatus
	Err    error
}

func (m *MockAsyncAdapter) Name() string {
	if m.NameValue == "" {
		return "mock-async"
	}
	return m.NameValue
}

func (m *MockAsyncAdapter) Capabilities() Capabilities {
	caps := m.Caps
	caps.Async = true
	return caps
}

func (m *MockAsyncAdapter) Close() error { return nil }

func (m *MockAsyncAdapter) Submit(ctx context.Context, req *GenerationRequest) (*TaskHandle, error) {
	m.mu.Lock()
	m.submits = append(m.submits, req)
	m.mu.Unlock()

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}
	return &TaskHandle{TaskID: "task-1", Model: "mock-model"}, nil
}

func (m *MockAsyncAdapter) TaskStatus(ctx context.Context, handle *TaskHandle) (*TaskStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.statuses
	m.statuses++
	if len(m.Script) == 0 {
		return Pending("RUNNING"), nil
	}
	if i >= len(m.Script) {
		i = len(m.Script) - 1
	}
	return m.Script[i].Status, m.Script[i].Err
}

// StatusQueries returns how many times TaskStatus was called.
func (m *MockAsyncAdapter) StatusQueries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses
}

// Submits returns the submitted requests.
func (m *MockAsyncAdapter) Submits() []*GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*GenerationRequest(nil), m.submits...)
}

// pendingScript returns n pending statuses followed by last.
func pendingScript(n int, last ScriptedStatus) []ScriptedStatus {
	script := make([]ScriptedStatus, 0, n+1)
	for i := 0; i < n; i++ {
		script = append(script, ScriptedStatus{Status: Pending("RUNNING")})
	}
	return append(script, last)
}

// countingSleeper records waits without sleeping.
type countingSleeper struct {
	mu    sync.Mutex
	waits int
}

func (s *countingSleeper) sleep(ctx context.Context, _ time.Duration) error {
	s.mu.Lock()
	s.waits++
	s.mu.Unlock()
	return ctx.Err()
}

func (s *countingSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waits
}
