package imagestudio

import "context"

// Adapter translates GenerationRequests into calls against one provider.
// Implementations are either SyncAdapter or AsyncAdapter.
type Adapter interface {
	// Name identifies the provider, e.g. "modelscope" or "gemini".
	Name() string

	// Capabilities describes what the adapter can do natively.
	Capabilities() Capabilities

	// Close releases any resources held by the adapter.
	Close() error
}

// SyncAdapter answers a request in a single round trip.
type SyncAdapter interface {
	Adapter

	// Generate performs the request and returns a normalized result.
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
}

// StatusQuerier reports the current status of a submitted task.
type StatusQuerier interface {
	TaskStatus(ctx context.Context, handle *TaskHandle) (*TaskStatus, error)
}

// AsyncAdapter submits a request to a task queue and is polled for the outcome.
type AsyncAdapter interface {
	Adapter
	StatusQuerier

	// Submit enqueues the request and returns a handle for polling.
	Submit(ctx context.Context, req *GenerationRequest) (*TaskHandle, error)
}

// HistoryRecorder persists completed generations per user. The orchestrator never calls
// it; callers construct a HistoryItem from a successful result and save it themselves.
type HistoryRecorder interface {
	Save(ctx context.Context, item *HistoryItem) error

	// List returns the user's items, newest first.
	List(ctx context.Context, userID string) ([]*HistoryItem, error)

	DeleteOne(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) error
}
