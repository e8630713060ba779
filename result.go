package imagestudio

import "time"

// GenerationResult is the normalized outcome of a generate or edit call.
//
// A nil Image with non-empty Text means the model answered with prose instead of pixels;
// that is not an error, and callers decide how to present it.
type GenerationResult struct {
	// Image is the produced image, or nil.
	Image *ImageRef

	// Text is advisory text returned by the provider.
	Text string

	// Degraded reports that an edit was serviced by re-generation without the source image.
	Degraded bool

	// Provider and Model identify which backend produced the result.
	Provider string
	Model    string

	// ProviderMeta carries provider-specific details (request ids, task ids, usage).
	ProviderMeta map[string]any
}

// HasImage reports whether the result carries an image.
func (r *GenerationResult) HasImage() bool {
	return r != nil && !r.Image.IsZero()
}

// TaskHandle identifies a job submitted to an asynchronous provider.
// It is owned by the poller for the duration of one polling session.
type TaskHandle struct {
	TaskID      string
	SubmittedAt time.Time

	Provider string
	Model    string
}

// TaskState is the coarse state of an asynchronous task.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskSucceeded
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskStatus is a tagged variant: Pending, Succeeded(Image) or Failed(Reason).
type TaskStatus struct {
	State TaskState

	// Image is the first output image for TaskSucceeded. It may be nil for an empty success.
	Image *ImageRef

	// Reason is the provider's stated failure reason for TaskFailed.
	Reason string

	// RawStatus is the provider's status string as received.
	RawStatus string
}

// Pending returns a non-terminal status.
func Pending(raw string) *TaskStatus {
	return &TaskStatus{State: TaskPending, RawStatus: raw}
}

// Succeeded returns a terminal success status. img may be nil.
func Succeeded(img *ImageRef) *TaskStatus {
	return &TaskStatus{State: TaskSucceeded, Image: img}
}

// Failed returns a terminal failure status.
func Failed(reason string) *TaskStatus {
	return &TaskStatus{State: TaskFailed, Reason: reason}
}

// IsTerminal reports whether no further transition can occur.
func (s *TaskStatus) IsTerminal() bool {
	return s != nil && (s.State == TaskSucceeded || s.State == TaskFailed)
}
