package imagestudio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// HistoryType records whether a history entry came from a generation or an edit.
type HistoryType string

const (
	HistoryGeneration HistoryType = "generation"
	HistoryEdit       HistoryType = "edit"
)

var (
	// ErrNoImage is returned when a HistoryItem is requested for a result without an image.
	ErrNoImage = errors.New("result has no image")

	// ErrHistoryNotFound is returned by recorders when an item does not exist.
	ErrHistoryNotFound = errors.New("history item not found")

	// ErrHistoryExists is returned by recorders when an item ID is already taken, by
	// any user. Items are never overwritten.
	ErrHistoryExists = errors.New("history item already exists")
)

// HistoryItem is one persisted generation. It is created once per successful call and
// never modified afterwards.
//
// On the wire Timestamp is epoch milliseconds; zero time encodes as 0.
type HistoryItem struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	Prompt        string      `json:"prompt"`
	ResultImage   string      `json:"resultImage"`
	OriginalImage string      `json:"originalImage,omitempty"`
	Type          HistoryType `json:"type"`
	Degraded      bool        `json:"degraded,omitempty"`
}

// NewHistoryItem builds the history entry for a successful result. The prompt recorded
// is the caller's prompt, not any degraded rewrite of it.
func NewHistoryItem(userID string, req *GenerationRequest, result *GenerationResult) (*HistoryItem, error) {
	if !result.HasImage() {
		return nil, ErrNoImage
	}

	item := &HistoryItem{
		ID:          uuid.NewString(),
		UserID:      userID,
		Timestamp:   time.Now().UTC().Truncate(time.Millisecond),
		Prompt:      req.Prompt,
		ResultImage: result.Image.String(),
		Type:        HistoryGeneration,
		Degraded:    result.Degraded,
	}
	if req.Mode == ModeEdit {
		item.Type = HistoryEdit
		item.OriginalImage = req.SourceImage.String()
	}
	return item, nil
}

// historyItemJSON has HistoryItem's fields without its methods.
type historyItemJSON HistoryItem

func (h HistoryItem) MarshalJSON() ([]byte, error) {
	var ms int64
	if !h.Timestamp.IsZero() {
		ms = h.Timestamp.UnixMilli()
	}
	return json.Marshal(struct {
		historyItemJSON
		Timestamp int64 `json:"timestamp"`
	}{historyItemJSON(h), ms})
}

// UnmarshalJSON accepts epoch milliseconds, and RFC 3339 strings written by older
// versions.
func (h *HistoryItem) UnmarshalJSON(data []byte) error {
	aux := struct {
		*historyItemJSON
		Timestamp json.RawMessage `json:"timestamp"`
	}{historyItemJSON: (*historyItemJSON)(h)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	h.Timestamp = ts
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		return t.UTC(), nil
	}

	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be epoch milliseconds: %w", err)
	}
	if ms == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}
