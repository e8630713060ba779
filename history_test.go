package imagestudio

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewHistoryItem(t *testing.T) {
	source := &ImageRef{Data: []byte("src")}
	result := &GenerationResult{Image: &ImageRef{URL: "https://cdn.example.com/out.png"}, Degraded: true}

	item, err := NewHistoryItem("u1", NewGenerationRequest("add a hat", source, ""), result)
	if err != nil {
		t.Fatal(err)
	}
	if item.ID == "" || item.Timestamp.IsZero() {
		t.Error("ID and Timestamp should be set")
	}
	if item.Type != HistoryEdit || item.OriginalImage != source.String() {
		t.Errorf("item = %+v", item)
	}
	if item.Prompt != "add a hat" || !item.Degraded {
		t.Errorf("item = %+v", item)
	}

	gen, err := NewHistoryItem("u1", NewGenerationRequest("cube", nil, ""), result)
	if err != nil {
		t.Fatal(err)
	}
	if gen.Type != HistoryGeneration || gen.OriginalImage != "" || gen.ID == item.ID {
		t.Errorf("gen = %+v", gen)
	}
}

func TestNewHistoryItem_NoImage(t *testing.T) {
	_, err := NewHistoryItem("u1", NewGenerationRequest("cube", nil, ""), &GenerationResult{Text: "no"})
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("error = %v, want ErrNoImage", err)
	}
}

func TestHistoryItem_JSON(t *testing.T) {
	item := HistoryItem{ID: "1", Prompt: "p", ResultImage: "r", Type: HistoryGeneration}
	data, err := json.Marshal(item)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "timestamp", "prompt", "resultImage", "type"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing JSON field %q", key)
		}
	}
	if _, ok := fields["originalImage"]; ok {
		t.Error("originalImage should be omitted for generations")
	}
}

func TestHistoryItem_TimestampEpochMillis(t *testing.T) {
	ts := time.Date(2025, 10, 9, 8, 53, 20, 0, time.UTC)
	item := HistoryItem{ID: "1", Timestamp: ts, ResultImage: "r", Type: HistoryEdit}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if got, ok := fields["timestamp"].(float64); !ok || int64(got) != 1760000000000 {
		t.Errorf("timestamp = %v, want 1760000000000", fields["timestamp"])
	}

	tests := []struct {
		name string
		body string
		want time.Time
	}{
		{"epoch millis", `{"id":"h1","timestamp":1760000000000}`, ts},
		{"zero", `{"id":"h1","timestamp":0}`, time.Time{}},
		{"absent", `{"id":"h1"}`, time.Time{}},
		{"null", `{"id":"h1","timestamp":null}`, time.Time{}},
		{"rfc3339", `{"id":"h1","timestamp":"2025-10-09T08:53:20Z"}`, ts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got HistoryItem
			if err := json.Unmarshal([]byte(tt.body), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.ID != "h1" || !got.Timestamp.Equal(tt.want) {
				t.Errorf("got id=%q timestamp=%v, want %v", got.ID, got.Timestamp, tt.want)
			}
		})
	}

	var bad HistoryItem
	if err := json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &bad); err == nil {
		t.Error("expected an error for an unparseable timestamp")
	}
}
