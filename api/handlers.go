package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mhpenta/imagestudio"
)

// Kinds used only at the HTTP layer.
const (
	kindUnauthorized imagestudio.ErrorKind = "unauthorized"
	kindNotFound     imagestudio.ErrorKind = "not_found"
	kindConflict     imagestudio.ErrorKind = "conflict"
)

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	// Image is a data URI, bare base64 or URL. Present means edit.
	Image    string `json:"image,omitempty"`
	Size     string `json:"size,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// GenerateResponse is returned on success. Image is empty when the provider answered
// with text only.
type GenerateResponse struct {
	Image     string `json:"image,omitempty"`
	Text      string `json:"text,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	HistoryID string `json:"historyId,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequest
	if !s.decode(w, r, &body) {
		return
	}

	var source *imagestudio.ImageRef
	if strings.TrimSpace(body.Image) != "" {
		ref, err := imagestudio.ParseImageRef(body.Image)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		source = ref
	}

	var opts []imagestudio.CallOption
	if body.Provider != "" {
		opts = append(opts, imagestudio.UseProvider(body.Provider))
	}

	size := imagestudio.ImageSize(body.Size)
	result, err := s.generator.GenerateOrEdit(r.Context(), body.Prompt, source, size, opts...)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	resp := GenerateResponse{
		Image:    result.Image.String(),
		Text:     result.Text,
		Degraded: result.Degraded,
		Provider: result.Provider,
		Model:    result.Model,
	}

	// History is best-effort: the image was produced, so a storage failure is logged
	// and the result is still returned.
	if userID := r.Header.Get(UserIDHeader); userID != "" && s.history != nil && result.HasImage() {
		req := imagestudio.NewGenerationRequest(body.Prompt, source, size)
		item, err := imagestudio.NewHistoryItem(userID, req, result)
		if err == nil {
			err = s.history.Save(r.Context(), item)
		}
		if err != nil {
			s.logger.Warn("failed to save history", "user_id", userID, "error", err.Error())
		} else {
			resp.HistoryID = item.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	items, err := s.history.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if items == nil {
		items = []*imagestudio.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var item imagestudio.HistoryItem
	if !s.decode(w, r, &item) {
		return
	}
	if item.ResultImage == "" {
		s.writeFailure(w, r, &imagestudio.ValidationError{Field: "resultImage", Err: imagestudio.ErrNoImage})
		return
	}
	if item.Type == "" {
		item.Type = imagestudio.HistoryGeneration
		if item.OriginalImage != "" {
			item.Type = imagestudio.HistoryEdit
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = s.now().UTC().Truncate(time.Millisecond)
	}
	item.UserID = userFrom(r.Context())

	if err := s.history.Save(r.Context(), &item); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.DeleteAll(r.Context(), userFrom(r.Context())); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.DeleteOne(r.Context(), userFrom(r.Context()), r.PathValue("id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decode reads a JSON body, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, imagestudio.ErrorInfo{
			Kind:    imagestudio.KindValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, info := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"kind", string(info.Kind),
			"error", err.Error(),
		)
	}
	var rlErr *imagestudio.RateLimitError
	if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", retryAfterSeconds(rlErr))
	}
	writeError(w, status, info)
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) (int, imagestudio.ErrorInfo) {
	if errors.Is(err, imagestudio.ErrHistoryNotFound) {
		return http.StatusNotFound, imagestudio.ErrorInfo{Kind: kindNotFound, Message: err.Error()}
	}
	if errors.Is(err, imagestudio.ErrHistoryExists) {
		return http.StatusConflict, imagestudio.ErrorInfo{Kind: kindConflict, Message: err.Error()}
	}
	if errors.Is(err, imagestudio.ErrProviderNotRegistered) {
		return http.StatusBadRequest, imagestudio.ErrorInfo{Kind: imagestudio.KindValidation, Message: err.Error()}
	}

	info := imagestudio.Describe(err)
	switch info.Kind {
	case imagestudio.KindValidation:
		return http.StatusBadRequest, info
	case imagestudio.KindRateLimit:
		return http.StatusTooManyRequests, info
	case imagestudio.KindTimeout:
		return http.StatusGatewayTimeout, info
	case imagestudio.KindProvider, imagestudio.KindGeneration:
		return http.StatusBadGateway, info
	case imagestudio.KindCanceled:
		return 499, info
	default:
		return http.StatusInternalServerError, info
	}
}
