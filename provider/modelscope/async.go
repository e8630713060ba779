package modelscope

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mhpenta/imagestudio"
)

// AsyncAdapter submits jobs in async mode and reports task status for polling.
type AsyncAdapter struct {
	client
}

var _ imagestudio.AsyncAdapter = (*AsyncAdapter)(nil)

// NewAsync creates an asynchronous adapter.
func NewAsync(cfg Config) *AsyncAdapter {
	return &AsyncAdapter{client{cfg: cfg.withDefaults()}}
}

// Name returns the configured provider name.
func (a *AsyncAdapter) Name() string { return a.cfg.Name }

// Capabilities reports native edit support when an edit model is configured.
func (a *AsyncAdapter) Capabilities() imagestudio.Capabilities {
	return imagestudio.Capabilities{
		Edit:  a.cfg.Models.HasEdit(),
		Async: true,
		Sizes: SupportedSizes,
	}
}

// Close releases idle connections.
func (a *AsyncAdapter) Close() error {
	a.cfg.HTTPClient.CloseIdleConnections()
	return nil
}

// Submit enqueues the request. The model is selected from the mode table, so edit and
// generate use different identifiers.
func (a *AsyncAdapter) Submit(ctx context.Context, req *imagestudio.GenerationRequest) (*imagestudio.TaskHandle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prepared, _ := imagestudio.PrepareRequest(req, a.Capabilities())
	model, _ := a.cfg.Models.ModelFor(prepared.Mode)

	headers := map[string]string{a.cfg.Wire.AsyncHeader: a.cfg.Wire.AsyncHeaderValue}
	data, err := a.do(ctx, http.MethodPost, a.cfg.Wire.SubmitPath, a.buildBody(model, prepared), headers)
	if err != nil {
		return nil, err
	}

	doc, err := a.parseJSON(data)
	if err != nil {
		return nil, err
	}

	taskID := lookup(doc, a.cfg.Wire.TaskIDPath)
	if taskID == "" {
		return nil, &imagestudio.ProviderError{
			Provider: a.cfg.Name,
			Body:     string(data),
			Err:      imagestudio.ErrMissingTaskID,
		}
	}

	return &imagestudio.TaskHandle{
		TaskID:      taskID,
		SubmittedAt: time.Now(),
		Provider:    a.cfg.Name,
		Model:       model,
	}, nil
}

// TaskStatus queries the task endpoint once.
func (a *AsyncAdapter) TaskStatus(ctx context.Context, handle *imagestudio.TaskHandle) (*imagestudio.TaskStatus, error) {
	path := fmt.Sprintf(a.cfg.Wire.TaskPath, url.PathEscape(handle.TaskID))
	headers := map[string]string{a.cfg.Wire.TaskTypeHeader: a.cfg.Wire.TaskTypeValue}

	data, err := a.do(ctx, http.MethodGet, path, nil, headers)
	if err != nil {
		return nil, err
	}

	doc, err := a.parseJSON(data)
	if err != nil {
		return nil, err
	}

	raw := lookup(doc, a.cfg.Wire.TaskStatusPath)
	switch {
	case containsFold(a.cfg.Wire.SucceededStates, raw):
		outputs := doc.Get(a.cfg.Wire.OutputImagesPath).Array()
		if len(outputs) == 0 {
			status := imagestudio.Succeeded(nil)
			status.RawStatus = raw
			return status, nil
		}
		img, err := imagestudio.CanonicalImageRef(outputs[0].String())
		if err != nil {
			return nil, &imagestudio.ProviderError{Provider: a.cfg.Name, Body: string(data), Err: err}
		}
		status := imagestudio.Succeeded(img)
		status.RawStatus = raw
		return status, nil

	case containsFold(a.cfg.Wire.FailedStates, raw):
		reason := raw
		for _, p := range a.cfg.Wire.ReasonPaths {
			if r := lookup(doc, p); r != "" {
				reason = r
				break
			}
		}
		status := imagestudio.Failed(reason)
		status.RawStatus = raw
		return status, nil

	default:
		return imagestudio.Pending(raw), nil
	}
}
