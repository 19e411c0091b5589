// Package notify implements the 'notify' runner. It posts a JSON status
// payload to a webhook, typically as the last step of a target so chat
// integrations and CI dashboards see the pipeline outcome.
package notify

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/doc-E-brown/statsbox/internal/ctxlog"
	"github.com/doc-E-brown/statsbox/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	client *resty.Client
}

// New creates the module with its own HTTP client.
func New() *Module {
	return &Module{
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Close releases the module's HTTP client resources.
func (m *Module) Close() error {
	return m.client.Close()
}

// Input defines the arguments for the notify runner.
type Input struct {
	// URL is the webhook endpoint.
	URL string `hcl:"url"`

	// Status is the reported pipeline status, e.g. "passed".
	Status string `hcl:"status"`

	// Target names the pipeline target the status refers to.
	Target string `hcl:"target,optional"`

	// Message is free-form detail included in the payload.
	Message string `hcl:"message,optional"`

	// Headers are added to the request, e.g. an Authorization token.
	Headers map[string]string `hcl:"headers,optional"`
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Pipeline string    `json:"pipeline"`
	Target   string    `json:"target,omitempty"`
	Status   string    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// Run posts the status payload and fails the step on any non-2xx
// response.
func (m *Module) Run(ctx context.Context, input *Input) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	if input.URL == "" {
		return nil, fmt.Errorf("notify url is empty")
	}

	payload := Payload{
		Pipeline: "statsbox",
		Target:   input.Target,
		Status:   input.Status,
		Message:  input.Message,
		Time:     time.Now().UTC(),
	}

	res, err := m.client.R().
		SetContext(ctx).
		SetHeaders(input.Headers).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(input.URL)
	if err != nil {
		return nil, fmt.Errorf("posting notification: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("webhook %s returned %s", input.URL, res.Status())
	}

	logger.Info("Notification delivered.", "url", input.URL, "status", input.Status)
	return map[string]any{
		"status_code": res.StatusCode(),
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("notify", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Run: func(ctx context.Context, input any) (map[string]any, error) {
			return m.Run(ctx, input.(*Input))
		},
	})
}
