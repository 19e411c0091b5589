// Package publish implements the 'publish' runner. It uploads a
// generated artifact, such as the coverage report or a simulation
// report, to a pre-signed URL so CI runs can archive results in object
// storage without carrying storage credentials.
package publish

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
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
		client: resty.New().SetTimeout(2 * time.Minute),
	}
}

// Close releases the module's HTTP client resources.
func (m *Module) Close() error {
	return m.client.Close()
}

// Input defines the arguments for the publish runner.
type Input struct {
	// SourcePath is the artifact file to upload.
	SourcePath string `hcl:"source_path"`

	// UploadURL is a pre-signed URL accepting a PUT of the artifact.
	UploadURL string `hcl:"upload_url"`

	// ContentType overrides the type guessed from the file extension.
	ContentType string `hcl:"content_type,optional"`
}

// Run uploads the artifact and fails the step on any non-2xx response.
func (m *Module) Run(ctx context.Context, input *Input) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	data, err := os.ReadFile(input.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %q: %w", input.SourcePath, err)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(input.SourcePath))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	logger.Info("Uploading artifact.",
		"source_path", input.SourcePath, "bytes", len(data), "content_type", contentType)

	res, err := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put(input.UploadURL)
	if err != nil {
		return nil, fmt.Errorf("uploading %q: %w", input.SourcePath, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("upload of %q returned %s", input.SourcePath, res.Status())
	}

	logger.Info("Artifact uploaded.", "source_path", input.SourcePath)
	return map[string]any{
		"bytes":        len(data),
		"content_type": contentType,
		"status_code":  res.StatusCode(),
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("publish", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Run: func(ctx context.Context, input any) (map[string]any, error) {
			return m.Run(ctx, input.(*Input))
		},
	})
}
