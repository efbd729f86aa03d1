// Package ai runs mask generation and generative fill on Replicate models.
package ai

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Operation names used for pending tracking and time estimates
const (
	OpGenerateMask      = "generate_mask"
	OpGenerativeReplace = "generative_replace"
	OpQuickErase        = "quick_erase"
)

// Error codes
const (
	CodeInvalidParameters = "invalid_parameters"
	CodePredictionFailed  = "prediction_failed"
	CodeCanceled          = "canceled"
	CodeTimeout           = "timeout"
	CodeNoOutput          = "no_output"
	CodeDownloadFailed    = "download_failed"
)

// Error represents an AI service error
type Error struct {
	Code    string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e Error) Unwrap() error {
	return e.Err
}

// Options configures a Service.
type Options struct {
	MaskTimeout  time.Duration // Default: 60s
	PatchTimeout time.Duration // Default: 120s
	HTTPClient   *http.Client  // Used to download prediction outputs
	Logger       *slog.Logger
}

func (o *Options) setDefaults() {
	if o.MaskTimeout <= 0 {
		o.MaskTimeout = 60 * time.Second
	}
	if o.PatchTimeout <= 0 {
		o.PatchTimeout = 120 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}
