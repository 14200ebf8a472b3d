package gemini

import (
	"context"
	"fmt"
	"strings"
)

const (
	BackendREST = "rest"
	BackendSDK  = "sdk"
)

// NewBackend builds the client selected by name ("rest" or "sdk").
func NewBackend(ctx context.Context, name string, opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendREST:
		return New(opts), nil
	case BackendSDK:
		return NewSDK(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown gemini backend %q", name)
	}
}
