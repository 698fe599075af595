package llm

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors the pipeline branches on. Every component that calls the
// facade must treat these as a signal to fall back to deterministic behavior.
var (
	ErrTimeout     = errors.New("llm: deadline exceeded")
	ErrParse       = errors.New("llm: response parse failed")
	ErrUnavailable = errors.New("llm: provider unavailable")
)

// wrapProviderErr maps transport failures onto the pipeline's error taxonomy.
func wrapProviderErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func parseErr(cause error) error {
	return fmt.Errorf("%w: %v", ErrParse, cause)
}
