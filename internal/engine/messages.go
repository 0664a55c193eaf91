package engine

import (
	"errors"
	"fmt"

	"numa/internal/workflow"
	numasdk "numa/sdk/go"
)

// UserMessage renders err as the single message shown to the user: the
// backend's detail when it sent one, the raw transport error otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rej *workflow.Rejection
	if errors.As(err, &rej) {
		return rej.Error()
	}
	var apiErr *numasdk.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fmt.Sprintf("backend returned status %d", apiErr.StatusCode)
	}
	var netErr *numasdk.NetworkError
	if errors.As(err, &netErr) {
		return "backend unreachable: " + netErr.Err.Error()
	}
	if errors.Is(err, ErrScopeClosed) {
		return ErrScopeClosed.Error()
	}
	return err.Error()
}
