package analysis

import "errors"

// Error kinds surfaced by the analyzer. Callers match with errors.Is and
// decide the user-facing fallback; the analyzer never hides them.
var (
	// ErrInsufficientData means the series is too short for the requested
	// periods. Recoverable by fetching a longer series.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidConfig means a non-positive period or window was supplied.
	// Not retryable without fixing the configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoValidAnchors means no swing high/low pair with the temporal
	// ordering required by the trend direction exists. Recoverable by
	// reporting "no trade setup".
	ErrNoValidAnchors = errors.New("no valid fibonacci anchors")
)
