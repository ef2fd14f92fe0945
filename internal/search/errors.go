package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/serpent/internal/browser"
)

// BlockError reports that Google served a block or challenge page instead
// of results. It is terminal for the call: retrying a block almost never
// succeeds and only burns query budget, so the orchestrator surfaces it
// immediately.
type BlockError struct {
	Source string
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("google blocked the request (%s)", e.Source)
}

// Error type names used in the gateway's wire contract.
const (
	TypeBlock        = "GoogleBlockError"
	TypeLaunch       = "BrowserLaunchError"
	TypeNavigation   = "NavigationError"
	TypeTimeout      = "SearchTimeout"
	TypeUnclassified = "SearchError"
)

// ErrorType classifies an error from Search into the wire taxonomy.
func ErrorType(err error) string {
	var be *BlockError
	if errors.As(err, &be) {
		return TypeBlock
	}
	var le *browser.LaunchError
	if errors.As(err, &le) {
		return TypeLaunch
	}
	var ne *browser.NavigationError
	if errors.As(err, &ne) {
		return TypeNavigation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TypeTimeout
	}
	return TypeUnclassified
}
