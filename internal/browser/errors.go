package browser

import "fmt"

// LaunchError reports that the browser process could not be started. It is
// an environment problem (missing binary, bad flags) and is never worth
// retrying within a call.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError reports that a page load did not reach its ready state
// within the navigation timeout. Navigation failures are transient.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }
