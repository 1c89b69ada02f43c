package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is; RuntimeError unwraps to these.
var (
	// ErrTargetNotReady means discovery timed out before any column
	// container was rendered. The engine stays idle and does not retry.
	ErrTargetNotReady = errors.New("board containers not rendered")

	// ErrNoContainers means Observe was called with an empty container set.
	ErrNoContainers = errors.New("no containers to observe")

	// ErrNotBoardView means the current page is not a board view.
	ErrNotBoardView = errors.New("page is not a board view")
)

// RuntimeError represents an error detected while starting observation.
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// URL is the page the engine was attached to.
	URL string

	// Details contains additional context.
	Details map[string]string

	err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeTargetNotReady indicates discovery timed out.
	ErrCodeTargetNotReady RuntimeErrorCode = "TARGET_NOT_READY"

	// ErrCodeNotBoardView indicates the page is not a board.
	ErrCodeNotBoardView RuntimeErrorCode = "NOT_BOARD_VIEW"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s (url=%s)", e.Code, e.Message, e.URL)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the sentinel error for the code.
func (e *RuntimeError) Unwrap() error {
	return e.err
}

// IsTargetNotReady returns true if the error is a discovery timeout.
// Uses errors.Is to handle wrapped errors.
func IsTargetNotReady(err error) bool {
	return errors.Is(err, ErrTargetNotReady)
}

// NewTargetNotReadyError creates a RuntimeError for a discovery timeout.
func NewTargetNotReadyError(url string, attempts int, timeout string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTargetNotReady,
		Message: "no column containers found before discovery timeout",
		URL:     url,
		Details: map[string]string{
			"attempts": fmt.Sprintf("%d", attempts),
			"timeout":  timeout,
		},
		err: ErrTargetNotReady,
	}
}

// NewNotBoardViewError creates a RuntimeError for a non-board page.
func NewNotBoardViewError(url string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNotBoardView,
		Message: "observation only runs on board views",
		URL:     url,
		err:     ErrNotBoardView,
	}
}
