package newsletter

import (
	"errors"
	"fmt"
)

var (
	ErrTokenNotFound       = errors.New("subscription token not found")
	ErrTokenExpired        = errors.New("subscription token expired")
	ErrArticleNotFound     = errors.New("article not found")
	ErrArticleNotPublished = errors.New("article is not published")
	ErrProvider            = errors.New("mailing list provider error")
	// ErrEmailDelivery is retryable: the pending record was stored.
	ErrEmailDelivery = errors.New("confirmation email could not be sent")
)

// ValidationError rejects input before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func providerErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
}
