package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transient network errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeFetch represents a fetch that exhausted its retries
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeAuthentication represents vendor authentication failures
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeLocation represents store/location resolution failures
	ErrorTypeLocation ErrorType = "location"
	// ErrorTypeParsing represents vendor payload parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUnsupportedStore represents a chain name no scraper handles
	ErrorTypeUnsupportedStore ErrorType = "unsupported_store"
	// ErrorTypeUnknownStore represents a store id with no configuration
	ErrorTypeUnknownStore ErrorType = "unknown_store"
	// ErrorTypeScrape represents a store-scoped scrape failure
	ErrorTypeScrape ErrorType = "scrape"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
)

// Sentinels for errors.Is checks. Matching is done on the error type only.
var (
	ErrAuthentication   = &ScraperError{Type: ErrorTypeAuthentication}
	ErrLocation         = &ScraperError{Type: ErrorTypeLocation}
	ErrFetch            = &ScraperError{Type: ErrorTypeFetch}
	ErrUnsupportedStore = &ScraperError{Type: ErrorTypeUnsupportedStore}
	ErrUnknownStore     = &ScraperError{Type: ErrorTypeUnknownStore}
)

// ScraperError represents a scraper-specific error
type ScraperError struct {
	Type    ErrorType
	Store   string
	Message string
	URL     string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScraperError) Error() string {
	store := e.Store
	if store == "" {
		store = "-"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, store, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, store, e.Message)
}

// Unwrap returns the underlying error
func (e *ScraperError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ScraperError of the same type.
func (e *ScraperError) Is(target error) bool {
	t, ok := target.(*ScraperError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// IsRetryable returns true if the error is retryable
func (e *ScraperError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// TypeOf returns the type of the outermost ScraperError in err's chain,
// or an empty type when there is none.
func TypeOf(err error) ErrorType {
	var se *ScraperError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// New creates a new ScraperError
func New(errType ErrorType, store, message string, err error) *ScraperError {
	return &ScraperError{
		Type:    errType,
		Store:   store,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(store, url string, err error) *ScraperError {
	e := New(ErrorTypeNetwork, store, "request failed", err)
	e.URL = url
	return e
}

// NewFetch creates an error for a URL that could not be fetched after all attempts
func NewFetch(store, url string, attempts int, err error) *ScraperError {
	e := New(ErrorTypeFetch, store, fmt.Sprintf("failed to fetch %s after %d attempts", url, attempts), err)
	e.URL = url
	return e
}

// NewAuthentication creates a new authentication error
func NewAuthentication(store string, err error) *ScraperError {
	return New(ErrorTypeAuthentication, store, "authentication failed", err)
}

// NewLocation creates a new location resolution error
func NewLocation(store, message string, err error) *ScraperError {
	return New(ErrorTypeLocation, store, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(store, message string, err error) *ScraperError {
	return New(ErrorTypeParsing, store, message, err)
}

// NewValidation creates a new validation error
func NewValidation(store, message string) *ScraperError {
	return New(ErrorTypeValidation, store, message, nil)
}

// NewUnsupportedStore creates an error for a chain name that has no scraper
func NewUnsupportedStore(name string) *ScraperError {
	return New(ErrorTypeUnsupportedStore, name, fmt.Sprintf("unsupported store: %s", name), nil)
}

// NewUnknownStore creates an error for a store id with no configuration
func NewUnknownStore(id int) *ScraperError {
	return New(ErrorTypeUnknownStore, "", fmt.Sprintf("no configuration found for store ID %d", id), nil)
}

// NewScrape creates a store-scoped scrape failure
func NewScrape(store string, err error) *ScraperError {
	return New(ErrorTypeScrape, store, fmt.Sprintf("failed to scrape deals for store %s", store), err)
}

// NewCache creates a new cache error
func NewCache(store, message string, err error) *ScraperError {
	return New(ErrorTypeCache, store, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(store, message string, err error) *ScraperError {
	return New(ErrorTypePublisher, store, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScraperError {
	return New(ErrorTypeConfiguration, "", message, err)
}
