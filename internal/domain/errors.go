package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyRunning    = "ALREADY_RUNNING"
	ErrCodeNoSources         = "NO_SOURCES_SELECTED"
	ErrCodeExtractionFailure = "EXTRACTION_FAILURE"
	ErrCodeRootFetchFailure  = "ROOT_FETCH_FAILURE"
	ErrCodeUpstreamFailure   = "UPSTREAM_FAILURE"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidURL           = NewDomainError(ErrCodeValidation, "invalid url")
	ErrInvalidCrawlStatus   = NewDomainError(ErrCodeValidation, "invalid crawl status")
	ErrInvalidMessageRole   = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question cannot be empty")
)

// Not found errors
var (
	ErrJobNotFound     = NewDomainError(ErrCodeNotFound, "no crawl job found for url")
	ErrSourceNotFound  = NewDomainError(ErrCodeNotFound, "source not found")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "chat session not found")
	ErrTermNotFound    = NewDomainError(ErrCodeNotFound, "glossary term not found")
)

// Crawl errors
var (
	ErrCrawlAlreadyRunning = NewDomainError(ErrCodeAlreadyRunning, "a crawl for this source is already running")
	ErrRootFetchFailure    = NewDomainError(ErrCodeRootFetchFailure, "root page could not be fetched")
)

// Retrieval errors
var (
	ErrNoSourcesSelected = NewDomainError(ErrCodeNoSources, "no sources selected")
	ErrUpstreamFailure   = NewDomainError(ErrCodeUpstreamFailure, "upstream service unavailable")
)
