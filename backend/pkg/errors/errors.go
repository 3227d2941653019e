package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeDiscord represents Discord-related errors
	ErrorTypeDiscord ErrorType = "discord"
	// ErrorTypeChat represents chat-completion errors
	ErrorTypeChat ErrorType = "chat"
	// ErrorTypeFetch represents upstream HTTP errors (xrel, srrDB, polled URLs)
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeStore represents settings store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeRCON represents Minecraft RCON errors
	ErrorTypeRCON ErrorType = "rcon"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeInvalidArgument represents caller errors such as a non-positive chunk limit
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Argument Errors

// ErrInvalidArgument is returned when a caller passes a value outside the accepted domain
type ErrInvalidArgument struct {
	*BaseError
	Argument string
	Value    interface{}
}

func NewInvalidArgument(argument string, value interface{}, reason string) *ErrInvalidArgument {
	return &ErrInvalidArgument{
		BaseError: NewBaseError(ErrorTypeInvalidArgument, fmt.Sprintf("invalid %s %v: %s", argument, value, reason), nil),
		Argument:  argument,
		Value:     value,
	}
}

// Discord Errors

// ErrDiscordChannelNotFound is returned when a Discord channel cannot be found
type ErrDiscordChannelNotFound struct {
	*BaseError
	ChannelID string
}

func NewDiscordChannelNotFound(channelID string, err error) *ErrDiscordChannelNotFound {
	return &ErrDiscordChannelNotFound{
		BaseError: NewBaseError(ErrorTypeDiscord, fmt.Sprintf("channel not found: %s", channelID), err),
		ChannelID: channelID,
	}
}

// ErrDiscordMessageSendFailed is returned when sending a Discord message fails
type ErrDiscordMessageSendFailed struct {
	*BaseError
	ChannelID string
	Chunk     int
}

func NewDiscordMessageSendFailed(channelID string, chunk int, err error) *ErrDiscordMessageSendFailed {
	return &ErrDiscordMessageSendFailed{
		BaseError: NewBaseError(ErrorTypeDiscord, fmt.Sprintf("failed to send message chunk %d", chunk), err),
		ChannelID: channelID,
		Chunk:     chunk,
	}
}

// Chat Errors

// ErrChatCompletionFailed is returned when the completion request fails
type ErrChatCompletionFailed struct {
	*BaseError
	Model     string
	Attempts  int
	Retryable bool
}

func NewChatCompletionFailed(model string, attempts int, retryable bool, err error) *ErrChatCompletionFailed {
	return &ErrChatCompletionFailed{
		BaseError: NewBaseError(ErrorTypeChat, fmt.Sprintf("completion failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
		Retryable: retryable,
	}
}

// ErrChatNoResponse is returned when the completion API returns no choices
var ErrChatNoResponse = NewBaseError(ErrorTypeChat, "no response from completion API", nil)

// ErrChatNotConfigured is returned when no API key is available
var ErrChatNotConfigured = NewBaseError(ErrorTypeChat, "completion API key not set", nil)

// Fetch Errors

// ErrFetchStatus is returned when an upstream answers with an unexpected status
type ErrFetchStatus struct {
	*BaseError
	URL        string
	StatusCode int
	Body       string
}

func NewFetchStatus(url string, statusCode int, body string) *ErrFetchStatus {
	return &ErrFetchStatus{
		BaseError:  NewBaseError(ErrorTypeFetch, fmt.Sprintf("unexpected status %d from %s", statusCode, url), nil),
		URL:        url,
		StatusCode: statusCode,
		Body:       body,
	}
}

// ErrFetchFailed is returned when the request itself fails
type ErrFetchFailed struct {
	*BaseError
	URL string
}

func NewFetchFailed(url string, err error) *ErrFetchFailed {
	return &ErrFetchFailed{
		BaseError: NewBaseError(ErrorTypeFetch, fmt.Sprintf("request failed: %s", url), err),
		URL:       url,
	}
}

// ErrNotFound is returned when an upstream has no record for a lookup
type ErrNotFound struct {
	*BaseError
	What string
}

func NewNotFound(what string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeFetch, fmt.Sprintf("not found: %s", what), nil),
		What:      what,
	}
}

// Store Errors

// ErrStoreQueryFailed is returned when a settings query fails
type ErrStoreQueryFailed struct {
	*BaseError
	Scope string
	Key   string
}

func NewStoreQueryFailed(scope, key string, err error) *ErrStoreQueryFailed {
	return &ErrStoreQueryFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("settings query failed: %s/%s", scope, key), err),
		Scope:     scope,
		Key:       key,
	}
}

// RCON Errors

// ErrRCONCommandFailed is returned when an RCON command cannot be executed
type ErrRCONCommandFailed struct {
	*BaseError
	Command string
}

func NewRCONCommandFailed(command string, err error) *ErrRCONCommandFailed {
	return &ErrRCONCommandFailed{
		BaseError: NewBaseError(ErrorTypeRCON, fmt.Sprintf("rcon command failed: %s", command), err),
		Command:   command,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type baseErrorer interface {
	base() *BaseError
}

func (e *BaseError) base() *BaseError { return e }

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if b, ok := err.(baseErrorer); ok && b.base().Type == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var chatErr *ErrChatCompletionFailed
	if errors.As(err, &chatErr) {
		return chatErr.Retryable
	}
	var statusErr *ErrFetchStatus
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == 429
	}
	var notFound *ErrNotFound
	if errors.As(err, &notFound) {
		return false
	}
	// Transport failures and store hiccups are worth another try
	return IsErrorType(err, ErrorTypeFetch) || IsErrorType(err, ErrorTypeStore)
}
