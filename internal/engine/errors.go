package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// MinerError is an error detected while mining.
type MinerError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Relation names the affected head relation, if any.
	Relation string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes miner errors.
type ErrorCode string

const (
	// ErrCodeUnknownRelation indicates a head relation missing from the KB.
	ErrCodeUnknownRelation ErrorCode = "UNKNOWN_RELATION"

	// ErrCodeQuotaExceeded indicates the run produced more rules than allowed.
	ErrCodeQuotaExceeded ErrorCode = "RULE_QUOTA_EXCEEDED"

	// ErrCodeInvalidConfig indicates a Config that failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrCodeCancelled indicates the context was cancelled mid-search.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *MinerError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("%s: %s (relation=%s)", e.Code, e.Message, e.Relation)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *MinerError) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var me *MinerError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsUnknownRelation reports whether err is an unknown relation error.
func IsUnknownRelation(err error) bool { return hasCode(err, ErrCodeUnknownRelation) }

// IsQuotaError reports whether err is a rule quota error.
func IsQuotaError(err error) bool { return hasCode(err, ErrCodeQuotaExceeded) }

// IsInvalidConfig reports whether err is a configuration error.
func IsInvalidConfig(err error) bool { return hasCode(err, ErrCodeInvalidConfig) }

// IsCancelled reports whether err is a cancellation error.
func IsCancelled(err error) bool { return hasCode(err, ErrCodeCancelled) }

// NewUnknownRelationError creates a MinerError for a missing relation.
func NewUnknownRelationError(relation string) *MinerError {
	return &MinerError{
		Code:     ErrCodeUnknownRelation,
		Message:  "relation not in knowledge base",
		Relation: relation,
	}
}

// NewQuotaError creates a MinerError for an exceeded rule quota.
func NewQuotaError(relation string, rules, limit int) *MinerError {
	return &MinerError{
		Code:     ErrCodeQuotaExceeded,
		Message:  fmt.Sprintf("run exceeded max rules (%d > %d)", rules, limit),
		Relation: relation,
		Details: map[string]string{
			"rules":     strconv.Itoa(rules),
			"max_rules": strconv.Itoa(limit),
		},
	}
}

// NewInvalidConfigError creates a MinerError for a bad configuration field.
func NewInvalidConfigError(field, message string) *MinerError {
	return &MinerError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("%s: %s", field, message),
		Details: map[string]string{"field": field},
	}
}

// NewCancelledError creates a MinerError wrapping a context error.
func NewCancelledError(relation string, err error) *MinerError {
	return &MinerError{
		Code:     ErrCodeCancelled,
		Message:  "mining cancelled",
		Relation: relation,
		Err:      err,
	}
}
