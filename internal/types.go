// internal/types.go - Common types for internal packages
package internal

import (
	"errors"
	"time"
)

// Stage names used to prefix fatal diagnostics
const (
	StageManifest = "manifest"
	StageFetch    = "fetch"
	StageAssemble = "assemble"
	StageExtract  = "extract"
	StageUpload   = "upload"
)

// RunStats represents counters for a single pipeline stage
type RunStats struct {
	TotalTiles     int64
	ProcessedTiles int64
	FailedTiles    int64
	StartTime      time.Time
	EndTime        time.Time
	Throughput     float64
}

// Finish stamps the end time and computes throughput
func (s *RunStats) Finish() {
	s.EndTime = time.Now()
	if elapsed := s.EndTime.Sub(s.StartTime).Seconds(); elapsed > 0 {
		s.Throughput = float64(s.ProcessedTiles) / elapsed
	}
}

// Error represents application-specific errors
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new application error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err, or any error it wraps, is an *Error with the given code
func IsCode(err error, code string) bool {
	var appErr *Error
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// ErrorCode constants for common error types
const (
	ErrorCodeDomain     = "DOMAIN_ERROR"
	ErrorCodeTemplate   = "TEMPLATE_ERROR"
	ErrorCodeTransport  = "TRANSPORT_ERROR"
	ErrorCodeTimeout    = "TIMEOUT_ERROR"
	ErrorCodeStorage    = "STORAGE_ERROR"
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeConfig     = "CONFIG_ERROR"
	ErrorCodeNotFound   = "NOT_FOUND"
	ErrorCodeFileSystem = "FILESYSTEM_ERROR"
)
