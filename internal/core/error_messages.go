package core

// error_messages.go maps technical errors to user-facing messages with codes
// that users can quote to support.
//
// # Configuration Errors (CFG001)
//
//	CFG001 - Export settings are invalid
//	         Patterns: "invalid export configuration"
//
// # Export Errors (EXP001-EXP005)
//
//	EXP001 - Export was cancelled                 Patterns: "export cancelled"
//	EXP002 - Too many exports running             Patterns: "too many concurrent exports"
//	EXP003 - Export job not found                 Patterns: "export not found"
//	EXP004 - Export has not finished successfully Patterns: "export not complete"
//	EXP005 - Export job already started           Patterns: "already run"
//
// # Output File Errors (IO001-IO003)
//
//	IO001 - Disk is full                 Patterns: "no space left", "disk full"
//	IO002 - Output location not writable Patterns: "permission denied", "read-only file system"
//	IO003 - Output file failed           Patterns: "export open", "export write", "export flush", "export close"
//
// # Source Errors (SRC001-SRC003)
//
//	SRC001 - Source CSV is empty           Patterns: "csv has no header"
//	SRC002 - Source database unreachable   Patterns: "connection refused", "connection reset"
//	SRC003 - Source could not be read      Patterns: "query rows", "read csv", "open csv"
//
// # Table Errors (TBL001-TBL002), Requests (REQ001-REQ003), Rate Limiting (RATE001)
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones. ERR000 is the
// fallback; check the logs for the technical error.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Configuration
	{
		pattern: "invalid export configuration",
		msg: UserMessage{
			Message: "Export settings are invalid",
			Action:  "Check the chunk size, output directory and partial file settings",
			Code:    "CFG001",
		},
	},

	// Export lifecycle
	{
		pattern: "export cancelled",
		msg: UserMessage{
			Message: "Export was cancelled",
			Action:  "Start a new export when ready",
			Code:    "EXP001",
		},
	},
	{
		pattern: "too many concurrent exports",
		msg: UserMessage{
			Message: "System is busy running other exports",
			Action:  "Please wait a moment and try again",
			Code:    "EXP002",
		},
	},
	{
		pattern: "export not found",
		msg: UserMessage{
			Message: "Export job not found",
			Action:  "The export may have expired. Check the export history",
			Code:    "EXP003",
		},
	},
	{
		pattern: "export not complete",
		msg: UserMessage{
			Message: "Export has not finished successfully",
			Action:  "Wait for the export to complete before downloading",
			Code:    "EXP004",
		},
	},
	{
		pattern: "already run",
		msg: UserMessage{
			Message: "Export job was already started",
			Action:  "Start a new export",
			Code:    "EXP005",
		},
	},

	// Output file. Specific causes come before the generic op patterns.
	{
		pattern: "no space left",
		msg: UserMessage{
			Message: "Disk is full",
			Action:  "Free up space in the export directory and try again",
			Code:    "IO001",
		},
	},
	{
		pattern: "disk full",
		msg: UserMessage{
			Message: "Disk is full",
			Action:  "Free up space in the export directory and try again",
			Code:    "IO001",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Export location is not writable",
			Action:  "Check permissions on the export directory",
			Code:    "IO002",
		},
	},
	{
		pattern: "read-only file system",
		msg: UserMessage{
			Message: "Export location is not writable",
			Action:  "Check permissions on the export directory",
			Code:    "IO002",
		},
	},
	{
		pattern: "export open",
		msg: UserMessage{
			Message: "Export file could not be created",
			Action:  "Check the export directory setting",
			Code:    "IO003",
		},
	},
	{
		pattern: "export write",
		msg: UserMessage{
			Message: "Writing the export file failed",
			Action:  "Please try again",
			Code:    "IO003",
		},
	},
	{
		pattern: "export flush",
		msg: UserMessage{
			Message: "Writing the export file failed",
			Action:  "Please try again",
			Code:    "IO003",
		},
	},
	{
		pattern: "export close",
		msg: UserMessage{
			Message: "Writing the export file failed",
			Action:  "Please try again",
			Code:    "IO003",
		},
	},

	// Sources
	{
		pattern: "csv has no header",
		msg: UserMessage{
			Message: "The source CSV file is empty",
			Action:  "Add a header row to the source file",
			Code:    "SRC001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the source database",
			Action:  "Please try again in a few moments",
			Code:    "SRC002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Source database connection was interrupted",
			Action:  "Please try again",
			Code:    "SRC002",
		},
	},
	{
		pattern: "query rows",
		msg: UserMessage{
			Message: "The source table could not be read",
			Action:  "Verify the table exists and is readable",
			Code:    "SRC003",
		},
	},
	{
		pattern: "read csv",
		msg: UserMessage{
			Message: "The source CSV file could not be parsed",
			Action:  "Ensure the file is comma-separated UTF-8",
			Code:    "SRC003",
		},
	},
	{
		pattern: "open csv",
		msg: UserMessage{
			Message: "The source CSV file could not be opened",
			Action:  "Check that the file still exists",
			Code:    "SRC003",
		},
	},

	// Tables
	{
		pattern: "table not found",
		msg: UserMessage{
			Message: "Table not found",
			Action:  "Verify the table name is correct",
			Code:    "TBL001",
		},
	},
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Unknown table",
			Action:  "This table is not configured for export",
			Code:    "TBL002",
		},
	},

	// Requests
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "invalid export request",
		msg: UserMessage{
			Message: "Export request is malformed or over the limits",
			Action:  "Send only label, chunk_size and workers; keep chunk_size positive and workers within the server maximum",
			Code:    "REQ003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Export timed out",
			Action:  "Raise EXPORT_TIMEOUT or export a smaller table",
			Code:    "REQ002",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 if nothing matches.
//
// Example:
//
//	msg := MapError(ErrTooManyExports)
//	// msg.Code == "EXP002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
