package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. When users report
// an error they can quote the code; support looks it up here.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the request exceeded UPLOAD_MAX_FILE_SIZE
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Unreadable file: the file could not be parsed
//	          Patterns: "could not decode file"
//
//	FILE004 - No file: a required file field was missing
//	          Patterns: "no file provided"
//
//	FILE006 - Unsupported type: not csv, xls or xlsx
//	          Patterns: "unsupported file type"
//
// # Extraction Errors (EXT001-EXT099)
//
//	EXT001 - Unknown profile: the profile name is not registered
//	         Patterns: "unknown profile"
//
//	EXT002 - Invalid profile: a profile definition failed validation
//	         Patterns: "invalid extract profile"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - System busy: every run slot is taken
//	         Patterns: "too many concurrent uploads"
//
//	RUN002 - Request cancelled
//	         Patterns: "context canceled"
//
//	RUN003 - Request timeout
//	         Patterns: "context deadline exceeded", "timeout"
//
// # History Errors (DB001-DB099)
//
//	DB001 - History disabled: no DATABASE_URL configured
//	        Patterns: "history disabled"
//
//	DB004 - Connection refused
//	        Patterns: "connection refused"
//
//	DB005 - Connection reset
//	        Patterns: "connection reset"
//
// # Access (AUTH001, RATE001)
//
//	AUTH001 - Missing or invalid API key
//	          Patterns: "invalid api key"
//
//	RATE001 - Too many requests from one client
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the original error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload a .csv, .xls or .xlsx file",
			Code:    "FILE006",
		},
	},
	{
		pattern: "could not decode file",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Check that the file opens in a spreadsheet program and re-export it",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a file to upload",
			Code:    "FILE004",
		},
	},

	// Extraction errors
	{
		pattern: "unknown profile",
		msg: UserMessage{
			Message: "The selected extraction profile does not exist",
			Action:  "Pick one of the listed profiles",
			Code:    "EXT001",
		},
	},
	{
		pattern: "invalid extract profile",
		msg: UserMessage{
			Message: "An extraction profile is misconfigured",
			Action:  "Fix the profile definition and restart",
			Code:    "EXT002",
		},
	},

	// Run errors
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "Too many files are being processed",
			Action:  "Please wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "RUN003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "RUN003",
		},
	},

	// History errors
	{
		pattern: "history disabled",
		msg: UserMessage{
			Message: "Run history is not enabled",
			Action:  "Configure DATABASE_URL to record run history",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	// Access
	{
		pattern: "invalid api key",
		msg: UserMessage{
			Message: "Missing or invalid API key",
			Action:  "Send a valid key in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the zero UserMessage for a nil error and ERR000 when nothing matches.
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

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
