// Error codes reference
//
// Errors surfaced to professors carry a short code they can quote to support.
// Codes are grouped by category:
//
//	IMP001-IMP099  import run errors (no valid rows, preconditions, limits)
//	PRS001-PRS099  file parsing errors
//	VAL001-VAL099  input validation errors
//	DB001-DB099    database constraint and connectivity errors
//	AUTH001-AUTH002 API key errors
//	RATE001        request throttling
//	ERR000         fallback when nothing matches
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones. When a user
// reports ERR000, the technical error is in the application log.
package core

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
	// Import run
	{
		pattern: "no valid rows",
		msg: UserMessage{
			Message: "No row in the file could be imported",
			Action:  "Download the error report, fix the listed rows and import again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "no courses registered",
		msg: UserMessage{
			Message: "There are no courses registered yet",
			Action:  "Import or create your courses before importing students or subjects",
			Code:    "IMP002",
		},
	},
	{
		pattern: "no subjects registered",
		msg: UserMessage{
			Message: "There are no subjects registered yet",
			Action:  "Import or create your subjects before importing grades",
			Code:    "IMP003",
		},
	},
	{
		pattern: "unrecognized batch",
		msg: UserMessage{
			Message: "The file columns did not match courses, students, grades or subjects",
			Action:  "Choose the record kind manually or rename the columns",
			Code:    "IMP004",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "The system is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP005",
		},
	},
	{
		pattern: "staged batch not found",
		msg: UserMessage{
			Message: "The uploaded file is no longer available",
			Action:  "The preview may have expired. Upload the file again",
			Code:    "IMP006",
		},
	},
	{
		pattern: "import run not found",
		msg: UserMessage{
			Message: "Import run not found",
			Action:  "The result may have expired. Check the import history",
			Code:    "IMP007",
		},
	},

	// Parsing
	{
		pattern: "legacy .xls",
		msg: UserMessage{
			Message: "Legacy .xls workbooks cannot be read",
			Action:  "Save the file as .xlsx or .csv and upload it again",
			Code:    "PRS002",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv, .xlsx or .xls file",
			Code:    "PRS003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "PRS004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a spreadsheet to upload",
			Code:    "PRS005",
		},
	},
	{
		pattern: "parse error",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Make sure it has a header row and at least one data row",
			Code:    "PRS001",
		},
	},

	// Validation
	{
		pattern: "missing required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Fill in every required field",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid owner",
		msg: UserMessage{
			Message: "The request did not identify a valid professor",
			Action:  "Sign in again",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid record kind",
		msg: UserMessage{
			Message: "Unknown record kind",
			Action:  "Use courses, students, grades or subjects",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid input",
		msg: UserMessage{
			Message: "Some fields have invalid values",
			Action:  "Review the form and try again",
			Code:    "VAL004",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "Record not found",
			Action:  "It may have been deleted. Refresh the page",
			Code:    "VAL005",
		},
	},

	// Database
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this code or ID already exists",
			Action:  "Download the error report to review duplicates",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate codes or student IDs",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Import courses, subjects and students before grades",
			Code:    "DB003",
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
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Access
	{
		pattern: "missing api key",
		msg: UserMessage{
			Message: "The request carried no API key",
			Action:  "Send the key issued for this dashboard in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "invalid api key",
		msg: UserMessage{
			Message: "The API key was not accepted",
			Action:  "Check the key with your administrator",
			Code:    "AUTH002",
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

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000.
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
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
