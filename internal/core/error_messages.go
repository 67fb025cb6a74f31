package core

// error_messages.go maps technical errors to user-facing messages with a
// code support staff can look up.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large. Action: split the file.
//	FILE002 - Malformed row: a line does not have exactly three fields.
//	          Action: every line must be data;origin;name.
//	FILE003 - Not a text file.
//	FILE004 - No file provided.
//	FILE005 - Line too long.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Too many imports in progress.
//	IMP002 - Import cancelled.
//	IMP003 - Import timed out.
//	IMP004 - Import run not found (expired or never existed).
//	IMP005 - Import run has no result to save.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Contact storage is not configured.
//	DB002 - Unable to connect to database.
//	DB003 - Database was busy (deadlock).
//
// # Request Errors (REQ001)
//
//	REQ001 - Request body could not be read.
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests.
//
// # Default (ERR000)
//
// Known sentinel errors are matched with errors.Is first; after that the
// lowercased error text is matched against patterns with strings.Contains.
// The first match wins.

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/contacts/internal/importer"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller files and import them one by one",
		Code:    "FILE001",
	}
	msgMalformedRow = UserMessage{
		Message: "A line in the file does not have exactly three fields",
		Action:  "Every line must look like data;origin;name (the last two may be empty)",
		Code:    "FILE002",
	}
	msgNotText = UserMessage{
		Message: "The file is not a text file",
		Action:  "Export the contact list as a semicolon-separated text or CSV file",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was provided",
		Action:  "Select a contact file to import",
		Code:    "FILE004",
	}
	msgLineTooLong = UserMessage{
		Message: "A line in the file is too long",
		Action:  "Check that the file uses line breaks between contacts",
		Code:    "FILE005",
	}
	msgTooManyImports = UserMessage{
		Message: "Too many imports in progress",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}
	msgCancelled = UserMessage{
		Message: "The import was cancelled",
		Action:  "Start a new import when ready",
		Code:    "IMP002",
	}
	msgTimeout = UserMessage{
		Message: "The import timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "IMP003",
	}
	msgRunNotFound = UserMessage{
		Message: "Import not found",
		Action:  "The import may have expired. Please import the file again",
		Code:    "IMP004",
	}
	msgRunFailed = UserMessage{
		Message: "This import failed and has no contacts to save",
		Action:  "Fix the file and import it again",
		Code:    "IMP005",
	}
	msgStoreDisabled = UserMessage{
		Message: "Contact storage is not configured",
		Action:  "Ask an administrator to configure the database",
		Code:    "DB001",
	}
	msgDBConnection = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB002",
	}
	msgDBDeadlock = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB003",
	}
	msgInvalidInput = UserMessage{
		Message: "The request could not be read",
		Action:  "Check the request format and try again",
		Code:    "REQ001",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}

	defaultMessage = UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
	}
)

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrFileTooLarge, msgFileTooLarge},
	{csv.ErrFieldCount, msgMalformedRow},
	{importer.ErrNotText, msgNotText},
	{importer.ErrUnsupportedInput, msgNotText},
	{ErrNoFile, msgNoFile},
	{bufio.ErrTooLong, msgLineTooLong},
	{ErrTooManyUploads, msgTooManyImports},
	{ErrRunNotFound, msgRunNotFound},
	{ErrRunFailed, msgRunFailed},
	{ErrStoreDisabled, msgStoreDisabled},
	{ErrInvalidInput, msgInvalidInput},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
}

// errorPatterns maps lowercase substrings of error text to messages, for
// errors that arrive without a sentinel (driver and transport errors).
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"request body too large", msgFileTooLarge},
	{"connection refused", msgDBConnection},
	{"connection reset", msgDBConnection},
	{"deadlock", msgDBDeadlock},
	{"rate limit", msgRateLimited},
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
