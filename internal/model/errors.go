package model

import "errors"

// Error taxonomy surfaced to the user as notices. None of these is fatal.
var (
	ErrMissingCredential   = errors.New("api key is not set")
	ErrRateLimited         = errors.New("rate limited")
	ErrRemoteAPI           = errors.New("ai api error")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file size exceeds limit")
	ErrIO                  = errors.New("io error")
)

var (
	ErrConversationNotFound = errors.New("conversation does not exist")
	ErrMessageNotFound      = errors.New("message does not exist")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrNothingToExport      = errors.New("no messages to export")
	ErrEmptyQuery           = errors.New("empty query")
	ErrSendDebounced        = errors.New("message sent too soon after the previous one")
	ErrInvalidRole          = errors.New("invalid message role")
)

const (
	CodeMissingCredential   = "MISSING_API_KEY"
	CodeRateLimited         = "RATE_LIMIT"
	CodeRemoteAPI           = "API_ERROR"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeIO                  = "IO_ERROR"
	CodeUnknown             = "UNKNOWN"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrMissingCredential, CodeMissingCredential},
	{ErrRateLimited, CodeRateLimited},
	{ErrRemoteAPI, CodeRemoteAPI},
	{ErrUnsupportedFileType, CodeUnsupportedFileType},
	{ErrFileTooLarge, CodeFileTooLarge},
	{ErrIO, CodeIO},
}

// ErrorCode maps err onto the stable code of its taxonomy entry.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnknown
}
