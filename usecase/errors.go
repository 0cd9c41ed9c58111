package usecase

import "errors"

var (
	ErrSessionActive           = errors.New("a session is already active")
	ErrSessionBusy             = errors.New("session is starting or ending")
	ErrNoActiveSession         = errors.New("no active session")
	ErrWrongMode               = errors.New("operation not available in this session mode")
	ErrEmptyMessage            = errors.New("message text is empty")
	ErrBusinessContextRequired = errors.New("business context is required")
	ErrVideoUnavailable        = errors.New("video provider is not configured")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAnalysisMalformed       = errors.New("analysis response is not valid JSON")
	ErrUpstream                = errors.New("upstream provider failed")
)

// ErrInvalidInput wraps validation failures of caller supplied data
var ErrInvalidInput = errors.New("invalid input")
