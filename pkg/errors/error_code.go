package errors

import "strconv"

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeMissingParameter     ErrorCode = 103
	ErrCodeVersionMismatch      ErrorCode = 104
	ErrCodeInvalidProvider      ErrorCode = 105

	// Signal errors (200-299)
	ErrCodeInvalidSignal     ErrorCode = 200
	ErrCodeCapExceeded       ErrorCode = 201
	ErrCodeMarketDataMissing ErrorCode = 202

	// Broker errors (300-399)
	ErrCodeConnectivity        ErrorCode = 300
	ErrCodeSubmissionFailed    ErrorCode = 301
	ErrCodeUnprotectedPosition ErrorCode = 302
	ErrCodeCancelFailed        ErrorCode = 303
	ErrCodeOrderNotFound       ErrorCode = 304

	// Engine errors (400-499)
	ErrCodeQueueFull      ErrorCode = 400
	ErrCodeEngineStopped  ErrorCode = 401
	ErrCodeEngineNotReady ErrorCode = 402
	ErrCodeResultTimeout  ErrorCode = 403

	// Journal errors (500-599)
	ErrCodeJournalInitFailed  ErrorCode = 500
	ErrCodeJournalWriteFailed ErrorCode = 501
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:              "unknown",
	ErrCodeInvalidParameter:     "invalid_parameter",
	ErrCodeInvalidConfiguration: "invalid_configuration",
	ErrCodeInvalidOrder:         "invalid_order",
	ErrCodeMissingParameter:     "missing_parameter",
	ErrCodeVersionMismatch:      "version_mismatch",
	ErrCodeInvalidProvider:      "invalid_provider",
	ErrCodeInvalidSignal:        "invalid_signal",
	ErrCodeCapExceeded:          "cap_exceeded",
	ErrCodeMarketDataMissing:    "market_data_missing",
	ErrCodeConnectivity:         "connectivity",
	ErrCodeSubmissionFailed:     "submission_failed",
	ErrCodeUnprotectedPosition:  "unprotected_position",
	ErrCodeCancelFailed:         "cancel_failed",
	ErrCodeOrderNotFound:        "order_not_found",
	ErrCodeQueueFull:            "queue_full",
	ErrCodeEngineStopped:        "engine_stopped",
	ErrCodeEngineNotReady:       "engine_not_ready",
	ErrCodeResultTimeout:        "result_timeout",
	ErrCodeJournalInitFailed:    "journal_init_failed",
	ErrCodeJournalWriteFailed:   "journal_write_failed",
}

// String returns the snake_case name of the code, or its number when the code
// is not registered.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return strconv.Itoa(int(c))
}

// Category groups codes by their hundreds range.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryValidation Category = "validation"
	CategorySignal     Category = "signal"
	CategoryBroker     Category = "broker"
	CategoryEngine     Category = "engine"
	CategoryJournal    Category = "journal"
)

// Category returns the range the code belongs to.
func (c ErrorCode) Category() Category {
	switch c / 100 {
	case 1:
		return CategoryValidation
	case 2:
		return CategorySignal
	case 3:
		return CategoryBroker
	case 4:
		return CategoryEngine
	case 5:
		return CategoryJournal
	default:
		return CategoryGeneral
	}
}
