package errors

// Common error codes
const (
	// System errors
	ErrInternal       ErrorCode = "internal_error"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Lifecycle errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrMainLoop       ErrorCode = "main_loop_failed"

	// Control loop errors
	ErrReadingUnavailable     ErrorCode = "reading_unavailable"
	ErrAllDevicesUnavailable  ErrorCode = "all_devices_unavailable"
	ErrActuatorFailed         ErrorCode = "actuator_failed"
	ErrTimeout                ErrorCode = "operation_timeout"
	ErrResetFanDuty           ErrorCode = "reset_fan_duty_failed"
	ErrInvalidThresholdConfig ErrorCode = "invalid_threshold_configuration"

	// Journal errors
	ErrInitJournal   ErrorCode = "init_journal_failed"
	ErrRecordJournal ErrorCode = "record_journal_failed"
	ErrCloseJournal  ErrorCode = "close_journal_failed"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:               "Internal error occurred",
	ErrAlreadyRunning:         "Another instance is already running",
	ErrInvalidConfig:          "Invalid configuration",
	ErrReadConfig:             "Failed to read configuration",
	ErrBindFlags:              "Failed to bind flags",
	ErrInvalidInterval:        "Invalid interval value",
	ErrInvalidLogLevel:        "Invalid log level",
	ErrInitFailed:             "Initialization failed",
	ErrShutdownFailed:         "Shutdown failed",
	ErrMainLoop:               "Error in main loop",
	ErrReadingUnavailable:     "Temperature reading unavailable",
	ErrAllDevicesUnavailable:  "No drive returned a temperature",
	ErrActuatorFailed:         "Failed to apply fan duty",
	ErrTimeout:                "Operation timed out",
	ErrResetFanDuty:           "Failed to apply exit fan duty",
	ErrInvalidThresholdConfig: "Invalid threshold table",
	ErrInitJournal:            "Failed to initialize decision journal",
	ErrRecordJournal:          "Failed to record decision",
	ErrCloseJournal:           "Failed to close decision journal",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
