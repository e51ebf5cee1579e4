package metrics

import "codeberg.org/mutker/ipmifanctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("journal_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("journal_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("journal_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("journal_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("journal_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitJournal
	ErrStorageClose = errors.ErrCloseJournal

	// Collection Errors
	ErrRecordFailed     = errors.ErrRecordJournal
	ErrInvalidSnapshot  = errors.ErrorCode("journal_invalid_snapshot")
	ErrOperationTimeout = errors.ErrTimeout
)
