package errors

// Error codes for programmatic handling. Codes are stable and appear in
// command responses.
const (
	// Store errors
	CodeStoreNotLoaded   = "STORE_NOT_LOADED"
	CodeStoreReadFailed  = "STORE_READ_FAILED"
	CodeStoreWriteFailed = "STORE_WRITE_FAILED"
	CodeStoreLockFailed  = "STORE_LOCK_FAILED"

	// Item errors
	CodeItemNotFound       = "ITEM_NOT_FOUND"
	CodeUnknownCollection  = "UNKNOWN_COLLECTION"
	CodeUnknownSingleton   = "UNKNOWN_SINGLETON"
	CodeInvalidItemPayload = "INVALID_ITEM_PAYLOAD"

	// Command errors
	CodeUnknownCommand   = "UNKNOWN_COMMAND"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeCommandPanicked  = "COMMAND_PANICKED"

	// Local process errors
	CodeLocalUnreachable = "LOCAL_PROCESS_UNREACHABLE"
	CodeLocalRejected    = "LOCAL_PROCESS_REJECTED"

	// Remote mirror errors
	CodeRemoteAuthFailed  = "REMOTE_AUTH_FAILED"
	CodeRemoteNotFound    = "REMOTE_NOT_FOUND"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeRemoteTimeout     = "REMOTE_TIMEOUT"
	CodeRemoteBadPayload  = "REMOTE_BAD_PAYLOAD"

	// Sync errors
	CodeSyncDataLossRisk  = "SYNC_DATA_LOSS_RISK"
	CodeSyncNotConfigured = "SYNC_NOT_CONFIGURED"

	// Configuration errors
	CodeConfigInvalid = "CONFIG_INVALID"

	CodeInternal = "INTERNAL_ERROR"
)
