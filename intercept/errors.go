package intercept

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrDuplicateOperation indicates an operation ID is already registered.
	ErrDuplicateOperation = errors.New("intercept: operation already registered")

	// ErrUnknownOperation indicates no operation is registered under an ID.
	ErrUnknownOperation = errors.New("intercept: operation not registered")

	// ErrInvalidOperationID indicates an empty or blank operation ID.
	ErrInvalidOperationID = errors.New("intercept: operation id is empty")

	// ErrNilOperation indicates a nil operation function.
	ErrNilOperation = errors.New("intercept: operation func is nil")

	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("intercept: engine is closed")

	// ErrTypeMismatch indicates a typed operation produced a value of another type.
	ErrTypeMismatch = errors.New("intercept: result has unexpected type")

	// ErrPurgeUnsupported indicates the cache backend cannot drop a partition.
	ErrPurgeUnsupported = errors.New("intercept: cache cannot purge partitions")
)
