package shared

import "fmt"

var (
	// Library store errors
	ErrStoreUnavailable   = fmt.Errorf("store unavailable")
	ErrStoreReadFailed    = fmt.Errorf("store read failed")
	ErrStoreWriteFailed   = fmt.Errorf("store write failed")
	ErrTransactionAborted = fmt.Errorf("transaction aborted")
	ErrStoreClosed        = fmt.Errorf("store closed")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Catalog errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
