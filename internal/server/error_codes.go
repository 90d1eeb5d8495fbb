package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidForm     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidID       = 1004
	ErrCodeInvalidStatus   = 1005
	ErrCodeInvalidRating   = 1006
	ErrCodeInvalidLink     = 1007
	ErrCodeMissingRequired = 1009
	ErrCodeInvalidBlobKey  = 1010

	// Domain state (2xxx)
	ErrCodeRecordNotFound = 2001
	ErrCodeBlobNotFound   = 2002

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
	ErrCodeBlobFailure  = 4003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeRecordNotFound
	case 413:
		return ErrCodeRequestTooLarge
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
