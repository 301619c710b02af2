package radar

import "errors"

var (
	// ErrFormatUnknown means no detector rule matched the byte stream.
	ErrFormatUnknown = errors.New("unknown radar format")
	// ErrHeaderDecode means a header block had a bad magic or was truncated.
	ErrHeaderDecode = errors.New("header decode error")
	// ErrSizeConsistency means the byte length is not a whole number of radial records.
	ErrSizeConsistency = errors.New("size consistency error")
	// ErrSweepConsistency means radial status codes do not partition into the declared sweeps.
	ErrSweepConsistency = errors.New("sweep consistency error")
)

// ErrMomentNotFound means a query named a moment the volume does not carry.
var ErrMomentNotFound = errors.New("moment not found")
