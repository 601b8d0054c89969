package maa

import (
	"fmt"

	"github.com/haivivi/maafw/pkg/maa/native"
)

// Status is the state of a job.
type Status int32

// Status values. All but StatusCancelled mirror MaaStatus.
const (
	StatusInvalid   = Status(native.StatusInvalid)
	StatusPending   = Status(native.StatusPending)
	StatusRunning   = Status(native.StatusRunning)
	StatusSucceeded = Status(native.StatusSucceeded)
	StatusFailed    = Status(native.StatusFailed)

	// StatusCancelled is reported for a job that failed after Cancel was
	// requested on it. The native library never produces it.
	StatusCancelled Status = 4100
)

// decodeStatus maps a native status code. Unknown codes are an error,
// never a default.
func decodeStatus(code int32) (Status, error) {
	switch code {
	case native.StatusInvalid, native.StatusPending, native.StatusRunning,
		native.StatusSucceeded, native.StatusFailed:
		return Status(code), nil
	}
	return StatusInvalid, fmt.Errorf("%w: unknown status code %d", ErrDecode, code)
}

// Done reports whether s is terminal.
func (s Status) Done() bool {
	switch s {
	case StatusPending, StatusRunning:
		return false
	}
	return true
}

// Succeeded reports whether s is StatusSucceeded.
func (s Status) Succeeded() bool { return s == StatusSucceeded }

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// MarshalText encodes s by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
