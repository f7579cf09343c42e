package grid

import (
	"errors"
	"fmt"

	"gridstream/pkg/types"
)

var (
	ErrMissingBackend  = errors.New("missing backend argument")
	ErrDestroyed       = errors.New("stream destroyed")
	ErrClosed          = errors.New("stream is not writable")
	ErrMissingIdentity = errors.New("file has neither id nor filename")
	ErrInvalidRange    = types.ErrInvalidRange
	ErrUnknownEncoding = errors.New("unknown encoding")
	ErrNotFound        = errors.New("file not found")
	ErrNotSupported    = errors.New("operation not supported by backend")
)

// FailureKind 标记失败发生在哪个后端调用上
type FailureKind int

const (
	OpenFailure FailureKind = iota + 1
	SeekFailure
	WriteFailure
	CloseFailure
	ReadFailure
)

func (k FailureKind) String() string {
	switch k {
	case OpenFailure:
		return "open"
	case SeekFailure:
		return "seek"
	case WriteFailure:
		return "write"
	case CloseFailure:
		return "close"
	case ReadFailure:
		return "read"
	}
	return "unknown"
}

// StreamError 包装后端返回的原始错误
type StreamError struct {
	Kind     FailureKind
	Identity string
	Err      error
}

func (e *StreamError) Error() string {
	if e.Identity == "" {
		return fmt.Sprintf("grid %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("grid %s %q: %v", e.Kind, e.Identity, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

func newFailure(kind FailureKind, d Descriptor, err error) error {
	return &StreamError{Kind: kind, Identity: d.Identity(), Err: err}
}

// IsFailure 判断 err 链上是否有指定类型的 StreamError
func IsFailure(err error, kind FailureKind) bool {
	var se *StreamError
	return errors.As(err, &se) && se.Kind == kind
}
