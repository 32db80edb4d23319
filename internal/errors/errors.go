// Package errors provides the overlay's error taxonomy. Codes travel across the
// remote provider boundary as google.rpc.ErrorInfo reasons.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to statuses produced here.
const Domain = "overlay.dialogue"

// Code classifies a failure.
type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeInternal        Code = "INTERNAL"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeTimeout         Code = "TIMEOUT"
	CodeCancelled       Code = "CANCELLED"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeConfigInvalid   Code = "CONFIG_INVALID"

	// Pipeline failures. None of these ever reach a viewer.
	CodeCaptureFailure  Code = "CAPTURE_FAILURE"
	CodeProviderFailure Code = "PROVIDER_FAILURE"
	CodeGeometryFailure Code = "GEOMETRY_FAILURE"
	CodeCacheCorruption Code = "CACHE_CORRUPTION"
	CodeRenderFailure   Code = "RENDER_FAILURE"
)

func (c Code) String() string { return string(c) }

var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:         codes.Unknown,
	CodeInternal:        codes.Internal,
	CodeInvalidArgument: codes.InvalidArgument,
	CodeNotFound:        codes.NotFound,
	CodeUnavailable:     codes.Unavailable,
	CodeTimeout:         codes.DeadlineExceeded,
	CodeCancelled:       codes.Canceled,
	CodeRateLimited:     codes.ResourceExhausted,
	CodeConfigInvalid:   codes.FailedPrecondition,
	CodeCaptureFailure:  codes.Unavailable,
	CodeProviderFailure: codes.Internal,
	CodeGeometryFailure: codes.InvalidArgument,
	CodeCacheCorruption: codes.DataLoss,
	CodeRenderFailure:   codes.OutOfRange,
}

// AppError carries a Code, a message, optional metadata and the wrapped cause.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus returns a gRPC status with an ErrorInfo detail naming the code.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Code),
		Domain:   Domain,
		Metadata: e.Metadata,
	})
	if err != nil {
		return st
	}
	return withInfo
}

func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts an AppError from a gRPC error, preferring the ErrorInfo reason.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			return &AppError{
				Code:     Code(info.GetReason()),
				Message:  st.Message(),
				Metadata: info.GetMetadata(),
				Cause:    err,
			}
		}
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message(), Cause: err}
}

func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.NotFound:
		return CodeNotFound
	case codes.Unavailable:
		return CodeUnavailable
	case codes.DeadlineExceeded:
		return CodeTimeout
	case codes.Canceled:
		return CodeCancelled
	case codes.Internal:
		return CodeInternal
	case codes.FailedPrecondition:
		return CodeConfigInvalid
	case codes.ResourceExhausted:
		return CodeRateLimited
	case codes.DataLoss:
		return CodeCacheCorruption
	default:
		return CodeUnknown
	}
}

// IsCode reports whether any AppError in err's chain has the given code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeRateLimited:
		return true
	default:
		return false
	}
}
