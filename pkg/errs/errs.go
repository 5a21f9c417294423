// Package errs defines the error kinds AnICA's subsystems report, so that
// callers (in particular the CLI layer) can distinguish a user/configuration
// mistake from a sampling failure, a misbehaving predictor or an operator
// interrupt without parsing error strings.
package errs

import "fmt"

// Kind classifies an AnICA error.
type Kind string

const (
	KindConfig        Kind = "config"
	KindIWHO          Kind = "iwho"
	KindSampling      Kind = "sampling"
	KindPredictor     Kind = "predictor"
	KindDiscovery     Kind = "discovery"
	KindUserInterrupt Kind = "user_interrupt"
)

// Error wraps an underlying cause with the AnICA error kind it belongs to.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ConfigError reports a malformed or inconsistent configuration.
func ConfigError(format string, args ...any) *Error { return newf(KindConfig, format, args...) }

// WrapConfigError wraps an underlying error as a ConfigError.
func WrapConfigError(cause error, format string, args ...any) *Error {
	return wrap(KindConfig, cause, format, args...)
}

// IWHOError reports a failure resolving or materializing an instruction
// scheme against the iwho contract.
func IWHOError(format string, args ...any) *Error { return newf(KindIWHO, format, args...) }

// WrapIWHOError wraps an underlying error as an IWHOError.
func WrapIWHOError(cause error, format string, args ...any) *Error {
	return wrap(KindIWHO, cause, format, args...)
}

// SamplingError reports that a concrete block could not be produced from an
// abstract block (e.g. an unsatisfiable aliasing constraint).
func SamplingError(format string, args ...any) *Error { return newf(KindSampling, format, args...) }

// WrapSamplingError wraps an underlying error as a SamplingError.
func WrapSamplingError(cause error, format string, args ...any) *Error {
	return wrap(KindSampling, cause, format, args...)
}

// PredictorError reports that a predictor failed, timed out, or returned a
// malformed result.
func PredictorError(format string, args ...any) *Error { return newf(KindPredictor, format, args...) }

// WrapPredictorError wraps an underlying error as a PredictorError.
func WrapPredictorError(cause error, format string, args ...any) *Error {
	return wrap(KindPredictor, cause, format, args...)
}

// DiscoveryError reports a failure of the discovery loop itself, as opposed
// to a failure of one of its collaborators.
func DiscoveryError(format string, args ...any) *Error { return newf(KindDiscovery, format, args...) }

// WrapDiscoveryError wraps an underlying error as a DiscoveryError.
func WrapDiscoveryError(cause error, format string, args ...any) *Error {
	return wrap(KindDiscovery, cause, format, args...)
}

// ErrUserInterrupt is returned by long-running operations that were stopped
// by an explicit user request (e.g. Ctrl-C during "anica discover --loop").
var ErrUserInterrupt = &Error{Kind: KindUserInterrupt, Message: "interrupted by user"}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			if ae.Kind == kind {
				return true
			}
			err = ae.Cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
