package biometricErrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure surfaced to callers of the biometric signer.
type Kind string

const (
	// KindUnsupportedPlatform: the platform lacks a secure credential store or biometric prompt.
	KindUnsupportedPlatform Kind = "UnsupportedPlatform"
	// KindInvalidArgument: a required field was missing or malformed. Caller bug.
	KindInvalidArgument Kind = "InvalidArgument"
	// KindKeyGenerationFailed: the credential store refused to create a key.
	KindKeyGenerationFailed Kind = "KeyGenerationFailed"
	// KindBiometricEnrollmentRequired: gated key creation needs an enrolled modality.
	KindBiometricEnrollmentRequired Kind = "BiometricEnrollmentRequired"
	// KindNoKeyAvailable: sign was requested before any key was created.
	KindNoKeyAvailable Kind = "NoKeyAvailable"
	// KindBiometricAuthFailed: the challenge was denied or cancelled.
	KindBiometricAuthFailed Kind = "BiometricAuthFailed"
	// KindSensorError: hardware or transient failure during the challenge.
	KindSensorError Kind = "SensorError"
)

func (k Kind) String() string {
	return string(k)
}

// Detail values attached to KindBiometricAuthFailed so UIs can react differently
// to an explicit cancel than to a failed match.
const (
	DetailDenied    = "denied"
	DetailCancelled = "cancelled"
)

// Error is the typed failure returned by every signer operation.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrUnsupportedPlatform         = &Error{Kind: KindUnsupportedPlatform}
	ErrInvalidArgument             = &Error{Kind: KindInvalidArgument}
	ErrKeyGenerationFailed         = &Error{Kind: KindKeyGenerationFailed}
	ErrBiometricEnrollmentRequired = &Error{Kind: KindBiometricEnrollmentRequired}
	ErrNoKeyAvailable              = &Error{Kind: KindNoKeyAvailable}
	ErrBiometricAuthFailed         = &Error{Kind: KindBiometricAuthFailed}
	ErrSensorError                 = &Error{Kind: KindSensorError}
)

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind. A target with a Detail set must also
// match on detail, so errors.Is(err, New(KindBiometricAuthFailed, DetailCancelled))
// only holds for cancellations.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Detail == "" || t.Detail == e.Detail
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DetailOf returns the detail of the first *Error in err's chain.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// IsCancelled reports whether err is a user-cancelled biometric challenge.
func IsCancelled(err error) bool {
	return errors.Is(err, New(KindBiometricAuthFailed, DetailCancelled))
}
