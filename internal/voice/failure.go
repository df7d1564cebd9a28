package voice

import "errors"

// Failure is a user-facing error. Message is safe to show; Cause stays in logs.
type Failure struct {
	Kind    error
	Message string
	Cause   error
}

// NewFailure classifies cause under kind with a default message for that kind.
func NewFailure(kind error, cause error) *Failure {
	return &Failure{Kind: kind, Message: messageFor(kind), Cause: cause}
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return f.Message
	}
	if f.Kind != nil {
		return f.Kind.Error()
	}
	return "unknown failure"
}

func (f *Failure) Unwrap() []error {
	out := make([]error, 0, 2)
	if f.Kind != nil {
		out = append(out, f.Kind)
	}
	if f.Cause != nil {
		out = append(out, f.Cause)
	}
	return out
}

// Classify maps an arbitrary error onto the capture taxonomy.
// Errors that already carry a taxonomy kind keep it.
func Classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	for _, kind := range []error{ErrPermissionDenied, ErrDeviceUnavailable, ErrGenerationFailed, ErrSynthesisFailed} {
		if errors.Is(err, kind) {
			return NewFailure(kind, err)
		}
	}
	return NewFailure(ErrDeviceUnavailable, err)
}

func messageFor(kind error) string {
	switch kind {
	case ErrPermissionDenied:
		return "Microphone access denied. Please grant permission."
	case ErrDeviceUnavailable:
		return "No usable microphone found. Check that an input device is connected."
	case ErrGenerationFailed:
		return "Error getting AI response; answered with a fallback reply."
	case ErrSynthesisFailed:
		return "Unable to play the spoken reply."
	default:
		return "Something went wrong."
	}
}
