package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported means no acquisition provider exists on this host.
	ErrUnsupported = errors.New("camera acquisition unsupported")
	// ErrDenied is wrapped by every *AcquireError.
	ErrDenied = errors.New("camera acquisition denied")
	// ErrNotReady means a stream opened but produced no frames in time.
	ErrNotReady = errors.New("camera frames not ready")
	// ErrStartInFlight is returned when Start runs while a request is pending.
	ErrStartInFlight = errors.New("camera start already in flight")
	// ErrSuperseded is returned when Stop lands while Start was requesting.
	ErrSuperseded = errors.New("camera start superseded")
	// ErrNoSession is returned by Stop when nothing is held.
	ErrNoSession = errors.New("no camera session")
	// ErrNoFrames is returned by Snapshot without a frame to draw.
	ErrNoFrames = errors.New("no active frames")
)

// Failure names reported in the blocked log line.
const (
	NameNotAllowed    = "NotAllowedError"
	NameNotFound      = "NotFoundError"
	NameNotReadable   = "NotReadableError"
	NameOverconstrain = "OverconstrainedError"
	NameAbort         = "AbortError"
	NameSecurity      = "SecurityError"
	NameType          = "TypeError"
	NameUnknown       = "UnknownError"
)

// AcquireError is a classified acquisition failure.
type AcquireError struct {
	Name string
	Err  error
}

func (e *AcquireError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera acquisition failed: %s", e.Name)
	}
	return fmt.Sprintf("camera acquisition failed: %s: %v", e.Name, e.Err)
}

// Unwrap exposes the underlying error.
func (e *AcquireError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDenied}
	}
	return []error{ErrDenied, e.Err}
}

// NewAcquireError classifies err and wraps it.
func NewAcquireError(err error) *AcquireError {
	return &AcquireError{Name: Classify(err), Err: err}
}

// Named is implemented by provider errors that carry their own failure name.
type Named interface {
	Name() string
}

// namedError is a provider error with a fixed failure name.
type namedError struct {
	name string
	msg  string
}

func (e *namedError) Error() string { return e.msg }
func (e *namedError) Name() string  { return e.name }

// NamedError returns an error that Classify reports as name.
func NamedError(name, msg string) error {
	return &namedError{name: name, msg: msg}
}

// failureTokens maps message tokens to failure names. Order matters: the
// first table entry with a matching token wins.
var failureTokens = []struct {
	name   string
	tokens []string
}{
	{NameNotAllowed, []string{"permission denied", "not allowed", "denied"}},
	{NameNotFound, []string{"no such device", "not found", "no camera"}},
	{NameNotReadable, []string{"device busy", "resource busy", "in use", "not readable"}},
	{NameOverconstrain, []string{"overconstrained", "constraint"}},
	{NameSecurity, []string{"insecure", "security"}},
	{NameType, []string{"invalid constraints", "type error"}},
}

var knownNames = map[string]bool{
	NameNotAllowed:    true,
	NameNotFound:      true,
	NameNotReadable:   true,
	NameOverconstrain: true,
	NameAbort:         true,
	NameSecurity:      true,
	NameType:          true,
}

// Classify maps an acquisition error to a failure name. Unknown errors map
// to UnknownError.
func Classify(err error) string {
	if err == nil {
		return NameUnknown
	}

	var ae *AcquireError
	if errors.As(err, &ae) && ae.Name != "" {
		return ae.Name
	}

	var named Named
	if errors.As(err, &named) {
		if n := named.Name(); knownNames[n] {
			return n
		}
		return NameUnknown
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NameAbort
	}

	msg := strings.ToLower(err.Error())
	for _, entry := range failureTokens {
		for _, token := range entry.tokens {
			if strings.Contains(msg, token) {
				return entry.name
			}
		}
	}
	return NameUnknown
}
