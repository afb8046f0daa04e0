package logging

import "fmt"

// Kind classifies a core error per the error handling design: membership
// errors are recoverable by the caller, KernelRegister disables the LAME
// capability, Corruption is fatal.
type Kind int

const (
	_ Kind = iota
	NoSpace
	NotFound
	InvalidIndex
	InvalidConfig
	AlreadyPresent
	KernelRegister
	Corruption
)

func (k Kind) String() string {
	switch k {
	case NoSpace:
		return "no_space"
	case NotFound:
		return "not_found"
	case InvalidIndex:
		return "invalid_index"
	case InvalidConfig:
		return "invalid_config"
	case AlreadyPresent:
		return "already_present"
	case KernelRegister:
		return "kernel_register"
	case Corruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Error is a typed core error: a Kind plus context, optionally wrapping a
// lower-level cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, &logging.Error{Kind: logging.NoSpace}) style checks
// against a sentinel built with the same Kind and no Op/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a typed error for op with no wrapped cause.
func New(kind Kind, op string) error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds a typed error for op wrapping err.
func Wrap(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; ok is false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	for err != nil {
		if e, is := err.(*Error); is {
			return e.Kind, true
		}
		u, is := err.(interface{ Unwrap() error })
		if !is {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}
