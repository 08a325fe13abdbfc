package xerror

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

type ErrorCategory interface {
	Name() string
}

var (
	Normal = newErrorCategory("normal")
	Config = newErrorCategory("config") // backing store misconfigured, fail fast
	DB     = newErrorCategory("db")     // the backing store for operations/leases
	Lock   = newErrorCategory("lock")   // lease acquisition, incl. lease-busy timeouts
	Source = newErrorCategory("source") // the row-oriented source database
	Target = newErrorCategory("target") // the columnar analytical store
)

type xErrorCategory struct {
	name string
}

func (e xErrorCategory) Name() string {
	return e.name
}

func newErrorCategory(name string) ErrorCategory {
	return &xErrorCategory{
		name: name,
	}
}

// a wrapped error with a category tag
type XError struct {
	category ErrorCategory
	err      error
}

func (e *XError) Category() ErrorCategory {
	return e.category
}

func (e *XError) Error() string {
	// If the inner error is an XError too, its message already carries a category
	if xerr, ok := e.err.(*XError); ok {
		return xerr.Error()
	}

	return fmt.Sprintf("[%s] %s", e.category.Name(), e.err.Error())
}

func (e *XError) Unwrap() error {
	return e.err
}

func NewWithoutStack(errCategory ErrorCategory, message string) *XError {
	return &XError{
		category: errCategory,
		err:      stderrors.New(message),
	}
}

func New(errCategory ErrorCategory, message string) error {
	return errors.WithStack(NewWithoutStack(errCategory, message))
}

func Errorf(errCategory ErrorCategory, format string, args ...interface{}) error {
	err := &XError{
		category: errCategory,
		err:      fmt.Errorf(format, args...),
	}
	return errors.WithStack(err)
}

func Wrap(err error, errCategory ErrorCategory, message string) error {
	if err == nil {
		return nil
	}

	err = &XError{
		category: errCategory,
		err:      err,
	}
	return errors.Wrap(err, message)
}

func Wrapf(err error, errCategory ErrorCategory, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	err = &XError{
		category: errCategory,
		err:      err,
	}
	return errors.Wrapf(err, format, args...)
}

func WithStack(err error) error {
	if err == nil {
		return nil
	}

	err = &XError{
		category: Normal,
		err:      err,
	}
	return errors.WithStack(err)
}

// IsCategory reports whether any error in err's chain is an XError tagged
// with the given category. The innermost XError wins, matching Error().
func IsCategory(err error, category ErrorCategory) bool {
	return CategoryOf(err) == category
}

// CategoryOf returns the innermost XError category in err's chain, Normal
// when there is none.
func CategoryOf(err error) ErrorCategory {
	var last *XError
	for err != nil {
		if xerr, ok := err.(*XError); ok {
			last = xerr
		}
		err = stderrors.Unwrap(err)
	}
	if last == nil {
		return Normal
	}
	return last.category
}
