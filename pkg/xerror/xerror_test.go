package xerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// UnitTest for xCategory
func TestXCategory(t *testing.T) {
	assert.Equal(t, Normal.Name(), "normal")
	assert.Equal(t, Config.Name(), "config")
	assert.Equal(t, DB.Name(), "db")
	assert.Equal(t, Lock.Name(), "lock")
	assert.Equal(t, Source.Name(), "source")
	assert.Equal(t, Target.Name(), "target")
}

func TestXError_Error(t *testing.T) {
	errMsg := "test error"
	err := Errorf(Normal, errMsg)
	assert.NotNil(t, err)

	var xerr *XError
	assert.True(t, errors.As(err, &xerr))
	assert.Equal(t, xerr.Error(), fmt.Sprintf("[%s] %s", Normal.Name(), errMsg))

	err = Wrap(err, DB, "wrapped error")
	assert.NotNil(t, err)

	assert.True(t, errors.As(err, &xerr))
	assert.Equal(t, xerr.Category(), DB)
}

func TestErrorf(t *testing.T) {
	errMsg := "test error"
	err := Errorf(Lock, errMsg)
	assert.NotNil(t, err)

	var xerr *XError
	assert.True(t, errors.As(err, &xerr))
	assert.Equal(t, xerr.Category(), Lock)
}

func TestWrap(t *testing.T) {
	errMsg := "db open error"
	err := errors.New(errMsg)
	wrappedErr := Wrap(err, DB, "wrapped error")
	assert.NotNil(t, wrappedErr)

	var xerr *XError
	assert.True(t, errors.As(wrappedErr, &xerr))
	assert.Equal(t, xerr.Category(), DB)
	assert.True(t, errors.Is(wrappedErr, err))

	assert.Nil(t, Wrap(nil, DB, "no error"))
	assert.Nil(t, Wrapf(nil, DB, "no error %d", 1))
}

func TestIsCategory(t *testing.T) {
	err := New(Lock, "lock timeout")
	assert.True(t, IsCategory(err, Lock))
	assert.False(t, IsCategory(err, DB))

	// the innermost category wins, outer wrapping does not re-tag
	wrapped := Wrapf(err, Normal, "sync %s failed", "entity")
	assert.True(t, IsCategory(wrapped, Lock))
	assert.False(t, IsCategory(wrapped, Normal))

	assert.False(t, IsCategory(nil, Lock))
	assert.False(t, IsCategory(errors.New("plain"), Lock))
}

func TestWithStack(t *testing.T) {
	assert.Nil(t, WithStack(nil))

	err := WithStack(errors.New("plain"))
	assert.True(t, IsCategory(err, Normal))
	// %+v carries a stack trace
	assert.Contains(t, fmt.Sprintf("%+v", err), "xerror_test.go")
}
