package resultset

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// 游标错误
	ErrSeekFailure  = errors.New("seek failure: position out of range or result invalid")
	ErrCursorClosed = errors.New("cursor is closed")

	// 行形态错误
	ErrUnknownType     = errors.New("unknown row type")
	ErrInvalidArgument = errors.New("invalid argument")
)

// DriverError 行数据源（驱动）错误
type DriverError struct {
	Op  string // 操作名称
	Err error  // 原始错误
}

func (e *DriverError) Error() string {
	if e.Err == nil {
		return "<nil>"
	}
	return "driver " + e.Op + ": " + e.Err.Error()
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// newDriverError 包装驱动返回的错误，nil 保持 nil
func newDriverError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DriverError{Op: op, Err: err}
}

// IsSeekFailure 检查是否为定位失败
func IsSeekFailure(err error) bool {
	return errors.Is(err, ErrSeekFailure)
}

// IsDriverFault 检查错误是否来自行数据源
func IsDriverFault(err error) bool {
	var de *DriverError
	return errors.As(err, &de)
}

// seekError 驱动重定位失败，既匹配 ErrSeekFailure 也能取到原始错误
type seekError struct {
	position int
	err      error
}

func (e *seekError) Error() string {
	return fmt.Sprintf("%s: reposition to %d: %v", ErrSeekFailure.Error(), e.position, e.err)
}

func (e *seekError) Is(target error) bool {
	return target == ErrSeekFailure
}

func (e *seekError) Unwrap() error {
	return e.err
}
