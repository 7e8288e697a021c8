package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// 错误分类
// 核心业务只产生四类错误，handler层据此映射HTTP状态码：
//   ValidationError     -> 400 输入错误，未发生任何写入
//   StateError          -> 409 当前单据状态不允许该操作
//   ExternalUnavailable -> 502 外部系统不可达（可重试）
//   ExternalRejected    -> 422 外部系统已收到但返回业务错误（需修正输入）
// =============================================================================

// ValidationError 输入校验错误
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf 构造校验错误
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StateError 单据状态机错误，消息中指明允许的来源状态
type StateError struct {
	Op      string
	Current string
	Allowed []string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in status %q (allowed: %s)",
		e.Op, e.Current, strings.Join(e.Allowed, ", "))
}

// NewStateError 构造状态机错误
func NewStateError(op, current string, allowed ...string) error {
	return &StateError{Op: op, Current: current, Allowed: allowed}
}

// ExternalUnavailable 外部系统不可达
type ExternalUnavailable struct {
	Op  string
	Err error
}

func (e *ExternalUnavailable) Error() string {
	return fmt.Sprintf("%s: external system unavailable: %v", e.Op, e.Err)
}

func (e *ExternalUnavailable) Unwrap() error {
	return e.Err
}

// ExternalRejected 外部系统返回业务错误
type ExternalRejected struct {
	Op   string
	Code int
	Msg  string
}

func (e *ExternalRejected) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: rejected by external system [%d]: %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: rejected by external system: %s", e.Op, e.Msg)
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsState 判断是否为状态机错误
func IsState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsExternalUnavailable 判断外部系统是否不可达
func IsExternalUnavailable(err error) bool {
	var ee *ExternalUnavailable
	return errors.As(err, &ee)
}

// IsExternalRejected 判断是否被外部系统拒绝
func IsExternalRejected(err error) bool {
	var er *ExternalRejected
	return errors.As(err, &er)
}
