// Package errors는 HTTP와 gRPC 응답으로 변환 가능한 공통 에러 타입을 제공합니다.
package errors

import (
	"errors"
	"fmt"
)

// 표준 라이브러리 함수 재노출
var (
	New    = errors.New
	Unwrap = errors.Unwrap
	Is     = errors.Is
	As     = errors.As
)

// 공통 에러 코드
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrPrecondition    = "FAILED_PRECONDITION"
	ErrUnavailable     = "UNAVAILABLE"
	ErrTimeout         = "TIMEOUT"
)

// Coder는 자체 에러 코드를 가진 에러가 구현합니다.
// 도메인 에러 타입이 pkg/errors에 의존하지 않고 코드를 노출할 때 사용합니다.
type Coder interface {
	AppCode() string
}

// AppError는 코드와 메시지를 가진 기본 에러 구현체입니다
type AppError struct {
	code    string
	message string
	err     error
}

// NewAppError는 새 애플리케이션 에러를 생성합니다
func NewAppError(code, message string, err error) *AppError {
	return &AppError{code: code, message: message, err: err}
}

func (e *AppError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.message, e.err.Error())
	}
	return e.message
}

// Code는 에러 코드를 반환합니다
func (e *AppError) Code() string { return e.code }

// Message는 원인 에러를 제외한 메시지를 반환합니다
func (e *AppError) Message() string { return e.message }

func (e *AppError) Unwrap() error { return e.err }

// Wrap은 기존 에러를 래핑합니다. 원래 에러의 코드는 유지됩니다.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return NewAppError(CodeOf(err), message, err)
}

// CodeOf는 에러 체인에서 첫 번째 에러 코드를 찾습니다. 없으면 ErrInternal 입니다.
func CodeOf(err error) string {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.code
	}
	var coder Coder
	if As(err, &coder) {
		return coder.AppCode()
	}
	return ErrInternal
}
