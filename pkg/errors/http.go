package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ToHTTPStatus는 에러 코드를 HTTP 상태 코드로 변환합니다
func ToHTTPStatus(code string) int {
	status, _ := GetCodeMapping(code)
	return status
}

// ToHTTPError는 에러를 Echo HTTP 에러로 변환합니다.
// 5xx 응답에는 내부 메시지를 노출하지 않습니다.
func ToHTTPError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	var echoErr *echo.HTTPError
	if As(err, &echoErr) {
		return echoErr
	}

	status := ToHTTPStatus(CodeOf(err))
	if status >= http.StatusInternalServerError {
		return echo.NewHTTPError(status, http.StatusText(status)).SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}
