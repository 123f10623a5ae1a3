package common

import (
	"errors"
	"fmt"
)

type ErrNo struct {
	ErrCode int    `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

const (
	SuccessCode = 0
	ServiceErr  = iota + 10000
	RequestInvalid
	TokenInvalid
	PasswordErr
	UserNotExists
	ValidationFailed
	TaskNotExists
	RunNotExists
	AlertNotExists
	DispatchFail
	GetStatsFail
	SubscribeFail
)

var errorMsg = map[int]string{
	SuccessCode:      "success",
	ServiceErr:       "service error",
	RequestInvalid:   "request invalid",
	TokenInvalid:     "token invalid",
	PasswordErr:      "password error",
	UserNotExists:    "user not exists",
	ValidationFailed: "validation failed",
	TaskNotExists:    "task not exists",
	RunNotExists:     "run not exists",
	AlertNotExists:   "alert not exists",
	DispatchFail:     "dispatch fail",
	GetStatsFail:     "get queue stats fail",
	SubscribeFail:    "subscribe fail",
}

func (e ErrNo) Error() string {
	return fmt.Sprintf("err_code=%d, err_msg=%s", e.ErrCode, e.ErrMsg)
}

func NewErrNo(errCode int) error {
	return ErrNo{
		ErrCode: errCode,
		ErrMsg:  errorMsg[errCode],
	}
}

// NewErrNoMsg keeps the code but carries a caller-supplied detail message,
// used for validation failures where the caller needs to know what was wrong.
func NewErrNoMsg(errCode int, msg string) error {
	return ErrNo{
		ErrCode: errCode,
		ErrMsg:  msg,
	}
}

// IsErrCode reports whether err is an ErrNo with the given code.
func IsErrCode(err error, errCode int) bool {
	e := ErrNo{}
	return errors.As(err, &e) && e.ErrCode == errCode
}

func ConvertErr(err error) ErrNo {
	e := ErrNo{}
	if errors.As(err, &e) {
		return e
	}
	e = ErrNo{
		ErrCode: ServiceErr,
		ErrMsg:  err.Error(),
	}
	return e
}
