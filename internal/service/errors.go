package service

import "errors"

// 业务层错误码，handler 根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrNotFound                = errors.New("not found")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// Code 是跨传输层稳定的错误码。
type Code string

const (
	CodeOK                      Code = ""
	CodeInvalidInput            Code = "InvalidInput"
	CodeNotFound                Code = "NotFound"
	CodeInsufficientPermissions Code = "InsufficientPermissions"
	CodeInternal                Code = "Internal"
)

// CodeOf 返回错误对应的错误码，非预期错误一律归为 Internal。
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInsufficientPermissions):
		return CodeInsufficientPermissions
	default:
		return CodeInternal
	}
}
