package errors

import (
	"fmt"
	"net/http"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Credit Service 错误定义
// Code 即 HTTP 状态码，Reason 为对外稳定的机器可读错误码，
// 由 HTTP ErrorEncoder 渲染为 {"error": message, "code": reason}。

const (
	// ReasonUnauthorized webhook 密钥不匹配或未配置
	ReasonUnauthorized = "UNAUTHORIZED"
	// ReasonInvalidArgument 请求参数缺失或格式错误
	ReasonInvalidArgument = "INVALID_ARGUMENT"
	// ReasonMalformedEvent webhook 事件体无法解析
	ReasonMalformedEvent = "MALFORMED_EVENT"
	// ReasonInsufficientCredits 积分不足
	ReasonInsufficientCredits = "INSUFFICIENT_CREDITS"
	// ReasonPromptConfigNotFound 找不到功能对应的提示词配置
	ReasonPromptConfigNotFound = "PROMPT_CONFIG_NOT_FOUND"
	// ReasonGenerationFailed 模型调用失败或未返回图片
	ReasonGenerationFailed = "GENERATION_FAILED"
	// ReasonLedgerConflict 账本并发写入重试后仍失败
	ReasonLedgerConflict = "LEDGER_CONFLICT"
	// ReasonGenerationUnavailable 未配置模型密钥
	ReasonGenerationUnavailable = "GENERATION_UNAVAILABLE"
)

// MsgInsufficientCredits 积分不足时返回给客户端的文案
const MsgInsufficientCredits = "Saldo insuficiente"

// MsgGenerationFailed 模型失败时的固定文案，上游细节只进日志
const MsgGenerationFailed = "image generation failed"

// 识别失败文案
const (
	MsgIdentifyFailed   = "image identification failed"
	MsgInvalidModelJSON = "AI returned invalid JSON format."
)

func ErrorUnauthorized(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(http.StatusUnauthorized, ReasonUnauthorized, fmt.Sprintf(format, args...))
}

func IsUnauthorized(err error) bool {
	return is(err, ReasonUnauthorized, http.StatusUnauthorized)
}

func ErrorInvalidArgument(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(http.StatusBadRequest, ReasonInvalidArgument, fmt.Sprintf(format, args...))
}

func IsInvalidArgument(err error) bool {
	return is(err, ReasonInvalidArgument, http.StatusBadRequest)
}

func ErrorMalformedEvent(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(http.StatusBadRequest, ReasonMalformedEvent, fmt.Sprintf(format, args...))
}

func IsMalformedEvent(err error) bool {
	return is(err, ReasonMalformedEvent, http.StatusBadRequest)
}

func ErrorInsufficientCredits() *kerrors.Error {
	return kerrors.New(http.StatusPaymentRequired, ReasonInsufficientCredits, MsgInsufficientCredits)
}

func IsInsufficientCredits(err error) bool {
	return is(err, ReasonInsufficientCredits, http.StatusPaymentRequired)
}

func ErrorPromptConfigNotFound(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(http.StatusInternalServerError, ReasonPromptConfigNotFound, fmt.Sprintf(format, args...))
}

func IsPromptConfigNotFound(err error) bool {
	return is(err, ReasonPromptConfigNotFound, http.StatusInternalServerError)
}

func ErrorGenerationFailed(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(http.StatusInternalServerError, ReasonGenerationFailed, fmt.Sprintf(format, args...))
}

func IsGenerationFailed(err error) bool {
	return is(err, ReasonGenerationFailed, http.StatusInternalServerError)
}

func ErrorGenerationUnavailable() *kerrors.Error {
	return kerrors.New(http.StatusServiceUnavailable, ReasonGenerationUnavailable, "image generation is not configured")
}

func IsGenerationUnavailable(err error) bool {
	return is(err, ReasonGenerationUnavailable, http.StatusServiceUnavailable)
}

func ErrorLedgerConflict(format string, args ...interface{}) *kerrors.Error {
	return kerrors.New(http.StatusInternalServerError, ReasonLedgerConflict, fmt.Sprintf(format, args...))
}

func IsLedgerConflict(err error) bool {
	return is(err, ReasonLedgerConflict, http.StatusInternalServerError)
}

func is(err error, reason string, code int) bool {
	if err == nil {
		return false
	}
	e := kerrors.FromError(err)
	return e.Reason == reason && int(e.Code) == code
}
