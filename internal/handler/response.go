package handler

import (
	"errors"
	"net/http"

	"github.com/blues/bounty/internal/logger"
	"github.com/blues/bounty/internal/logic"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// FailResponse 按业务错误类型选择状态码
//
// 通道失败时仍返回扣款/打款记录，便于调用方按记录重试。
func FailResponse(c *gin.Context, err error, data interface{}) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, Response{
		Success: false,
		Message: err.Error(),
		Data:    data,
	})
}

var conflictErrors = []error{
	logic.ErrDuplicateClaim,
	logic.ErrIssueLocked,
	logic.ErrAlreadyVoted,
	logic.ErrClaimClosed,
	logic.ErrClaimNotApproved,
	logic.ErrAlreadyPaid,
	logic.ErrAlreadyCharged,
	logic.ErrNothingToCharge,
	logic.ErrNotBiddable,
}

// StatusFor 错误对应的 HTTP 状态码
func StatusFor(err error) int {
	var gwErr *logic.GatewayError
	switch {
	case errors.As(err, &gwErr):
		if gwErr.Err == nil {
			return http.StatusPaymentRequired
		}
		return http.StatusBadGateway
	case errors.Is(err, logic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, logic.ErrNoStanding):
		return http.StatusForbidden
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	if logic.IsValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
