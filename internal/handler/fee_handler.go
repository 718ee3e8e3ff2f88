package handler

import (
	"net/http"

	"github.com/blues/bounty/internal/fee"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// FeeHandler 费用试算
type FeeHandler struct {
	calc *fee.Calculator
}

func NewFeeHandler(calc *fee.Calculator) *FeeHandler {
	return &FeeHandler{calc: calc}
}

func queryDecimal(c *gin.Context, name, fallback string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(c.DefaultQuery(name, fallback))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的金额: "+name)
		return decimal.Zero, false
	}
	return d, true
}

// ChargeQuote 出资 amount 时实际扣款明细
func (h *FeeHandler) ChargeQuote(c *gin.Context) {
	amount, ok := queryDecimal(c, "amount", "")
	if !ok {
		return
	}

	breakdown, err := h.calc.Charge(amount)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}

	SuccessResponse(c, http.StatusOK, "试算成功", breakdown)
}

// PayoutQuote 要价 amount、退还 credit 时的打款明细
func (h *FeeHandler) PayoutQuote(c *gin.Context) {
	amount, ok := queryDecimal(c, "amount", "")
	if !ok {
		return
	}
	credit, ok := queryDecimal(c, "credit", "0")
	if !ok {
		return
	}

	breakdown, err := h.calc.Payout(amount, credit)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}

	SuccessResponse(c, http.StatusOK, "试算成功", breakdown)
}
