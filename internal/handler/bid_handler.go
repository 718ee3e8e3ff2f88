package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/bounty/internal/logic"
	"github.com/gin-gonic/gin"
)

// UserHeader 已认证用户标识，由前置网关写入
const UserHeader = "X-User-ID"

type BidHandler struct {
	bidLogic *logic.BidLogic
}

func NewBidHandler(bidLogic *logic.BidLogic) *BidHandler {
	return &BidHandler{bidLogic: bidLogic}
}

// currentUser 读取当前用户，缺失时返回 401
func currentUser(c *gin.Context) (string, bool) {
	userId := c.GetHeader(UserHeader)
	if userId == "" {
		ErrorResponse(c, http.StatusUnauthorized, "缺少用户身份")
		return "", false
	}
	return userId, true
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的ID")
		return 0, false
	}
	return id, true
}

// PlaceBid 创建或更新出价
func (h *BidHandler) PlaceBid(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}

	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.bidLogic.PlaceBid(c.Request.Context(), userId, req.Url, req.Ask, req.Offer)
	if err != nil {
		FailResponse(c, err, result)
		return
	}

	SuccessResponse(c, http.StatusCreated, "出价成功", result)
}

// GetBid 获取出价详情，带用户身份时附带可出价状态与可操作的认领
func (h *BidHandler) GetBid(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	detail, err := h.bidLogic.GetBid(ctx, id)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}

	resp := BidDetailResponse{BidDetail: detail}
	if userId := c.GetHeader(UserHeader); userId != "" {
		if resp.Biddable, err = h.bidLogic.IsBiddableBy(ctx, userId, detail.Bid); err != nil {
			FailResponse(c, err, nil)
			return
		}
		if resp.Claims, err = h.bidLogic.ActionableClaims(ctx, userId, id); err != nil {
			FailResponse(c, err, nil)
			return
		}
	}

	SuccessResponse(c, http.StatusOK, "获取出价成功", resp)
}

// MakeOffer 提高出资，只对差额扣款
func (h *BidHandler) MakeOffer(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req MakeOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	detail, err := h.bidLogic.GetBid(ctx, id)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	if detail.Bid.UserId != userId {
		ErrorResponse(c, http.StatusForbidden, "只能修改自己的出价")
		return
	}

	offer, err := h.bidLogic.MakeOffer(ctx, id, req.Amount)
	if err != nil {
		FailResponse(c, err, offer)
		return
	}

	SuccessResponse(c, http.StatusCreated, "扣款成功", offer)
}

// RetryOffer 重试失败的扣款
func (h *BidHandler) RetryOffer(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	offer, err := h.bidLogic.GetOffer(ctx, id)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	if offer.UserId != userId {
		ErrorResponse(c, http.StatusForbidden, "只能重试自己的扣款")
		return
	}

	offer, err = h.bidLogic.RetryOffer(ctx, id)
	if err != nil {
		FailResponse(c, err, offer)
		return
	}

	SuccessResponse(c, http.StatusOK, "扣款成功", offer)
}
