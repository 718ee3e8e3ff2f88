package handler

import (
	"net/http"

	"github.com/blues/bounty/internal/logic"
	"github.com/gin-gonic/gin"
)

type ClaimHandler struct {
	claimLogic *logic.ClaimLogic
}

func NewClaimHandler(claimLogic *logic.ClaimLogic) *ClaimHandler {
	return &ClaimHandler{claimLogic: claimLogic}
}

// SubmitClaim 提交认领
func (h *ClaimHandler) SubmitClaim(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}

	var req SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	claim, err := h.claimLogic.Submit(c.Request.Context(), userId, req.Url, req.Evidence)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}

	SuccessResponse(c, http.StatusCreated, "认领提交成功", claim)
}

// GetClaim 获取认领详情
func (h *ClaimHandler) GetClaim(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	detail, err := h.claimLogic.GetClaim(ctx, id)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}

	resp := ClaimDetailResponse{ClaimDetail: detail}
	if userId := c.GetHeader(UserHeader); userId != "" {
		if resp.NeedsVote, err = h.claimLogic.NeedsVoteFrom(ctx, id, userId); err != nil {
			FailResponse(c, err, nil)
			return
		}
	}

	SuccessResponse(c, http.StatusOK, "获取认领成功", resp)
}

// Vote 对认领投票
func (h *ClaimHandler) Vote(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.claimLogic.RecordVote(c.Request.Context(), userId, id, *req.Approved)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}

	SuccessResponse(c, http.StatusCreated, "投票成功", result)
}

// RequestPayout 认领人申请打款
func (h *ClaimHandler) RequestPayout(c *gin.Context) {
	userId, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	detail, err := h.claimLogic.GetClaim(ctx, id)
	if err != nil {
		FailResponse(c, err, nil)
		return
	}
	if detail.Claim.UserId != userId {
		ErrorResponse(c, http.StatusForbidden, "只有认领人可以申请打款")
		return
	}

	payout, err := h.claimLogic.RequestPayout(ctx, id)
	if err != nil {
		FailResponse(c, err, payout)
		return
	}

	SuccessResponse(c, http.StatusOK, "打款成功", payout)
}
