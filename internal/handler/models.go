package handler

import (
	"github.com/blues/bounty/internal/logic"
	"github.com/shopspring/decimal"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 出价相关请求模型

// PlaceBidRequest 创建或更新出价
type PlaceBidRequest struct {
	Url   string          `json:"url" binding:"required"`
	Ask   decimal.Decimal `json:"ask"`
	Offer decimal.Decimal `json:"offer"`
}

// MakeOfferRequest 提高出资
type MakeOfferRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// 认领相关请求模型

// SubmitClaimRequest 提交认领
type SubmitClaimRequest struct {
	Url      string `json:"url" binding:"required"`
	Evidence string `json:"evidence"`
}

// VoteRequest 投票
type VoteRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// BidDetailResponse 出价详情响应
type BidDetailResponse struct {
	*logic.BidDetail
	Biddable bool                   `json:"biddable"`
	Claims   *logic.ActionableClaims `json:"claims,omitempty"`
}

// ClaimDetailResponse 认领详情响应
type ClaimDetailResponse struct {
	*logic.ClaimDetail
	NeedsVote bool `json:"needs_vote"`
}
