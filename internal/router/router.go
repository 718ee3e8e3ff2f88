package router

import (
	"github.com/blues/bounty/internal/handler"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Bid   *handler.BidHandler
	Claim *handler.ClaimHandler
	Fee   *handler.FeeHandler
}

func Setup(h Handlers) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "bounty-service",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		bids := v1.Group("/bids")
		{
			bids.POST("", h.Bid.PlaceBid)
			bids.GET("/:id", h.Bid.GetBid)
			bids.POST("/:id/offers", h.Bid.MakeOffer)
		}
		v1.POST("/offers/:id/retry", h.Bid.RetryOffer)

		fees := v1.Group("/fees")
		{
			fees.GET("/charge", h.Fee.ChargeQuote)
			fees.GET("/payout", h.Fee.PayoutQuote)
		}

		claims := v1.Group("/claims")
		{
			claims.POST("", h.Claim.SubmitClaim)
			claims.GET("/:id", h.Claim.GetClaim)
			claims.POST("/:id/votes", h.Claim.Vote)
			claims.POST("/:id/payout", h.Claim.RequestPayout)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+handler.UserHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
