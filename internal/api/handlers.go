package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/nugl/affiliate-engine/internal/errors"
	"github.com/nugl/affiliate-engine/internal/models"
	"github.com/nugl/affiliate-engine/internal/services"
)

// Handlers bundles the services the HTTP layer needs.
type Handlers struct {
	Recorder  *services.ClickRecorder
	Matcher   *services.ConversionMatcher
	Dashboard *services.DashboardQueryService
	Referrals *services.ReferralService
	Logger    *slog.Logger

	// ActivityLimit caps the recent-activity feed on the dashboard.
	ActivityLimit int
}

// SetupRoutes configures all Gin routes.
func SetupRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/health", HealthCheckHandler)

	api := router.Group("/api/v1")
	{
		affiliate := api.Group("/affiliate")
		{
			affiliate.POST("/track-click", TrackClickHandler(h))
			affiliate.POST("/conversions", RecordConversionHandler(h))
			affiliate.GET("/dashboard", DashboardHandler(h))
			affiliate.GET("/stats", VisitorStatsHandler(h))
		}

		referrals := api.Group("/referrals")
		{
			referrals.GET("/my-code", MyReferralCodeHandler(h))
			referrals.POST("/apply", ApplyReferralHandler(h))
			referrals.POST("/:id/complete", CompleteReferralHandler(h))
			referrals.GET("/stats", ReferralStatsHandler(h))
		}
	}
}

// HealthCheckHandler handles /health for load balancers and monitors.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TrackClickRequest is the body of POST /affiliate/track-click. The
// visitor id may instead arrive in the X-Visitor-ID header.
type TrackClickRequest struct {
	PartnerID   string `json:"partner_id" binding:"required"`
	PartnerName string `json:"partner_name"`
	SourcePage  string `json:"source_page"`
	ContentRef  string `json:"content_ref"`
	VisitorID   string `json:"visitor_id"`
}

// TrackClickHandler records an outbound affiliate click. Callers treat
// this as fire-and-forget; the response exists mostly for debugging.
func TrackClickHandler(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TrackClickRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		visitorID := req.VisitorID
		if visitorID == "" {
			visitorID = c.GetHeader("X-Visitor-ID")
		}

		click, err := h.Recorder.Record(models.ClickInput{
			PartnerID:   req.PartnerID,
			PartnerName: req.PartnerName,
			SourcePage:  req.SourcePage,
			ContentRef:  req.ContentRef,
			VisitorID:   visitorID,
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrMissingVisitor) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "visitor_id is required"})
				return
			}
			h.Logger.Error("failed to record click", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to record click, retry later"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "click_id": click.ID})
	}
}

// RecordConversionRequest is the body of POST /affiliate/conversions,
// the inbound webhook partners (or admins) report sales through.
type RecordConversionRequest struct {
	PartnerID string  `json:"partner_id" binding:"required"`
	VisitorID string  `json:"visitor_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"min=0"`
}

// RecordConversionHandler stores a conversion and runs attribution.
// Unattributed outcomes are successes with a reason, not errors: the
// conversion is kept either way.
func RecordConversionHandler(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecordConversionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		result, err := h.Matcher.Match(models.ConversionInput{
			PartnerID: req.PartnerID,
			VisitorID: req.VisitorID,
			Amount:    req.Amount,
		})
		if err != nil {
			h.Logger.Error("failed to match conversion", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Conversion processing failed, retry later"})
			return
		}

		resp := gin.H{
			"success":       true,
			"conversion_id": result.Conversion.ID,
			"attributed":    result.Attributed(),
		}
		if result.Attributed() {
			resp["click_id"] = result.Link.ClickID
			resp["commission"] = result.Link.Commission
		} else {
			resp["reason"] = result.Reason
		}
		c.JSON(http.StatusOK, resp)
	}
}

// DashboardHandler serves the aggregate affiliate dashboard.
func DashboardHandler(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		dashboard, err := h.Dashboard.GetDashboard(h.ActivityLimit)
		if err != nil {
			h.Logger.Error("failed to build dashboard", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, dashboard)
	}
}

// VisitorStatsHandler serves per-user affiliate stats over a trailing
// window (?user_id=...&days=30).
func VisitorStatsHandler(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

		stats, err := h.Dashboard.GetSummary(userID, days)
		if err != nil {
			h.Logger.Error("failed to build visitor stats", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// MyReferralCodeHandler returns (creating if needed) the user's code.
func MyReferralCodeHandler(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		code, err := h.Referrals.GetOrCreateCode(userID)
		if err != nil {
			h.Logger.Error("failed to get referral code", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"referral_code": code.Code})
	}
}

// ApplyReferralRequest is the body of POST /referrals/apply.
type ApplyReferralRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	ReferralCode string `json:"referral_code" binding:"required"`
}

// ApplyReferralHandler records a signup under someone's referral code.
func ApplyReferralHandler(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ApplyReferralRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		referral, err := h.Referrals.Apply(req.UserID, req.ReferralCode)
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidReferralCode) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid referral code"})
				return
			}
			h.Logger.Error("failed to apply referral code", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "referral_id": referral.ID})
	}
}

// CompleteReferralHandler marks a referral completed and credits the
// flat reward.
func CompleteReferralHandler(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		referral, err := h.Referrals.Complete(c.Param("id"))
		if err != nil {
			if errors.Is(err, apperrors.ErrReferralNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Referral not found"})
				return
			}
			h.Logger.Error("failed to complete referral", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"referral_id":   referral.ID,
			"reward_amount": referral.RewardAmount,
		})
	}
}

// ReferralStatsHandler serves the user's referral totals.
func ReferralStatsHandler(h *Handlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		stats, err := h.Referrals.Stats(userID)
		if err != nil {
			h.Logger.Error("failed to build referral stats", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
