package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nugl/affiliate-engine/internal/models"
	"github.com/nugl/affiliate-engine/internal/registry"
	"github.com/nugl/affiliate-engine/internal/repository"
	"github.com/nugl/affiliate-engine/internal/services"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Click{}, &models.Conversion{}, &models.AttributionLink{},
		&models.PartnerSummary{}, &models.ReferralCode{}, &models.Referral{},
	))

	reg, err := registry.New([]registry.PartnerRule{{
		PartnerID:              "seedsman",
		Name:                   "Seedsman",
		Type:                   "seed_wholesaler",
		CommissionType:         registry.CommissionPercentage,
		CommissionValue:        0.10,
		AttributionWindowHours: 24,
	}})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clickRepo := repository.NewClickRepository(db)
	conversionRepo := repository.NewConversionRepository(db)
	aggregator := services.NewEarningsAggregator(db, reg, logger)

	router := gin.New()
	SetupRoutes(router, &Handlers{
		Recorder:      services.NewClickRecorder(clickRepo, reg, logger),
		Matcher:       services.NewConversionMatcher(conversionRepo, clickRepo, reg, logger, nil),
		Dashboard:     services.NewDashboardQueryService(db, aggregator, reg, logger),
		Referrals:     services.NewReferralService(db, logger, 10.0),
		Logger:        logger,
		ActivityLimit: 10,
	})
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	parsed := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupTestRouter(t)
	w, body := doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestTrackClick(t *testing.T) {
	router, db := setupTestRouter(t)

	t.Run("records a click", func(t *testing.T) {
		w, body := doJSON(t, router, "POST", "/api/v1/affiliate/track-click", gin.H{
			"partner_id":  "seedsman",
			"source_page": "news",
			"visitor_id":  "v1",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["click_id"])

		var count int64
		db.Model(&models.Click{}).Count(&count)
		assert.EqualValues(t, 1, count)
	})

	t.Run("visitor id from header", func(t *testing.T) {
		raw, _ := json.Marshal(gin.H{"partner_id": "seedsman", "source_page": "news"})
		req, _ := http.NewRequest("POST", "/api/v1/affiliate/track-click", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Visitor-ID", "header-visitor")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing visitor id is rejected", func(t *testing.T) {
		w, _ := doJSON(t, router, "POST", "/api/v1/affiliate/track-click", gin.H{
			"partner_id": "seedsman",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing partner id is rejected", func(t *testing.T) {
		w, _ := doJSON(t, router, "POST", "/api/v1/affiliate/track-click", gin.H{
			"visitor_id": "v1",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRecordConversion(t *testing.T) {
	router, db := setupTestRouter(t)

	t.Run("attributes when a click exists", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Click{
			ID: "c1", PartnerID: "seedsman", PartnerName: "Seedsman",
			VisitorID: "v1", ClickedAt: time.Now().UTC().Add(-time.Hour),
		}).Error)

		w, body := doJSON(t, router, "POST", "/api/v1/affiliate/conversions", gin.H{
			"partner_id": "seedsman",
			"visitor_id": "v1",
			"amount":     100,
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["attributed"])
		assert.Equal(t, 10.0, body["commission"])
	})

	t.Run("unattributed is still a success", func(t *testing.T) {
		w, body := doJSON(t, router, "POST", "/api/v1/affiliate/conversions", gin.H{
			"partner_id": "seedsman",
			"visitor_id": "never-clicked",
			"amount":     50,
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, body["attributed"])
		assert.Equal(t, models.ReasonNoClickInWindow, body["reason"])

		var count int64
		db.Model(&models.Conversion{}).Count(&count)
		assert.EqualValues(t, 2, count)
	})

	t.Run("bad body is rejected", func(t *testing.T) {
		w, _ := doJSON(t, router, "POST", "/api/v1/affiliate/conversions", gin.H{
			"partner_id": "seedsman",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDashboardEndpoints(t *testing.T) {
	router, db := setupTestRouter(t)

	require.NoError(t, db.Create(&models.Click{
		ID: "c1", PartnerID: "seedsman", PartnerName: "Seedsman",
		SourcePage: "news", VisitorID: "v1", ClickedAt: time.Now().UTC().Add(-time.Hour),
	}).Error)

	t.Run("dashboard shape", func(t *testing.T) {
		w, body := doJSON(t, router, "GET", "/api/v1/affiliate/dashboard", nil)
		require.Equal(t, http.StatusOK, w.Code)

		summary, ok := body["summary"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, 1.0, summary["total_clicks"])
		assert.Equal(t, 0.0, summary["conversion_rate"])
		assert.Contains(t, body, "partners")

		activity, ok := body["recent_activity"].([]interface{})
		require.True(t, ok)
		require.Len(t, activity, 1)
		entry := activity[0].(map[string]interface{})
		assert.Equal(t, "Seedsman", entry["partner_name"])
		assert.Equal(t, false, entry["converted"])
	})

	t.Run("visitor stats", func(t *testing.T) {
		w, body := doJSON(t, router, "GET", "/api/v1/affiliate/stats?user_id=v1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, body["total_clicks"])
	})

	t.Run("visitor stats requires user_id", func(t *testing.T) {
		w, _ := doJSON(t, router, "GET", "/api/v1/affiliate/stats", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReferralEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	w, body := doJSON(t, router, "GET", "/api/v1/referrals/my-code?user_id=referrer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	code, _ := body["referral_code"].(string)
	require.Len(t, code, 8)

	t.Run("apply and complete", func(t *testing.T) {
		w, body := doJSON(t, router, "POST", "/api/v1/referrals/apply", gin.H{
			"user_id":       "new-user",
			"referral_code": code,
		})
		require.Equal(t, http.StatusOK, w.Code)
		referralID, _ := body["referral_id"].(string)
		require.NotEmpty(t, referralID)

		w, body = doJSON(t, router, "POST", "/api/v1/referrals/"+referralID+"/complete", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 10.0, body["reward_amount"])

		w, body = doJSON(t, router, "GET", "/api/v1/referrals/stats?user_id=referrer", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, body["total_referrals"])
		assert.Equal(t, 10.0, body["total_earned"])
	})

	t.Run("bad code", func(t *testing.T) {
		w, _ := doJSON(t, router, "POST", "/api/v1/referrals/apply", gin.H{
			"user_id":       "someone",
			"referral_code": "WRONG123",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("complete unknown referral", func(t *testing.T) {
		w, _ := doJSON(t, router, "POST", "/api/v1/referrals/nope/complete", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
