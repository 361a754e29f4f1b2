package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/puffless/engage/internal/auth"
	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/models"
	"github.com/puffless/engage/internal/profile"
	"github.com/puffless/engage/internal/realtime"
	"github.com/puffless/engage/internal/services"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/internal/triggers"
)

func buildTestRouter(t *testing.T) (*gin.Engine, *iauth.PairingService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.StateEntry{},
		&models.ScheduledNotification{},
		&models.NotificationRecord{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	st := store.NewDatabaseStore(db)
	cat := catalog.New()
	gw, err := gateway.New(db, st)
	require.NoError(t, err)
	_, err = gw.RequestPermission(context.Background(), true)
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "engage", TokenTTL: time.Hour})
	require.NoError(t, err)
	pairing, err := iauth.NewPairingService(st, jwtSvc)
	require.NoError(t, err)

	inactivity, err := triggers.NewInactivity(st, gw, cat)
	require.NoError(t, err)
	percent, err := triggers.NewPercentMilestone(st, gw, cat)
	require.NoError(t, err)
	money, err := triggers.NewMoneyMilestone(st, gw, cat)
	require.NoError(t, err)
	firstDay, err := triggers.NewFirstPuffFreeDay(st, gw, cat)
	require.NoError(t, err)
	daily, err := triggers.NewDailyAchievement(st, gw, cat)
	require.NoError(t, err)
	weekly, err := triggers.NewWeeklySummary(st, gw, cat)
	require.NoError(t, err)
	accountReminder, err := triggers.NewVerificationReminder(st, gw, cat)
	require.NoError(t, err)
	emailChangeReminder, err := triggers.NewEmailChangeReminder(st, gw, cat)
	require.NoError(t, err)

	activity, err := services.NewActivityService(st, inactivity)
	require.NoError(t, err)
	goal, err := services.NewGoalCountdownService(st, gw, cat)
	require.NoError(t, err)
	verification, err := services.NewVerificationService(st, accountReminder, emailChangeReminder)
	require.NoError(t, err)
	engagement, err := services.NewEngagementService(activity, percent, money, firstDay, goal)
	require.NoError(t, err)
	feed, err := services.NewFeedService(db, nil)
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{
		DB:      db,
		JWT:     jwtSvc,
		Pairing: pairing,
		Gateway: gw,
		Hub:     realtime.NewHub(),
		Profiles: &profile.StaticProvider{Profile: &profile.Profile{
			Email:         "user@example.com",
			EmailVerified: true,
		}},
		Engagement:   engagement,
		Verification: verification,
		Goal:         goal,
		Feed:         feed,
		Daily:        daily,
		Weekly:       weekly,
	})
	require.NoError(t, err)

	return router, pairing
}

func pairToken(t *testing.T, router *gin.Engine, pairing *iauth.PairingService) string {
	t.Helper()

	require.NoError(t, pairing.SetPairingCode(context.Background(), "483920"))

	body, _ := json.Marshal(gin.H{"code": "483920", "device_name": "test"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/pair", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Data.Token)
	return payload.Data.Token
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _ := buildTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Protected endpoints reject missing tokens.
	for _, path := range []string{"/api/verification", "/api/notifications"} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouterPairThenUseToken(t *testing.T) {
	router, pairing := buildTestRouter(t)
	token := pairToken(t, router, pairing)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/verification", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterCheckWithoutPendingVerification(t *testing.T) {
	router, pairing := buildTestRouter(t)
	token := pairToken(t, router, pairing)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/verification/check", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "NO_PENDING_VERIFICATION")
}

func TestRouterWrongPairingCode(t *testing.T) {
	router, pairing := buildTestRouter(t)
	require.NoError(t, pairing.SetPairingCode(context.Background(), "483920"))

	body, _ := json.Marshal(gin.H{"code": "000000"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/pair", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterPuffEventFlow(t *testing.T) {
	router, pairing := buildTestRouter(t)
	token := pairToken(t, router, pairing)

	body, _ := json.Marshal(gin.H{
		"plan_percent":  52,
		"money_saved":   150,
		"currency":      "PLN",
		"puff_free_day": true,
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/events/puff", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Data services.EngagementResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, []float64{10, 25, 50}, payload.Data.PercentAnnounced)
	require.True(t, payload.Data.FirstDay)

	// The outstanding schedule is visible over the API.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/notifications/scheduled", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := buildTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
