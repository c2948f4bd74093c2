package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ratecard/internal/clock"
	"github.com/smallbiznis/ratecard/internal/config"
	lifecycleservice "github.com/smallbiznis/ratecard/internal/lifecycle/service"
	"github.com/smallbiznis/ratecard/internal/observability"
	obsmetrics "github.com/smallbiznis/ratecard/internal/observability/metrics"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	"github.com/smallbiznis/ratecard/internal/ratetable/repository"
	ratetableservice "github.com/smallbiznis/ratecard/internal/ratetable/service"
	versionchainservice "github.com/smallbiznis/ratecard/internal/versionchain/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine, snowflake.ID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ratetabledomain.RateTable{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	defaults := config.NewStaticPricingDefaults(config.DefaultPricingDefaults())
	metrics := obsmetrics.New()

	tables := ratetableservice.New(ratetableservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: repo,
	})
	lifecycle := lifecycleservice.New(lifecycleservice.Params{
		DB: db, Log: zap.NewNop(), Clock: fake, Repo: repo, Defaults: defaults,
	})
	versions := versionchainservice.New(versionchainservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: repo,
	})

	orgID := node.Generate()
	engine := NewEngine(observability.Config{Environment: "test"}, metrics)

	srv := NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{HTTPPort: "0"},
		Log:          zap.NewNop(),
		Metrics:      metrics,
		Defaults:     defaults,
		RateTableSvc: tables,
		LifecycleSvc: lifecycle,
		VersionSvc:   versions,
	})
	srv.RegisterAPIRoutes()
	return srv, engine, orgID
}

func doJSON(t *testing.T, engine *gin.Engine, orgID snowflake.ID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(orgHeader, orgID.String())

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func createTableRequest() map[string]any {
	return map[string]any{
		"rate_type":      "storage",
		"name":           "Storage rates",
		"currency":       "USD",
		"effective_from": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"unit_rates": map[string]string{
			"standard_box": "4.50",
		},
		"urgency_multipliers": map[string]string{
			"STANDARD": "1.0",
			"RUSH":     "2.0",
		},
		"volume_tiers": []map[string]any{
			{"threshold": 50, "discount_percent": "10"},
		},
		"handling_fee":   "5",
		"minimum_charge": "25",
	}
}

func TestCreateActivateAndQuote(t *testing.T) {
	_, engine, orgID := newTestServer(t)

	rec := doJSON(t, engine, orgID, http.MethodPost, "/v1/rate-tables", createTableRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created ratetabledomain.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, engine, orgID, http.MethodPost, fmt.Sprintf("/v1/rate-tables/%s/activate", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, engine, orgID, http.MethodPost, "/v1/quotes", map[string]any{
		"rate_type": "storage",
		"quantity":  60,
		"category":  "standard_box",
		"urgency":   "RUSH",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var quote struct {
		RateTableID string `json:"rate_table_id"`
		FinalTotal  string `json:"final_total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, created.ID, quote.RateTableID)

	total, err := decimal.NewFromString(quote.FinalTotal)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(491)), "final total = %s", total)
}

func TestQuoteWithoutActiveSchedule(t *testing.T) {
	_, engine, orgID := newTestServer(t)

	rec := doJSON(t, engine, orgID, http.MethodPost, "/v1/quotes", map[string]any{
		"rate_type": "storage",
		"quantity":  1,
		"category":  "standard_box",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	var payload errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "no_active_rate", payload.Error.Code)
}

func TestActivateConflictStatus(t *testing.T) {
	_, engine, orgID := newTestServer(t)

	rec := doJSON(t, engine, orgID, http.MethodPost, "/v1/rate-tables", createTableRequest())
	require.Equal(t, http.StatusCreated, rec.Code)
	var first ratetabledomain.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = doJSON(t, engine, orgID, http.MethodPost, fmt.Sprintf("/v1/rate-tables/%s/activate", first.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Activating the same schedule twice is an illegal transition.
	rec = doJSON(t, engine, orgID, http.MethodPost, fmt.Sprintf("/v1/rate-tables/%s/activate", first.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestMissingOrganizationHeader(t *testing.T) {
	_, engine, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/rate-tables?rate_type=storage", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func TestUnknownScheduleReturnsNotFound(t *testing.T) {
	_, engine, orgID := newTestServer(t)

	rec := doJSON(t, engine, orgID, http.MethodGet, "/v1/rate-tables/999999999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestDeriveVersionEndpoint(t *testing.T) {
	_, engine, orgID := newTestServer(t)

	rec := doJSON(t, engine, orgID, http.MethodPost, "/v1/rate-tables", createTableRequest())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ratetabledomain.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, engine, orgID, http.MethodPost, fmt.Sprintf("/v1/rate-tables/%s/versions", created.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var derived ratetabledomain.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &derived))
	assert.Equal(t, "1.1", derived.VersionLabel)
	require.NotNil(t, derived.PreviousVersionID)
	assert.Equal(t, created.ID, *derived.PreviousVersionID)
}
