package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/engine"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	eng := engine.New(engine.Config{
		OrgID:          "org-test",
		DefaultPosture: policy.PostureBase,
		OrgTokens: map[string]any{
			policy.KeyListCommissionPct:               0.06,
			policy.KeyConcessionsPct:                  0.01,
			policy.KeySellClosePct:                    0.01,
			policy.KeyCarryMonthsFormula:              "(DOM+35)/30",
			policy.KeyFloorInvestorDiscountP20Zip:     20.0,
			policy.KeyFloorInvestorDiscountTypicalZip: 12.0,
			policy.KeyFloorPayoffMinRetainedEquityPct: 5.0,
		},
	})
	return newRouter(eng, []string{"*"})
}

func TestServe_Health(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_Underwrite(t *testing.T) {
	router := testRouter(t)

	body := `{
		"deal_id": "deal-1",
		"posture": "base",
		"deal": {
			"market": {"arv": 300000, "aiv": 250000, "dom_zip": 40, "moi_zip": 5, "zip_percentile": 50},
			"debt": {"payoff": 150000},
			"costs": {"repairs_base": 0},
			"status": {"insurability": "bindable"}
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/underwrite", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Result struct {
			Outputs struct {
				WorkflowState string   `json:"workflow_state"`
				PrimaryOffer  *float64 `json:"primary_offer"`
			} `json:"outputs"`
		} `json:"result"`
		Run struct {
			InputHash string `json:"input_hash"`
		} `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "ReadyForOffer", res.Result.Outputs.WorkflowState)
	require.NotNil(t, res.Result.Outputs.PrimaryOffer)
	assert.Equal(t, 220000.0, *res.Result.Outputs.PrimaryOffer)
	assert.NotEmpty(t, res.Run.InputHash)
}

func TestServe_Underwrite_MissingDeal(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/underwrite", strings.NewReader(`{"posture":"base"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "deal is required")
}

func TestServe_Underwrite_UnknownPosture(t *testing.T) {
	router := testRouter(t)

	body := `{"posture": "reckless", "deal": {"market": {"arv": 300000}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/underwrite", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServe_Underwrite_SaveWithoutStore(t *testing.T) {
	router := testRouter(t)

	body := `{"save": true, "deal": {"market": {"arv": 300000}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/underwrite", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "no store configured")
}

func TestServe_DoubleClose(t *testing.T) {
	router := testRouter(t)

	body := `{
		"ab_price": 100000,
		"bc_price": 130000,
		"county": "OTHER",
		"property_type": "SFR"
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/double-close", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		SideAB struct {
			DeedStamps float64 `json:"deed_stamps"`
		} `json:"side_ab"`
		AssignmentFee float64 `json:"assignment_fee"`
		Comparison    string  `json:"comparison"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 700.0, res.SideAB.DeedStamps)
	assert.Equal(t, 30000.0, res.AssignmentFee)
	assert.NotEmpty(t, res.Comparison)
}

func TestServe_DoubleClose_BadCounty(t *testing.T) {
	router := testRouter(t)

	body := `{"ab_price": 100000, "bc_price": 130000, "county": "BROWARD", "property_type": "SFR"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/double-close", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
