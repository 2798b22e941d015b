package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestHandler() *Handler {
	log := zerolog.Nop()
	runner := simulation.NewBatchRunner(2, log)
	service := simulation.NewService(runner, nil, nil, nil, log)
	return NewHandler(service, Limits{MaxTrials: 1000, MaxHorizon: 50}, log)
}

func newTestRouter(h *Handler) chi.Router {
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	h.RegisterStreamRoutes(router)
	return router
}

type simulateEnvelope struct {
	Data   SimulateResponse                `json:"data"`
	Error  string                          `json:"error"`
	Fields []simulation.ConfigurationError `json:"fields"`
}

func postSimulation(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, simulateEnvelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/simulations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var envelope simulateEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestHandleSimulate_Defaults(t *testing.T) {
	router := newTestRouter(newTestHandler())

	w, resp := postSimulation(t, router, `{"seed": 42}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotEmpty(t, resp.Data.RunID)
	assert.Equal(t, uint64(42), resp.Data.Seed)
	assert.Equal(t, 100, resp.Data.Completed)
	assert.False(t, resp.Data.Stopped)
	assert.Len(t, resp.Data.Thresholds, len(simulation.DefaultThresholds()))
	assert.Len(t, resp.Data.Histogram.Counts, DefaultHistogramBins)
	assert.Empty(t, resp.Data.Trajectories)

	total := 0
	for _, c := range resp.Data.Histogram.Counts {
		total += c
	}
	assert.Equal(t, 100, total)
}

func TestHandleSimulate_CustomRequest(t *testing.T) {
	router := newTestRouter(newTestHandler())

	body := `{
		"initial": {"stocks": 100, "bonds": 100, "cash": 100},
		"distributions": {
			"stocks": {"kind": "uniform", "min": 0.1, "max": 0.1},
			"bonds": {"kind": "uniform", "min": 0.1, "max": 0.1},
			"cash": {"kind": "uniform", "min": 0.1, "max": 0.1}
		},
		"horizon": 2,
		"trials": 3,
		"thresholds": [363, 364],
		"histogram_bins": 4,
		"include_trajectories": true
	}`

	w, resp := postSimulation(t, router, body)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, resp.Data.Trajectories, 3)
	assert.InDelta(t, 363, resp.Data.Summary.Mean, 1e-9)
	assert.InDelta(t, 0.1, resp.Data.Summary.AnnualizedReturn.Value, 1e-12)
	require.Len(t, resp.Data.Thresholds, 2)
	assert.Equal(t, 363.0, resp.Data.Thresholds[0].Threshold)
	assert.Equal(t, 0.0, resp.Data.Thresholds[1].Probability)
	assert.Equal(t, []int{3}, resp.Data.Histogram.Counts)
}

func zeroReturnRequest() SimulateRequest {
	return SimulateRequest{
		SimulationConfig: simulation.SimulationConfig{
			Initial: simulation.Balances{Stocks: 250000, Bonds: 125000, Cash: 125000},
			Distributions: simulation.Distributions{
				Stocks: simulation.Normal(0, 0),
				Bonds:  simulation.Triangular(0, 0, 0),
				Cash:   simulation.Uniform(0, 0),
			},
			Horizon: 1,
			Trials:  1,
		},
		IncludeTrajectories: true,
	}
}

func TestHandleSimulate_ZeroReturnScenario(t *testing.T) {
	router := newTestRouter(newTestHandler())

	encoded, err := json.Marshal(zeroReturnRequest())
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{name: "encoded request", body: string(encoded)},
		{name: "parameters left out", body: `{
			"initial": {"stocks": 250000, "bonds": 125000, "cash": 125000},
			"distributions": {
				"stocks": {"kind": "normal"},
				"bonds": {"kind": "triangular"},
				"cash": {"kind": "uniform"}
			},
			"horizon": 1,
			"trials": 1,
			"include_trajectories": true
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := postSimulation(t, router, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			require.Len(t, resp.Data.Trajectories, 1)
			assert.Equal(t, simulation.Trajectory{500000, 500000}, resp.Data.Trajectories[0])
			assert.Equal(t, 500000.0, resp.Data.Summary.Mean)
			assert.Equal(t, simulation.DefinedMetric(0), resp.Data.Summary.AnnualizedReturn)
			assert.Equal(t, simulation.DefinedMetric(0), resp.Data.Summary.CoefficientOfVariation)
		})
	}
}

func TestHandleSimulate_PartialDistributionReplacesDefault(t *testing.T) {
	router := newTestRouter(newTestHandler())

	// A mode of 0 must not fall back to the default bond mode.
	body := `{
		"distributions": {"bonds": {"kind": "triangular", "max": 0.02}},
		"seed": 3,
		"trials": 5
	}`
	w, resp := postSimulation(t, router, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, resp.Data.Completed)
}

func TestHandleSimulate_InvalidConfiguration(t *testing.T) {
	router := newTestRouter(newTestHandler())

	w, resp := postSimulation(t, router, `{"trials": 0, "distributions": {"bonds": {"kind": "triangular", "min": 0, "mode": 1, "max": 0.5}}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	fields := make([]string, 0, len(resp.Fields))
	for _, f := range resp.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"trials", "distributions.bonds.mode"}, fields)
}

func TestHandleSimulate_Limits(t *testing.T) {
	router := newTestRouter(newTestHandler())

	w, resp := postSimulation(t, router, `{"trials": 5000, "horizon": 51}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "trials", resp.Fields[0].Field)
	assert.Equal(t, "horizon", resp.Fields[1].Field)
}

func TestHandleSimulate_MalformedBody(t *testing.T) {
	router := newTestRouter(newTestHandler())

	w, resp := postSimulation(t, router, `{"trials": "many"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", resp.Error)
}

func TestHandleGetDefaults(t *testing.T) {
	router := newTestRouter(newTestHandler())

	req := httptest.NewRequest(http.MethodGet, "/simulations/defaults", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Config        simulation.SimulationConfig `json:"config"`
			Thresholds    []float64                   `json:"thresholds"`
			HistogramBins int                         `json:"histogram_bins"`
			Limits        Limits                      `json:"limits"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, simulation.DefaultConfig(), resp.Data.Config)
	assert.Equal(t, simulation.DefaultThresholds(), resp.Data.Thresholds)
	assert.Equal(t, DefaultHistogramBins, resp.Data.HistogramBins)
	assert.Equal(t, 1000, resp.Data.Limits.MaxTrials)
}

func dialLive(t *testing.T, router http.Handler) (*websocket.Conn, context.Context) {
	t.Helper()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/simulations/live"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn, ctx
}

func readUntilFinal(t *testing.T, ctx context.Context, conn *websocket.Conn) (LiveMessage, []LiveMessage) {
	t.Helper()

	var progress []LiveMessage
	for {
		var msg LiveMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if msg.Type != "progress" {
			return msg, progress
		}
		progress = append(progress, msg)
	}
}

func TestHandleLive_StreamsProgressAndResult(t *testing.T) {
	conn, ctx := dialLive(t, newTestRouter(newTestHandler()))

	require.NoError(t, wsjson.Write(ctx, conn, map[string]interface{}{"seed": 9, "trials": 200}))

	final, progress := readUntilFinal(t, ctx, conn)
	require.Equal(t, "result", final.Type)
	require.NotNil(t, final.Result)
	assert.Equal(t, 200, final.Result.Completed)
	assert.Equal(t, uint64(9), final.Result.Seed)

	// The last trial is always reported.
	require.NotEmpty(t, progress)
	last := progress[len(progress)-1].Progress
	require.NotNil(t, last)
	assert.Equal(t, 200, last.Completed)
	assert.Equal(t, 200, last.Total)
}

func TestHandleLive_InvalidConfiguration(t *testing.T) {
	conn, ctx := dialLive(t, newTestRouter(newTestHandler()))

	require.NoError(t, wsjson.Write(ctx, conn, map[string]interface{}{"horizon": -1}))

	final, _ := readUntilFinal(t, ctx, conn)
	assert.Equal(t, "error", final.Type)
	require.Len(t, final.Fields, 1)
	assert.Equal(t, "horizon", final.Fields[0].Field)
}

func TestHandleLive_Stop(t *testing.T) {
	conn, ctx := dialLive(t, newTestRouter(newTestHandler()))

	require.NoError(t, wsjson.Write(ctx, conn, map[string]interface{}{"seed": 1, "trials": 1000, "horizon": 50}))
	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"type": "stop"}))

	final, _ := readUntilFinal(t, ctx, conn)
	require.Equal(t, "result", final.Type)
	if final.Result.Stopped {
		assert.Less(t, final.Result.Completed, 1000)
	} else {
		assert.Equal(t, 1000, final.Result.Completed)
	}
}

func TestHandleLive_ZeroReturnScenario(t *testing.T) {
	conn, ctx := dialLive(t, newTestRouter(newTestHandler()))

	require.NoError(t, wsjson.Write(ctx, conn, zeroReturnRequest()))

	final, _ := readUntilFinal(t, ctx, conn)
	require.Equal(t, "result", final.Type, final.Error)
	require.Len(t, final.Result.Trajectories, 1)
	assert.Equal(t, simulation.Trajectory{500000, 500000}, final.Result.Trajectories[0])
}
