package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/montecarlo/internal/modules/simulation"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	liveWriteWait        = 10 * time.Second
	liveProgressInterval = 100 * time.Millisecond
)

// LiveMessage is one frame sent to a live session client.
type LiveMessage struct {
	Type     string                          `json:"type"` // progress, result or error
	Progress *simulation.Progress            `json:"progress,omitempty"`
	Result   *SimulateResponse               `json:"result,omitempty"`
	Error    string                          `json:"error,omitempty"`
	Fields   []simulation.ConfigurationError `json:"fields,omitempty"`
}

// liveCommand is read from the client after the request; only "stop" is understood.
type liveCommand struct {
	Type string `json:"type"`
}

// HandleLive handles GET /api/v1/simulations/live (WebSocket).
//
// The client sends a SimulateRequest, then receives throttled progress frames and a final
// result frame. Sending {"type":"stop"} or disconnecting ends the batch early.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept live session")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	ctx := r.Context()

	req := defaultRequest()
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		h.log.Debug().Err(err).Msg("Live session closed before request")
		return
	}

	if err := h.normalize(&req); err != nil {
		h.writeLive(ctx, conn, configErrorMessage(err))
		conn.Close(websocket.StatusPolicyViolation, "invalid configuration")
		return
	}

	var stop atomic.Bool
	go func() {
		// Any read failure means the client is gone.
		defer stop.Store(true)
		for {
			var cmd liveCommand
			if err := wsjson.Read(ctx, conn, &cmd); err != nil {
				return
			}
			if cmd.Type == "stop" {
				h.log.Debug().Msg("Live session requested stop")
				return
			}
		}
	}()

	var (
		mu         sync.Mutex
		lastReport time.Time
	)
	onProgress := func(p simulation.Progress) {
		mu.Lock()
		now := time.Now()
		if now.Sub(lastReport) < liveProgressInterval && p.Completed != p.Total {
			mu.Unlock()
			return
		}
		lastReport = now
		mu.Unlock()

		if err := h.writeLive(ctx, conn, LiveMessage{Type: "progress", Progress: &p}); err != nil {
			stop.Store(true)
		}
	}

	run, err := h.service.Simulate(ctx, simulation.Request{
		Config: req.SimulationConfig,
		Options: simulation.RunOptions{
			Mode:       simulation.ModeStreaming,
			Thresholds: req.Thresholds,
			OnProgress: onProgress,
			ShouldStop: stop.Load,
		},
		Archive: req.Archive,
	})
	if err != nil {
		h.writeLive(ctx, conn, configErrorMessage(err))
		conn.Close(websocket.StatusPolicyViolation, "invalid configuration")
		return
	}

	resp := buildResponse(run, req)
	if err := h.writeLive(ctx, conn, LiveMessage{Type: "result", Result: &resp}); err != nil {
		return
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) writeLive(ctx context.Context, conn *websocket.Conn, msg LiveMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, liveWriteWait)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		h.log.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write live message")
		return err
	}
	return nil
}

func configErrorMessage(err error) LiveMessage {
	msg := LiveMessage{Type: "error", Error: err.Error()}
	var cfgErrs simulation.ConfigurationErrors
	if errors.As(err, &cfgErrs) {
		msg.Fields = cfgErrs
	}
	return msg
}
