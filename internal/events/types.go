// Package events provides event management functionality.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	SimulationStarted   EventType = "SIMULATION_STARTED"
	SimulationProgress  EventType = "SIMULATION_PROGRESS"
	SimulationCompleted EventType = "SIMULATION_COMPLETED"
	SimulationFailed    EventType = "SIMULATION_FAILED"
	RunStored           EventType = "RUN_STORED"
	RunsPruned          EventType = "RUNS_PRUNED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type a stream client can subscribe to.
var AllEventTypes = []EventType{
	SimulationStarted,
	SimulationProgress,
	SimulationCompleted,
	SimulationFailed,
	RunStored,
	RunsPruned,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
