package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SimulationStartedData contains data for SimulationStarted events
type SimulationStartedData struct {
	RunID   string `json:"run_id"`
	Trials  int    `json:"trials"`
	Horizon int    `json:"horizon"`
	Seed    uint64 `json:"seed,omitempty"`
}

// EventType returns the event type for SimulationStartedData
func (d *SimulationStartedData) EventType() EventType {
	return SimulationStarted
}

// SimulationProgressData contains data for SimulationProgress events
type SimulationProgressData struct {
	RunID     string  `json:"run_id"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	MeanFinal float64 `json:"mean_final"`
	StdFinal  float64 `json:"std_final"`
}

// EventType returns the event type for SimulationProgressData
func (d *SimulationProgressData) EventType() EventType {
	return SimulationProgress
}

// SimulationCompletedData contains data for SimulationCompleted events
type SimulationCompletedData struct {
	RunID      string  `json:"run_id"`
	Completed  int     `json:"completed"`
	Stopped    bool    `json:"stopped"`
	MeanFinal  float64 `json:"mean_final"`
	DurationMs int64   `json:"duration_ms"`
}

// EventType returns the event type for SimulationCompletedData
func (d *SimulationCompletedData) EventType() EventType {
	return SimulationCompleted
}

// SimulationFailedData contains data for SimulationFailed events
type SimulationFailedData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// EventType returns the event type for SimulationFailedData
func (d *SimulationFailedData) EventType() EventType {
	return SimulationFailed
}

// RunStoredData contains data for RunStored events
type RunStoredData struct {
	RunID string `json:"run_id"`
}

// EventType returns the event type for RunStoredData
func (d *RunStoredData) EventType() EventType {
	return RunStored
}

// RunsPrunedData contains data for RunsPruned events
type RunsPrunedData struct {
	Deleted       int64 `json:"deleted"`
	RetentionDays int   `json:"retention_days"`
}

// EventType returns the event type for RunsPrunedData
func (d *RunsPrunedData) EventType() EventType {
	return RunsPruned
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
