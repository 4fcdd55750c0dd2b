package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ArtifactRefreshStartedData is emitted when a production run begins.
type ArtifactRefreshStartedData struct {
	Kind    string `json:"kind"`
	Trigger string `json:"trigger"` // miss, force, schedule, manual
}

func (d *ArtifactRefreshStartedData) EventType() EventType { return ArtifactRefreshStarted }

// ArtifactRefreshedData is emitted after a production run persisted a payload.
type ArtifactRefreshedData struct {
	Kind       string  `json:"kind"`
	Source     string  `json:"source"`
	DurationMs float64 `json:"duration_ms"`
}

func (d *ArtifactRefreshedData) EventType() EventType { return ArtifactRefreshed }

// ArtifactRefreshFailedData is emitted when a run ends in the Failed state.
type ArtifactRefreshFailedData struct {
	Kind  string `json:"kind"`
	State string `json:"state"`
	Error string `json:"error"`
}

func (d *ArtifactRefreshFailedData) EventType() EventType { return ArtifactRefreshFailed }

// PriceBarMergedData is emitted after a quote was merged into a daily bar.
type PriceBarMergedData struct {
	Instrument string  `json:"instrument"`
	Date       string  `json:"date"`
	Close      float64 `json:"close"`
	Change     float64 `json:"change_percent"`
	Source     string  `json:"source"`
}

func (d *PriceBarMergedData) EventType() EventType { return PriceBarMerged }

// NewsIngestedData is emitted after a news crawl.
type NewsIngestedData struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
}

func (d *NewsIngestedData) EventType() EventType { return NewsIngested }

// CacheClearedData is emitted by the admin clear endpoints.
type CacheClearedData struct {
	Key string `json:"key"` // empty when everything was cleared
}

func (d *CacheClearedData) EventType() EventType { return CacheCleared }

// JobSkippedData is emitted when a scheduled job did not run.
type JobSkippedData struct {
	Job    string `json:"job"`
	Reason string `json:"reason"`
}

func (d *JobSkippedData) EventType() EventType { return JobSkipped }

// ErrorData contains data for ErrorOccurred events
type ErrorData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (d *ErrorData) EventType() EventType { return ErrorOccurred }
