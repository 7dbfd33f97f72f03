package heroku

import (
	"time"
)

type BuildStatus string

const (
	BuildPending   BuildStatus = "pending"
	BuildBuilding  BuildStatus = "building"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// Finished returns true when no further status transitions will happen.
func (s BuildStatus) Finished() bool {
	return s == BuildSucceeded || s == BuildFailed
}

type App struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	WebURL    string    `json:"web_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SourceBlob struct {
	URL     string `json:"url"`
	Version string `json:"version,omitempty"`
}

type Build struct {
	ID              string      `json:"id"`
	Status          BuildStatus `json:"status"`
	OutputStreamURL string      `json:"output_stream_url,omitempty"`
	SourceBlob      SourceBlob  `json:"source_blob"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// FormationUpdate sets the number of dynos running one process type.
type FormationUpdate struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Size     string `json:"size,omitempty"`
}

type createAppRequest struct {
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
	Stack  string `json:"stack,omitempty"`
}

type createBuildRequest struct {
	SourceBlob SourceBlob `json:"source_blob"`
}

type formationRequest struct {
	Updates []FormationUpdate `json:"updates"`
}

type logSessionRequest struct {
	Lines int  `json:"lines,omitempty"`
	Tail  bool `json:"tail"`
}

type logSession struct {
	ID         string `json:"id"`
	LogplexURL string `json:"logplex_url"`
}
