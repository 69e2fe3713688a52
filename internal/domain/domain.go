package domain

import "time"

// Resource is a single cloud resource as returned by a fetcher.
// Configuration and Usage are opaque text, usually JSON.
type Resource struct {
	ID            string `json:"id"            yaml:"id"`
	Name          string `json:"name"          yaml:"name"`
	Type          string `json:"type"          yaml:"type"`
	ResourceGroup string `json:"resourceGroup" yaml:"resourceGroup"`
	Location      string `json:"location"      yaml:"location"`
	Configuration string `json:"configuration" yaml:"configuration"`
	Usage         string `json:"usage"         yaml:"usage"`
}

// GroupSummary is the outcome of summarizing every resource of one type.
// After processing exactly one of Summary and Error is set.
type GroupSummary struct {
	ResourceType string `json:"resourceType"`
	Count        int    `json:"count"`
	Summary      string `json:"summary,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (g GroupSummary) Failed() bool {
	return g.Error != ""
}

// ResourceSummary is the outcome of summarizing a single resource.
type ResourceSummary struct {
	Resource Resource `json:"resource"`
	Summary  string   `json:"summary,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type ChatSettings struct {
	ChatID             int64
	AutoOpGuideHourUTC *int64
	ReportTypes        []string
}

type Run struct {
	SessionKey       string    `json:"sessionKey"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	ResourceCount    int       `json:"resourceCount"`
	GroupCount       int       `json:"groupCount"`
	FailedGroupCount int       `json:"failedGroupCount"`
}
