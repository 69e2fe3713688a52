package summarizer

import (
	"context"
)

// Input describes the payload for a summary request.
type Input struct {
	// ResourceType is the Azure resource type, e.g. "App Service".
	ResourceType string
	// ResourceName is the name of a single resource or a label for a batch.
	ResourceName string
	// ResourceConfiguration is free text, usually JSON or a batch listing.
	ResourceConfiguration string
	// ResourceUsage is optional usage metrics text.
	ResourceUsage string
}

// Summarizer produces a single summary for a given input.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
