package opguide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"opguide/internal/domain"
	"opguide/internal/metrics"
	"opguide/internal/session"
	"opguide/internal/summarizer"
)

var (
	ErrNoResources     = errors.New("no resources fetched")
	ErrNoTypesSelected = errors.New("no resource types selected")
	ErrNotSummarized   = errors.New("no summaries to assemble")
	ErrStaleSelection  = errors.New("resources or selection changed during summarization")
)

// Fetcher lists resources from a cloud provider.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Resource, error)
}

// RunRecorder keeps the history of summarization runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run domain.Run) error
}

type Service struct {
	fetcher   Fetcher
	batch     *BatchSummarizer
	generator DocumentGenerator
	runs      RunRecorder
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *slog.Logger
}

type Options struct {
	Fetcher          Fetcher
	Summarizer       summarizer.Summarizer
	Generator        DocumentGenerator
	Runs             RunRecorder
	Metrics          *metrics.Metrics
	SummarizeTimeout time.Duration
}

func NewService(opts Options, log *slog.Logger) *Service {
	generator := opts.Generator
	if generator == nil {
		generator = NewPlaceholderGenerator()
	}

	batch := NewBatchSummarizer(opts.Summarizer, opts.SummarizeTimeout, log)
	batch.observe = opts.Metrics.ObserveSummarizeCall

	return &Service{
		fetcher:   opts.Fetcher,
		batch:     batch,
		generator: generator,
		runs:      opts.Runs,
		metrics:   opts.Metrics,
		now:       time.Now,
		log:       log,
	}
}

// Fetch lists resources and stores them in the session, resetting selection
// and summaries. On error the session is left untouched.
func (s *Service) Fetch(ctx context.Context, sess *session.Session) ([]domain.Resource, error) {
	if s.fetcher == nil {
		return nil, errors.New("fetcher is not configured")
	}

	resources, err := s.fetcher.Fetch(ctx)
	s.metrics.ObserveFetch(s.fetcher.Name(), err)
	if err != nil {
		return nil, fmt.Errorf("fetch resources: %w", err)
	}

	sess.SetResources(resources)

	s.log.InfoContext(ctx, "Resources are fetched",
		"sessionKey", sess.Key(),
		"fetcher", s.fetcher.Name(),
		"count", len(resources))

	return resources, nil
}

// Summarize rebuilds the group summaries of the selected types. Per-group
// failures end up in the result; missing input and cancellation are errors.
func (s *Service) Summarize(
	ctx context.Context,
	sess *session.Session,
) (map[string]domain.GroupSummary, error) {
	snapshot := sess.Snapshot()
	if len(snapshot.Resources) == 0 {
		return nil, ErrNoResources
	}
	if len(snapshot.Selected) == 0 {
		return nil, ErrNoTypesSelected
	}

	startedAt := s.now()
	groups := GroupByType(snapshot.Resources).Restrict(snapshot.Selected)
	summaries := s.batch.SummarizeGroups(ctx, groups)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("summarize groups: %w", err)
	}

	failed := 0
	for _, gs := range summaries {
		s.metrics.ObserveGroup(gs.Failed())
		if gs.Failed() {
			failed++
		}
	}

	s.recordRun(ctx, domain.Run{
		SessionKey:       sess.Key(),
		StartedAt:        startedAt,
		FinishedAt:       s.now(),
		ResourceCount:    groups.Len(),
		GroupCount:       len(summaries),
		FailedGroupCount: failed,
	})

	if !sess.SetSummaries(snapshot.Generation, summaries) {
		return nil, ErrStaleSelection
	}

	s.log.InfoContext(ctx, "Resource types are summarized",
		"sessionKey", sess.Key(),
		"groupCount", len(summaries),
		"failedGroupCount", failed)

	return summaries, nil
}

// SummarizeResources summarizes each resource on its own. When the session
// has a selection only resources of the selected types are processed.
// Nothing is stored in the session.
func (s *Service) SummarizeResources(
	ctx context.Context,
	sess *session.Session,
) ([]domain.ResourceSummary, error) {
	snapshot := sess.Snapshot()
	if len(snapshot.Resources) == 0 {
		return nil, ErrNoResources
	}

	resources := snapshot.Resources
	if len(snapshot.Selected) > 0 {
		groups := GroupByType(resources).Restrict(snapshot.Selected)
		resources = resources[:0:0]
		for _, r := range snapshot.Resources {
			if _, ok := groups[r.Type]; ok {
				resources = append(resources, r)
			}
		}
	}

	return s.batch.SummarizeResources(ctx, resources), nil
}

// Document assembles the OpGuide from the session's summaries.
func (s *Service) Document(ctx context.Context, sess *session.Session) (Document, error) {
	summaries := sess.Summaries()
	if len(summaries) == 0 {
		return Document{}, ErrNotSummarized
	}

	doc, err := s.generator.Generate(ctx, summaries)
	if err != nil {
		return Document{}, fmt.Errorf("generate document: %w", err)
	}
	s.metrics.ObserveDocument()

	return doc, nil
}

// Run executes the whole flow in a fresh session: fetch, select types (all
// fetched types when types is empty), summarize and assemble.
func (s *Service) Run(
	ctx context.Context,
	key string,
	types []string,
) (Document, map[string]domain.GroupSummary, error) {
	sess := session.New(key)

	resources, err := s.Fetch(ctx, sess)
	if err != nil {
		return Document{}, nil, err
	}
	if len(resources) == 0 {
		return Document{}, nil, ErrNoResources
	}

	if len(types) == 0 {
		types = sess.Types()
	} else {
		types = GroupByType(resources).Restrict(types).Types()
	}
	if err = sess.Select(types); err != nil {
		return Document{}, nil, fmt.Errorf("select types: %w", err)
	}

	summaries, err := s.Summarize(ctx, sess)
	if err != nil {
		return Document{}, nil, err
	}

	doc, err := s.Document(ctx, sess)
	if err != nil {
		return Document{}, nil, err
	}

	return doc, summaries, nil
}

func (s *Service) recordRun(ctx context.Context, run domain.Run) {
	if s.runs == nil {
		return
	}

	if err := s.runs.RecordRun(ctx, run); err != nil {
		s.log.ErrorContext(ctx, "Failed to record run",
			"error", err,
			"sessionKey", run.SessionKey)
	}
}
