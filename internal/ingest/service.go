package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
	"swapiapi/internal/platform/swapi"
	"swapiapi/internal/store"
)

type Config struct {
	// Workers bounds how many records are mapped concurrently.
	Workers int
}

type Fetcher interface {
	FetchAll(ctx context.Context, kind entity.Kind) ([]swapi.Raw, error)
}

type CatalogWriter interface {
	Upsert(ctx context.Context, e entity.Entity) (store.UpsertResult, error)
	LinkRelationship(ctx context.Context, srcKind entity.Kind, srcID int64, dstKind entity.Kind, dstKey string) (store.LinkResult, error)
}

type Service struct {
	fetcher Fetcher
	catalog CatalogWriter
	runs    RunRepository
	cfg     Config
	logger  zerolog.Logger

	// writer serializes imports across every kind. A link deferred by one
	// import must be visible to the upserts of any concurrent import, which
	// READ COMMITTED transactions on separate connections do not guarantee.
	writer sync.Mutex
}

func NewService(fetcher Fetcher, catalog CatalogWriter, runs RunRepository, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{
		fetcher: fetcher,
		catalog: catalog,
		runs:    runs,
		cfg:     cfg,
		logger:  logger.With().Str("component", "ingest").Logger(),
	}
}

type mapResult struct {
	mapped Mapped
	err    error
}

// ImportAll fetches every upstream record of kind, stores it and links its
// references. Bad records are collected in Summary.Errors and skipped. When
// upstream fails part way, the records already fetched are still stored and
// the upstream error is returned alongside the summary.
func (s *Service) ImportAll(ctx context.Context, kind entity.Kind) (summary Summary, err error) {
	s.writer.Lock()
	defer s.writer.Unlock()

	summary = Summary{Kind: kind, Errors: []RecordError{}}
	run := &Run{Kind: kind, Status: StatusRunning, StartedAt: time.Now().UTC()}
	runID, err := s.runs.CreateRun(ctx, run)
	if err != nil {
		return summary, fmt.Errorf("create import run: %w", err)
	}
	run.ID = runID

	log := s.logger.With().Str("kind", string(kind)).Int64("run_id", runID).Logger()
	log.Info().Msg("import started")

	defer func() {
		now := time.Now().UTC()
		run.FinishedAt = &now
		run.Fetched = summary.Fetched
		run.Upserted = summary.Count
		run.Linked = summary.Linked + summary.Resolved
		run.Deferred = summary.Deferred
		run.Failed = len(summary.Errors)
		run.RecordErrors = summary.Errors
		run.Status = StatusCompleted
		if err != nil {
			run.Status = StatusFailed
			run.Error = err.Error()
		}
		if updateErr := s.runs.UpdateRun(context.WithoutCancel(ctx), run); updateErr != nil {
			log.Error().Err(updateErr).Msg("failed to update import run")
		}

		event := log.Info()
		if err != nil {
			event = log.Error().Err(err)
		}
		event.
			Str("status", run.Status).
			Int("fetched", summary.Fetched).
			Int("count", summary.Count).
			Int("linked", summary.Linked).
			Int("deferred", summary.Deferred).
			Int("resolved", summary.Resolved).
			Int("errors", len(summary.Errors)).
			Dur("duration", now.Sub(run.StartedAt)).
			Msg("import finished")
	}()

	raws, fetchErr := s.fetcher.FetchAll(ctx, kind)
	summary.Fetched = len(raws)
	if fetchErr != nil {
		if len(raws) == 0 {
			return summary, fetchErr
		}
		log.Warn().Err(fetchErr).Int("salvaged", len(raws)).Msg("upstream failed mid-import, storing partial results")
	}

	results, err := s.mapAll(ctx, kind, raws)
	if err != nil {
		return summary, err
	}

	for i, res := range results {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if res.err != nil {
			summary.Errors = append(summary.Errors, RecordError{Key: errorKey(res.err, i), Error: res.err.Error()})
			log.Warn().Err(res.err).Int("index", i).Msg("skipping malformed record")
			continue
		}
		s.persist(ctx, &summary, res.mapped, log)
	}

	return summary, fetchErr
}

// mapAll maps records on a bounded pool. Results keep upstream order.
func (s *Service) mapAll(ctx context.Context, kind entity.Kind, raws []swapi.Raw) ([]mapResult, error) {
	results := make([]mapResult, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := Map(raw, kind)
			results[i] = mapResult{mapped: m, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) persist(ctx context.Context, summary *Summary, m Mapped, log zerolog.Logger) {
	e := m.Entity
	kind := e.EntityKind()

	res, err := s.catalog.Upsert(ctx, e)
	if err != nil {
		summary.Errors = append(summary.Errors, RecordError{Key: e.Key(), Error: err.Error()})
		log.Error().Err(err).Str("key", e.Key()).Msg("upsert failed")
		return
	}
	summary.Count++
	summary.Resolved += res.Resolved

	for _, ref := range m.Refs {
		result, err := s.catalog.LinkRelationship(ctx, kind, res.ID, ref.Kind, ref.Key)
		if err != nil {
			summary.Errors = append(summary.Errors, RecordError{
				Key:   e.Key(),
				Error: fmt.Sprintf("link %s %s: %v", ref.Kind, ref.Key, err),
			})
			log.Error().Err(err).Str("key", e.Key()).Str("ref", ref.Key).Msg("link failed")
			continue
		}
		switch result {
		case store.Linked:
			summary.Linked++
		case store.Deferred:
			summary.Deferred++
		}
	}
}

// Runs lists recent import runs.
func (s *Service) Runs(ctx context.Context, limit int) ([]Run, error) {
	return s.runs.ListRuns(ctx, limit)
}

func errorKey(err error, index int) string {
	var mr *apperr.MalformedRecordError
	if errors.As(err, &mr) && mr.Key != "" {
		return mr.Key
	}
	return fmt.Sprintf("#%d", index)
}
