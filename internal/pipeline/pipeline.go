// Sequences one batch run: fetch, derive, push, report.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	appconfig "statflow/config"
	"statflow/internal/derive"
	"statflow/internal/fetcher"
	"statflow/internal/pusher"
	"statflow/logger"
)

type Pipeline struct {
	cfg     *appconfig.Config
	fetcher *fetcher.Fetcher
	pusher  *pusher.Pusher
	log     *logger.Log
}

func New(cfg *appconfig.Config) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher.New(cfg),
		pusher:  pusher.New(cfg),
		log:     logger.GetLogger(),
	}
}

// Run executes one batch run to completion. Failures inside a single fetch or
// push are already contained to that call's result slot; a broken invariant
// between fetched series (missing series, misaligned dates) aborts the run
// before anything is pushed. Run is the last-resort handler: whatever escapes
// is logged here and surfaced as an error, never re-raised.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	runID := uuid.NewString()
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": runID})

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{"panic": r}).Error("run aborted by unexpected failure")
			err = fmt.Errorf("run aborted: %v", r)
		}
	}()

	requests := p.cfg.FetchRequests()
	log.WithFields(logger.Fields{
		"requests":      len(requests),
		"push_parallel": p.cfg.Sink.PushParallel,
	}).Info("starting run")

	series := p.fetcher.FetchAll(ctx, requests)

	ratio, err := derive.BirthDeathRatio(series, p.cfg.Requests.BirthDeathRatio.MetricKey)
	if err != nil {
		log.WithError(err).Error("failed to derive birth-death ratio")
		return err
	}
	series = append(series, ratio)

	statuses := p.pusher.PushAll(ctx, series)

	failures := 0
	for i, s := range series {
		if statuses[i] < 200 || statuses[i] > 299 {
			failures++
		}
		log.WithFields(logger.Fields{
			"kind":         s.Kind.String(),
			"fetch_status": s.Status,
			"points":       len(s.Points),
			"records":      len(s.Records),
			"push_status":  statuses[i],
		}).Info("series result")
	}
	log.WithFields(logger.Fields{"statuses": statuses}).Info("sink responses")

	logger.PublishCount(ctx, "SeriesPushed", float64(len(series)), map[string]string{"app": p.cfg.Statflow.Name})
	logger.PublishCount(ctx, "PushFailures", float64(failures), map[string]string{"app": p.cfg.Statflow.Name})

	return nil
}
