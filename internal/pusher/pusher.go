// Delivers series to the analytics sink.
package pusher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	appconfig "statflow/config"
	"statflow/internal/model"
	"statflow/logger"
)

const acceptHeader = "application/vnd.databox.v2+json"

// Pusher delivers each series' push records to the sink as one batch call.
// The delivery mode comes from configuration: parallel fans out one goroutine
// per series, serial walks them in order. The outcome set is the same either
// way, only concurrency differs.
type Pusher struct {
	cfg     *appconfig.Config
	limiter *rate.Limiter
	log     *logger.Log
}

func New(cfg *appconfig.Config) *Pusher {
	var limiter *rate.Limiter
	if rps := cfg.Sink.RateLimit.RequestsPerSecond; rps > 0 {
		burst := cfg.Sink.RateLimit.BurstSize
		if burst <= 0 {
			burst = rps
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Pusher{cfg: cfg, limiter: limiter, log: logger.GetLogger()}
}

// PushAll pushes every series and returns one status per series, in input
// order. A failed push only marks its own slot.
func (p *Pusher) PushAll(ctx context.Context, series []model.Series) []int {
	statuses := make([]int, len(series))

	if p.cfg.Sink.PushParallel {
		var wg sync.WaitGroup
		for i, s := range series {
			wg.Add(1)
			go func(i int, s model.Series) {
				defer wg.Done()
				statuses[i] = p.pushOne(ctx, s)
			}(i, s)
		}
		wg.Wait()
		return statuses
	}

	for i, s := range series {
		statuses[i] = p.pushOne(ctx, s)
	}
	return statuses
}

// pushOne sends one batch to the sink. The client is scoped to the call; the
// sink connection never outlives a push. Sink-reported errors map to 400 and
// anything unexpected to 500, mirroring how sink client libraries surface
// validation failures versus transport failures.
func (p *Pusher) pushOne(ctx context.Context, series model.Series) (status int) {
	log := p.log.WithComponent("pusher").WithFields(logger.Fields{
		"kind":    series.Kind.String(),
		"records": len(series.Records),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{"panic": r}).Error("unexpected failure during push")
			status = http.StatusInternalServerError
		}
	}()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			log.WithError(err).Error("rate limiter wait aborted")
			return http.StatusInternalServerError
		}
	}

	body, err := json.Marshal(series.Records)
	if err != nil {
		log.WithError(err).Error("failed to encode push records")
		return http.StatusInternalServerError
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Sink.Host, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Error("failed to build sink request")
		return http.StatusInternalServerError
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptHeader)
	req.SetBasicAuth(p.cfg.Sink.Username, p.cfg.Sink.Password)

	client := &http.Client{Timeout: p.cfg.Timeouts.SinkTotal()}
	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).Error("sink request failed")
		return http.StatusInternalServerError
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.WithFields(logger.Fields{"status": resp.StatusCode}).Error("sink rejected push")
		return http.StatusBadRequest
	}

	log.WithFields(logger.Fields{"status": resp.StatusCode}).Info("pushed series to sink")
	return resp.StatusCode
}
