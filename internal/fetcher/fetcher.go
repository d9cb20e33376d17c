// Issues the concurrent statistics requests and parses the responses.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"

	appconfig "statflow/config"
	"statflow/internal/model"
	"statflow/internal/parser"
	"statflow/logger"
)

// Fetcher issues one POST per configured indicator and turns each response
// into a Series. All requests share one client; the dialer bounds connection
// setup and the client timeout bounds the whole request.
type Fetcher struct {
	client *http.Client
	log    *logger.Log
}

func New(cfg *appconfig.Config) *Fetcher {
	dialer := &net.Dialer{Timeout: cfg.Timeouts.Connect()}
	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeouts.Request(),
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
		log: logger.GetLogger(),
	}
}

// FetchAll dispatches every request concurrently and waits for all of them.
// Results land in their request's slot, so the returned order always matches
// the input order regardless of arrival order. A failed request never affects
// its siblings; its slot carries an empty series with the captured status.
func (f *Fetcher) FetchAll(ctx context.Context, reqs []appconfig.FetchRequest) []model.Series {
	results := make([]model.Series, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req appconfig.FetchRequest) {
			defer wg.Done()
			results[i] = f.fetchOne(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, req appconfig.FetchRequest) (series model.Series) {
	log := f.log.WithComponent("fetcher").WithFields(logger.Fields{
		"kind": req.Kind.String(),
		"url":  req.URL,
	})

	// Status stays at the sentinel until a response has been observed.
	status := model.StatusUnknown
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{"panic": r}).Error("unexpected failure during fetch")
			series = model.Empty(req.Kind, status)
		}
	}()

	body, err := json.Marshal(req.Data)
	if err != nil {
		log.WithError(err).Error("failed to encode request body")
		return model.Empty(req.Kind, status)
	}

	log.WithFields(logger.Fields{"data": req.Data}).Info("making POST request")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Error("failed to build request")
		return model.Empty(req.Kind, status)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Error("request failed")
		return model.Empty(req.Kind, status)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Error("failed to read response body")
		return model.Empty(req.Kind, status)
	}
	if !json.Valid(payload) {
		log.WithFields(logger.Fields{"status": status}).Error("response body is not valid JSON")
		return model.Empty(req.Kind, status)
	}

	series, err = parser.Parse(payload, req.Kind, req.MetricKey, status)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"status": status}).Error("failed to parse response")
		return model.Empty(req.Kind, status)
	}

	log.WithFields(logger.Fields{
		"status": status,
		"points": len(series.Points),
	}).Info("parsed indicator series")
	return series
}
