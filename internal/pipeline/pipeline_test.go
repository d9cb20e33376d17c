package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	appconfig "statflow/config"
	"statflow/internal/model"
)

func statServer(payload string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, payload)
	}))
}

func fullConfig(payURL, birthURL, deathURL, sinkURL string) *appconfig.Config {
	return &appconfig.Config{
		Statflow: appconfig.StatflowConfig{Name: "statflow-test", Version: "1.0"},
		Requests: appconfig.RequestsConfig{
			AveragePay:      appconfig.IndicatorConfig{URL: payURL, Data: map[string]any{}, MetricKey: "pay"},
			BirthRate:       appconfig.IndicatorConfig{URL: birthURL, Data: map[string]any{}, MetricKey: "birth"},
			DeathRate:       appconfig.IndicatorConfig{URL: deathURL, Data: map[string]any{}, MetricKey: "death"},
			BirthDeathRatio: appconfig.RatioConfig{MetricKey: "ratio"},
		},
		Timeouts: appconfig.TimeoutsConfig{ConnectSec: 1, RequestSec: 1, SinkTotalSec: 1},
		Sink:     appconfig.SinkConfig{Host: sinkURL, Username: "token", PushParallel: true},
	}
}

func TestRunEndToEnd(t *testing.T) {
	pay := statServer(`{"dimension": {"MESEC": {"category": {"label": {"0": "2006M01", "1": "2006M02"}}}}, "value": ["1212.8", "1220.4"]}`)
	defer pay.Close()
	birth := statServer(`{"dimension": {"LETO": {"category": {"label": {"0": "2010", "1": "2011"}}}}, "value": ["10.0", "12.0"]}`)
	defer birth.Close()
	death := statServer(`{"dimension": {"LETO": {"category": {"label": {"0": "2010", "1": "2011"}}}}, "value": ["4.0", "5.0"]}`)
	defer death.Close()

	var mu sync.Mutex
	var batches [][]model.PushRecord
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var records []model.PushRecord
		if err := json.Unmarshal(body, &records); err != nil {
			t.Errorf("sink got invalid body: %v", err)
		}
		mu.Lock()
		batches = append(batches, records)
		mu.Unlock()
	}))
	defer sink.Close()

	cfg := fullConfig(pay.URL, birth.URL, death.URL, sink.URL)
	if err := New(cfg).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(batches) != 4 {
		t.Fatalf("sink received %d batches, want 4 (3 fetched + 1 derived)", len(batches))
	}

	var ratio []model.PushRecord
	for _, batch := range batches {
		if len(batch) > 0 && batch[0].Key == "ratio" {
			ratio = batch
		}
	}
	if len(ratio) != 2 {
		t.Fatalf("ratio batch has %d records, want 2", len(ratio))
	}
	want := []model.PushRecord{
		{Key: "ratio", Value: 6.0, Unit: "Rt", Date: "2010-01-01T00:00:00"},
		{Key: "ratio", Value: 7.0, Unit: "Rt", Date: "2011-01-01T00:00:00"},
	}
	for i, rec := range ratio {
		if rec != want[i] {
			t.Errorf("ratio[%d] = %+v, want %+v", i, rec, want[i])
		}
	}
}

func TestRunAbortsOnMisalignedRates(t *testing.T) {
	pay := statServer(`{"dimension": {"MESEC": {"category": {"label": {"0": "2006M01"}}}}, "value": ["1212.8"]}`)
	defer pay.Close()
	birth := statServer(`{"dimension": {"LETO": {"category": {"label": {"0": "2010", "1": "2011"}}}}, "value": ["10.0", "12.0"]}`)
	defer birth.Close()
	death := statServer(`{"dimension": {"LETO": {"category": {"label": {"0": "2010"}}}}, "value": ["4.0"]}`)
	defer death.Close()

	pushes := 0
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes++
	}))
	defer sink.Close()

	cfg := fullConfig(pay.URL, birth.URL, death.URL, sink.URL)
	if err := New(cfg).Run(context.Background()); err == nil {
		t.Fatal("expected run to fail on misaligned birth and death series")
	}
	if pushes != 0 {
		t.Errorf("sink received %d pushes, want 0 when the run aborts", pushes)
	}
}
