package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appconfig "statflow/config"
	"statflow/internal/model"
)

func yearPayload(years []string, values []float64) string {
	labels := "{"
	for i, y := range years {
		if i > 0 {
			labels += ","
		}
		labels += fmt.Sprintf("%q: %q", fmt.Sprint(i), y)
	}
	labels += "}"
	vals, _ := json.Marshal(values)
	return fmt.Sprintf(`{"dimension": {"LETO": {"category": {"label": %s}}}, "value": %s}`, labels, vals)
}

func jsonHandler(payload string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, payload)
	}
}

func testConfig(payURL, birthURL, deathURL string) *appconfig.Config {
	return &appconfig.Config{
		Requests: appconfig.RequestsConfig{
			AveragePay: appconfig.IndicatorConfig{URL: payURL, Data: map[string]any{"q": "pay"}, MetricKey: "pay"},
			BirthRate:  appconfig.IndicatorConfig{URL: birthURL, Data: map[string]any{"q": "birth"}, MetricKey: "birth"},
			DeathRate:  appconfig.IndicatorConfig{URL: deathURL, Data: map[string]any{"q": "death"}, MetricKey: "death"},
			BirthDeathRatio: appconfig.RatioConfig{MetricKey: "ratio"},
		},
		Timeouts: appconfig.TimeoutsConfig{ConnectSec: 1, RequestSec: 1, SinkTotalSec: 1},
	}
}

func TestFetchAllOrderAndParsing(t *testing.T) {
	pay := httptest.NewServer(jsonHandler(
		`{"dimension": {"MESEC": {"category": {"label": {"0": "2006M01"}}}}, "value": ["1212.8"]}`))
	defer pay.Close()
	birth := httptest.NewServer(jsonHandler(yearPayload([]string{"2010", "2011"}, []float64{10.0, 12.0})))
	defer birth.Close()
	death := httptest.NewServer(jsonHandler(yearPayload([]string{"2010", "2011"}, []float64{4.0, 5.0})))
	defer death.Close()

	cfg := testConfig(pay.URL, birth.URL, death.URL)
	results := New(cfg).FetchAll(context.Background(), cfg.FetchRequests())

	if len(results) != 3 {
		t.Fatalf("got %d series, want 3", len(results))
	}
	wantKinds := []model.Kind{model.KindAveragePay, model.KindBirthRate, model.KindDeathRate}
	for i, want := range wantKinds {
		if results[i].Kind != want {
			t.Errorf("results[%d].Kind = %s, want %s", i, results[i].Kind, want)
		}
		if results[i].Status != http.StatusOK {
			t.Errorf("results[%d].Status = %d", i, results[i].Status)
		}
	}
	if len(results[1].Points) != 2 || results[1].Points[1].Value != 12.0 {
		t.Errorf("birth series not parsed: %+v", results[1].Points)
	}
}

func TestFetchAllSendsJSONBody(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprintln(w, yearPayload([]string{"2010"}, []float64{1.0}))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, srv.URL, srv.URL)
	New(cfg).FetchAll(context.Background(), cfg.FetchRequests()[1:2])

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody["q"] != "birth" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestFetchAllIsolatesTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer slow.Close()
	birth := httptest.NewServer(jsonHandler(yearPayload([]string{"2010"}, []float64{10.0})))
	defer birth.Close()
	death := httptest.NewServer(jsonHandler(yearPayload([]string{"2010"}, []float64{4.0})))
	defer death.Close()

	cfg := testConfig(slow.URL, birth.URL, death.URL)
	results := New(cfg).FetchAll(context.Background(), cfg.FetchRequests())

	if len(results[0].Points) != 0 || len(results[0].Records) != 0 {
		t.Errorf("timed-out fetch should yield an empty series, got %d points", len(results[0].Points))
	}
	if results[0].Status != model.StatusUnknown {
		t.Errorf("timed-out fetch status = %d, want %d", results[0].Status, model.StatusUnknown)
	}
	if len(results[1].Points) != 1 || len(results[2].Points) != 1 {
		t.Errorf("sibling fetches were affected: %d, %d points", len(results[1].Points), len(results[2].Points))
	}
}

func TestFetchAllMalformedBodyKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, srv.URL, srv.URL)
	results := New(cfg).FetchAll(context.Background(), cfg.FetchRequests()[:1])

	if len(results[0].Points) != 0 {
		t.Errorf("expected empty series, got %d points", len(results[0].Points))
	}
	if results[0].Status != http.StatusOK {
		t.Errorf("status = %d, want the captured 200", results[0].Status)
	}
}

func TestFetchAllDeadEndpoint(t *testing.T) {
	srv := httptest.NewServer(jsonHandler("{}"))
	deadURL := srv.URL
	srv.Close()

	cfg := testConfig(deadURL, deadURL, deadURL)
	results := New(cfg).FetchAll(context.Background(), cfg.FetchRequests()[:1])

	if results[0].Status != model.StatusUnknown {
		t.Errorf("status = %d, want sentinel %d", results[0].Status, model.StatusUnknown)
	}
	if results[0].Kind != model.KindAveragePay {
		t.Errorf("kind = %s", results[0].Kind)
	}
}
