// Normalizes statistics-office responses into uniform series.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"statflow/internal/model"
)

// Dimension keys used by the statistics API for period labels.
const (
	dimYear  = "LETO"
	dimMonth = "MESEC"
)

const (
	unitRate = "Rt"
	unitPay  = "EUR"
)

// ErrUnsupportedKind reports a kind no parser variant exists for. With the
// closed Kind enumeration this is a programming error, not bad input.
var ErrUnsupportedKind = errors.New("unsupported indicator kind")

// Parse normalizes a raw statistics response into a Series. The metric key is
// stamped onto every emitted push record and status is the transport status
// the caller observed. Parse either builds the whole series or returns an
// error; it never returns a partial result.
func Parse(payload []byte, kind model.Kind, metricKey string, status int) (model.Series, error) {
	switch kind {
	case model.KindAveragePay:
		return extract(payload, kind, metricKey, status, dimMonth, unitPay, monthDate)
	case model.KindBirthRate, model.KindDeathRate:
		return extract(payload, kind, metricKey, status, dimYear, unitRate, yearDate)
	default:
		return model.Series{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

// extract walks the ordered label map under the given dimension together with
// the parallel value list, normalizing each label through normalize. Label
// order in the JSON document is the series order, which is why the label map
// is traversed with gjson instead of being decoded into a Go map.
func extract(payload []byte, kind model.Kind, metricKey string, status int,
	dim, unit string, normalize func(string) (string, error)) (model.Series, error) {

	labels := gjson.GetBytes(payload, "dimension."+dim+".category.label")
	if !labels.Exists() || !labels.IsObject() {
		return model.Series{}, fmt.Errorf("response has no %s label map", dim)
	}
	values := gjson.GetBytes(payload, "value")
	if !values.IsArray() {
		return model.Series{}, errors.New("response has no value list")
	}

	var rawLabels []string
	labels.ForEach(func(_, label gjson.Result) bool {
		rawLabels = append(rawLabels, label.String())
		return true
	})
	rawValues := values.Array()
	if len(rawLabels) != len(rawValues) {
		return model.Series{}, fmt.Errorf("%w: %d labels vs %d values",
			model.ErrAlignment, len(rawLabels), len(rawValues))
	}

	series := model.Series{
		Points:  make([]model.Point, 0, len(rawLabels)),
		Records: make([]model.PushRecord, 0, len(rawLabels)),
		Kind:    kind,
		Status:  status,
	}
	for i, raw := range rawLabels {
		date, err := normalize(raw)
		if err != nil {
			return model.Series{}, err
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(rawValues[i].String()), 64)
		if err != nil {
			return model.Series{}, fmt.Errorf("parse value %q: %w", rawValues[i].String(), err)
		}
		series.Points = append(series.Points, model.Point{Date: date, Value: value})
		series.Records = append(series.Records, model.PushRecord{
			Key:   metricKey,
			Value: value,
			Unit:  unit,
			Date:  date,
		})
	}
	return series, nil
}

// yearDate normalizes a plain year label such as "2011".
func yearDate(raw string) (string, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: year label %q", ErrInvalidDate, raw)
	}
	return FromYear(year)
}

// monthDate normalizes a "YYYYMmm" label such as "2006M01". Out-of-range
// months and years before 1900 abort the indicator's parse; a bad label is
// never silently skipped.
func monthDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 6 || trimmed[4] != 'M' {
		return "", fmt.Errorf("%w: month label %q", ErrInvalidDate, raw)
	}
	year, err := strconv.Atoi(trimmed[:4])
	if err != nil {
		return "", fmt.Errorf("%w: month label %q", ErrInvalidDate, raw)
	}
	month, err := strconv.Atoi(trimmed[5:])
	if err != nil {
		return "", fmt.Errorf("%w: month label %q", ErrInvalidDate, raw)
	}
	if month < 1 || month > 12 || year < 1900 {
		return "", fmt.Errorf("%w: month label %q out of range", ErrInvalidDate, raw)
	}
	return FromYearMonth(year, month)
}
