// Computes series derived from the fetched indicators.
package derive

import (
	"errors"
	"fmt"
	"net/http"

	"statflow/internal/model"
)

const ratioUnit = "Rt"

// ErrMissingSeries reports that a required fetched series is absent. The
// configured request set guarantees birth and death rates are always
// requested, so hitting this means a bug upstream and aborts the run.
var ErrMissingSeries = errors.New("required series missing")

// BirthDeathRatio builds the birth-death ratio series: the pairwise
// difference of the birth and death rate series, aligned by index. The two
// inputs must have the same length and identical dates at every index; they
// are never re-sorted or joined by date. The result carries status 200 since
// it is computed rather than fetched.
func BirthDeathRatio(series []model.Series, metricKey string) (model.Series, error) {
	births, err := findByKind(series, model.KindBirthRate)
	if err != nil {
		return model.Series{}, err
	}
	deaths, err := findByKind(series, model.KindDeathRate)
	if err != nil {
		return model.Series{}, err
	}

	if len(births.Points) != len(deaths.Points) {
		return model.Series{}, fmt.Errorf("%w: %d birth points vs %d death points",
			model.ErrAlignment, len(births.Points), len(deaths.Points))
	}

	ratio := model.Series{
		Points:  make([]model.Point, 0, len(births.Points)),
		Records: make([]model.PushRecord, 0, len(births.Points)),
		Kind:    model.KindBirthDeathRatio,
		Status:  http.StatusOK,
	}
	for i, birth := range births.Points {
		death := deaths.Points[i]
		if birth.Date != death.Date {
			return model.Series{}, fmt.Errorf("%w: birth date %s vs death date %s at index %d",
				model.ErrAlignment, birth.Date, death.Date, i)
		}
		value := birth.Value - death.Value
		ratio.Points = append(ratio.Points, model.Point{Date: birth.Date, Value: value})
		ratio.Records = append(ratio.Records, model.PushRecord{
			Key:   metricKey,
			Value: value,
			Unit:  ratioUnit,
			Date:  birth.Date,
		})
	}
	return ratio, nil
}

func findByKind(series []model.Series, kind model.Kind) (model.Series, error) {
	for _, s := range series {
		if s.Kind == kind {
			return s, nil
		}
	}
	return model.Series{}, fmt.Errorf("%w: %s", ErrMissingSeries, kind)
}
