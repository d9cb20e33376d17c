package model

import (
	"errors"
	"fmt"
	"strings"
)

// StatusUnknown marks a fetch that failed before any HTTP status was observed.
const StatusUnknown = -1

// ErrAlignment reports a length or date mismatch between sequences that the
// pipeline requires to be index-aligned: a response's label map against its
// value list, or the birth series against the death series.
var ErrAlignment = errors.New("aligned sequences differ")

// Kind identifies which indicator a request or a parsed series belongs to.
type Kind int

const (
	KindAveragePay Kind = iota + 1
	KindBirthRate
	KindDeathRate
	KindBirthDeathRatio
)

var kindNames = map[Kind]string{
	KindAveragePay:      "average_pay",
	KindBirthRate:       "birth_rate",
	KindDeathRate:       "death_rate",
	KindBirthDeathRatio: "birth_death_ratio",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a configuration name onto a Kind. Surrounding whitespace and
// letter case are ignored.
func ParseKind(name string) (Kind, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for kind, kindName := range kindNames {
		if kindName == want {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown indicator kind %q", name)
}

// Point is a single observation of an indicator.
type Point struct {
	Date  string
	Value float64
}

// PushRecord is one sink-ready data point, sent verbatim to the sink.
type PushRecord struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Date  string  `json:"date"`
}

// Series is the uniform result of one indicator for one run. Points and
// Records are index-aligned: Records[i] carries the same date and value as
// Points[i]. A failed fetch or parse yields an empty series that keeps only
// the kind and the captured status.
type Series struct {
	Points  []Point
	Records []PushRecord
	Kind    Kind
	Status  int
}

// Empty returns a series with no observations for a failed indicator.
func Empty(kind Kind, status int) Series {
	return Series{Kind: kind, Status: status}
}
