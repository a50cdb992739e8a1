package features

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// UnknownCode is the label code of a category that was not seen when the encoders were fit.
const UnknownCode = -1

// ScaledColumns are standardized to zero mean and unit variance.
var ScaledColumns = []string{
	ColAge, ColDaysBetween, ColTenure, ColNumberOfProducts,
	ColRecency, ColAvgMonthlyChange, ColAvgMonthlyChangePct,
}

// LogColumns receive log1p after scaling.
var LogColumns = []string{ColTotalSpendFavorite}

// CategoricalColumns are label encoded.
var CategoricalColumns = []string{
	ColIncomeRange, ColRiskProfile, ColOccupation, ColAgeRange,
	ColFirstProduct, ColSecondProduct, ColCombination, ColFavoriteBySpend,
}

// ScalerParams holds a fitted column's mean and population standard deviation.
type ScalerParams struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// FittedTransforms carries everything fit at training time. It is read-only once built and
// safe to share between concurrent pipeline runs.
type FittedTransforms struct {
	Scaler   map[string]ScalerParams   `json:"scaler"`
	Encoders map[string]map[string]int `json:"encoders"`
}

// FitTransforms fits the scaler and label encoders over records. Encoder codes follow the
// sorted order of distinct values.
func FitTransforms(records []Record) (*FittedTransforms, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot fit transforms on an empty batch")
	}
	ft := &FittedTransforms{
		Scaler:   make(map[string]ScalerParams, len(ScaledColumns)),
		Encoders: make(map[string]map[string]int, len(CategoricalColumns)),
	}

	values := make([]float64, len(records))
	for _, col := range ScaledColumns {
		for i, r := range records {
			values[i] = finite(r.Numeric[col])
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		ft.Scaler[col] = ScalerParams{Mean: mean, Std: std}
	}

	for _, col := range CategoricalColumns {
		distinct := make(map[string]struct{})
		for _, r := range records {
			distinct[r.Categorical[col]] = struct{}{}
		}
		labels := sortedKeys(distinct)
		codes := make(map[string]int, len(labels))
		for i, v := range labels {
			codes[v] = i
		}
		ft.Encoders[col] = codes
	}
	return ft, nil
}

// Validate reports whether every scaled and categorical column has fitted parameters.
func (ft *FittedTransforms) Validate() error {
	if ft == nil {
		return fmt.Errorf("fitted transforms are nil")
	}
	for _, col := range ScaledColumns {
		if _, ok := ft.Scaler[col]; !ok {
			return fmt.Errorf("fitted transforms: no scaler parameters for %q", col)
		}
	}
	for _, col := range CategoricalColumns {
		if _, ok := ft.Encoders[col]; !ok {
			return fmt.Errorf("fitted transforms: no encoder for %q", col)
		}
	}
	return nil
}

// Scale standardizes v for col. A zero deviation scales by 1.
func (ft *FittedTransforms) Scale(col string, v float64) float64 {
	p := ft.Scaler[col]
	std := p.Std
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	return (v - p.Mean) / std
}

// Encode returns the code of value in col, and false when the value was not seen at fit.
func (ft *FittedTransforms) Encode(col, value string) (int, bool) {
	code, ok := ft.Encoders[col][value]
	if !ok {
		return UnknownCode, false
	}
	return code, true
}

// Decode is the inverse of Encode for codes produced at fit.
func (ft *FittedTransforms) Decode(col string, code int) (string, bool) {
	for v, c := range ft.Encoders[col] {
		if c == code {
			return v, true
		}
	}
	return "", false
}

// Labels lists the fitted values of col in code order.
func (ft *FittedTransforms) Labels(col string) []string {
	enc := ft.Encoders[col]
	labels := make([]string, 0, len(enc))
	for v := range enc {
		labels = append(labels, v)
	}
	sort.Slice(labels, func(i, j int) bool { return enc[labels[i]] < enc[labels[j]] })
	return labels
}

// Apply scales, log-transforms and encodes records into flat numeric rows keyed by column.
// Unseen categories become UnknownCode and are reported in drift.
func (ft *FittedTransforms) Apply(records []Record, drift *Drift) []map[string]float64 {
	rows := make([]map[string]float64, len(records))
	for i, r := range records {
		row := make(map[string]float64, len(r.Numeric)+len(r.Categorical))
		for col, v := range r.Numeric {
			row[col] = finite(v)
		}
		for _, col := range ScaledColumns {
			if v, ok := row[col]; ok {
				row[col] = ft.Scale(col, v)
			}
		}
		for _, col := range LogColumns {
			if v, ok := row[col]; ok {
				row[col] = finite(math.Log1p(v))
			}
		}
		for col, v := range r.Categorical {
			if ft.Encoders[col] == nil {
				continue
			}
			code, ok := ft.Encode(col, v)
			if !ok {
				drift.addUnseen(col, v)
			}
			row[col] = float64(code)
		}
		rows[i] = row
	}
	return rows
}

// Save writes the transforms as indented JSON.
func (ft *FittedTransforms) Save(path string) error {
	data, err := json.MarshalIndent(ft, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transforms: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write transforms: %w", err)
	}
	return nil
}

// LoadTransforms reads transforms saved by Save and validates them.
func LoadTransforms(path string) (*FittedTransforms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transforms: %w", err)
	}
	var ft FittedTransforms
	if err := json.Unmarshal(data, &ft); err != nil {
		return nil, fmt.Errorf("decode transforms %s: %w", path, err)
	}
	if err := ft.Validate(); err != nil {
		return nil, err
	}
	return &ft, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
