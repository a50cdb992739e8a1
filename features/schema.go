package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// FeatureColumns is the declared column order of the pipeline output, identifier excluded.
var FeatureColumns = func() []string {
	cols := []string{
		ColAge, ColIncomeRange, ColRiskProfile, ColOccupation, ColAgeRange,
		ColFirstProduct, ColSecondProduct,
	}
	for _, p := range ProductTypes {
		cols = append(cols, string(p))
	}
	cols = append(cols,
		ColDaysBetween, ColTenure, ColNumberOfProducts, ColCombination, ColFirstProductTS,
	)
	for _, cat := range MerchantCategories {
		cols = append(cols, CountColumn(cat))
	}
	return append(cols,
		ColActiveMonths, ColRecency, ColFavoriteBySpend, ColTotalSpendFavorite,
		ColBestMonthCountTS, ColBestMonthSpendTS, ColAvgMonthlyChange, ColAvgMonthlyChangePct,
	)
}()

// ModelExcludedColumns never reach a classifier: the target itself and the product
// combination, whose labels spell out whether insurance is held.
var ModelExcludedColumns = []string{ColTarget, ColCombination}

// ModelColumns is FeatureColumns without ModelExcludedColumns, the input a classifier is
// trained on.
var ModelColumns = func() []string {
	excluded := make(map[string]struct{}, len(ModelExcludedColumns))
	for _, c := range ModelExcludedColumns {
		excluded[c] = struct{}{}
	}
	cols := make([]string, 0, len(FeatureColumns))
	for _, c := range FeatureColumns {
		if _, ok := excluded[c]; !ok {
			cols = append(cols, c)
		}
	}
	return cols
}()

// CheckModelColumns rejects a classifier that expects a column outside ModelColumns, either
// one the pipeline never produces or one excluded for leaking the target. A model that uses
// only part of ModelColumns is fine.
func CheckModelColumns(names []string) error {
	known := make(map[string]struct{}, len(ModelColumns))
	for _, c := range ModelColumns {
		known[c] = struct{}{}
	}
	var unknown []string
	for _, n := range names {
		if _, ok := known[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("model expects columns outside the classifier input: %v", unknown)
	}
	return nil
}

// Drift collects schema differences between what a batch produced and what was expected.
type Drift struct {
	MissingColumns []string            `json:"missing_columns,omitempty"`
	ExtraColumns   []string            `json:"extra_columns,omitempty"`
	Unseen         map[string][]string `json:"unseen_categories,omitempty"`
}

// Empty reports whether no drift was recorded.
func (d *Drift) Empty() bool {
	return d == nil || (len(d.MissingColumns) == 0 && len(d.ExtraColumns) == 0 && len(d.Unseen) == 0)
}

// Count is the number of distinct drift findings.
func (d *Drift) Count() int {
	if d == nil {
		return 0
	}
	n := len(d.MissingColumns) + len(d.ExtraColumns)
	for _, vs := range d.Unseen {
		n += len(vs)
	}
	return n
}

func (d *Drift) addUnseen(col, value string) {
	if d.Unseen == nil {
		d.Unseen = make(map[string][]string)
	}
	for _, v := range d.Unseen[col] {
		if v == value {
			return
		}
	}
	d.Unseen[col] = append(d.Unseen[col], value)
}

// Merge folds other into d without duplicating findings.
func (d *Drift) Merge(other Drift) {
	d.MissingColumns = appendUnique(d.MissingColumns, other.MissingColumns...)
	d.ExtraColumns = appendUnique(d.ExtraColumns, other.ExtraColumns...)
	for col, vs := range other.Unseen {
		for _, v := range vs {
			d.addUnseen(col, v)
		}
	}
}

// Log reports non-empty drift at Warn, tagged with the stage that found it.
func (d *Drift) Log(logger *zap.Logger, stage string) {
	if d.Empty() {
		return
	}
	logger.Warn("schema drift detected",
		zap.String("stage", stage),
		zap.Strings("missing_columns", d.MissingColumns),
		zap.Strings("extra_columns", d.ExtraColumns),
		zap.Any("unseen_categories", d.Unseen),
	)
}

// FeatureTable is the model-ready output: one row per customer, columns in a fixed order.
type FeatureTable struct {
	Columns []string
	UserIDs []string
	Rows    [][]float64
}

// Len is the number of customers in the table.
func (t *FeatureTable) Len() int { return len(t.UserIDs) }

// Column returns the values of col, or false if the table has no such column.
func (t *FeatureTable) Column(col string) ([]float64, bool) {
	idx := -1
	for i, c := range t.Columns {
		if c == col {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Value returns the value of col for userID.
func (t *FeatureTable) Value(userID, col string) (float64, bool) {
	ci := -1
	for i, c := range t.Columns {
		if c == col {
			ci = i
			break
		}
	}
	if ci < 0 {
		return 0, false
	}
	for i, id := range t.UserIDs {
		if id == userID {
			return t.Rows[i][ci], true
		}
	}
	return 0, false
}

// WriteCSV serializes the table with a leading user_id column.
func (t *FeatureTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{ColUserID}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(header))
	for i, row := range t.Rows {
		record[0] = t.UserIDs[i]
		for j, v := range row {
			record[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Align is the single schema-alignment step. It lays rows out in expected order, creating
// expected-but-missing columns with 0 and dropping columns that are not expected.
func Align(userIDs []string, rows []map[string]float64, expected []string) (*FeatureTable, Drift) {
	var drift Drift
	want := make(map[string]struct{}, len(expected))
	for _, c := range expected {
		want[c] = struct{}{}
	}

	present := make(map[string]struct{})
	for _, row := range rows {
		for col := range row {
			present[col] = struct{}{}
		}
	}
	for _, c := range expected {
		if _, ok := present[c]; !ok && len(rows) > 0 {
			drift.MissingColumns = append(drift.MissingColumns, c)
		}
	}
	for col := range present {
		if _, ok := want[col]; !ok {
			drift.ExtraColumns = append(drift.ExtraColumns, col)
		}
	}
	sort.Strings(drift.ExtraColumns)

	table := &FeatureTable{
		Columns: append([]string(nil), expected...),
		UserIDs: append([]string(nil), userIDs...),
		Rows:    make([][]float64, len(rows)),
	}
	for i, row := range rows {
		out := make([]float64, len(expected))
		for j, c := range expected {
			out[j] = row[c]
		}
		table.Rows[i] = out
	}
	return table, drift
}

// Without returns a copy of the table minus the named columns.
func (t *FeatureTable) Without(cols ...string) *FeatureTable {
	drop := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		drop[c] = struct{}{}
	}
	keep := make([]int, 0, len(t.Columns))
	out := &FeatureTable{UserIDs: append([]string(nil), t.UserIDs...), Rows: make([][]float64, len(t.Rows))}
	for i, c := range t.Columns {
		if _, ok := drop[c]; !ok {
			keep = append(keep, i)
			out.Columns = append(out.Columns, c)
		}
	}
	for i, r := range t.Rows {
		row := make([]float64, len(keep))
		for j, k := range keep {
			row[j] = r[k]
		}
		out.Rows[i] = row
	}
	return out
}

// Realign re-lays an already aligned table onto another expected column set, as done at the
// classifier boundary.
func (t *FeatureTable) Realign(expected []string) (*FeatureTable, Drift) {
	rows := make([]map[string]float64, len(t.Rows))
	for i, r := range t.Rows {
		m := make(map[string]float64, len(t.Columns))
		for j, c := range t.Columns {
			m[c] = r[j]
		}
		rows[i] = m
	}
	return Align(t.UserIDs, rows, expected)
}

func appendUnique(dst []string, vs ...string) []string {
	for _, v := range vs {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
