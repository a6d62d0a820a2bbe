// Package dataset loads labelled heart disease records for training.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"heart-predictor/internal/features"
)

// UCIColumns is the column layout of the headerless processed.cleveland.data file.
var UCIColumns = []string{
	"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
	"thalach", "exang", "oldpeak", "slope", "ca", "thal", "target",
}

// MissingMarker is the UCI placeholder for an unknown value.
const MissingMarker = "?"

var ErrNoRows = errors.New("dataset has no usable rows")

// Dataset holds feature rows in canonical order with binary labels.
type Dataset struct {
	Rows    [][]float64
	Labels  []float64
	Dropped int
	Source  string
}

// Options controls CSV parsing.
type Options struct {
	// Target names the label column. Values above zero become class 1.
	Target string
	// Columns names the columns of a headerless file. When empty the first record is a
	// header if none of its cells is numeric, otherwise UCIColumns is used.
	Columns []string
}

func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Positives counts rows labelled 1.
func (d *Dataset) Positives() int {
	n := 0
	for _, y := range d.Labels {
		if y == 1 {
			n++
		}
	}
	return n
}

// Matrix copies the rows into a dense design matrix.
func (d *Dataset) Matrix() *mat.Dense {
	m := mat.NewDense(len(d.Rows), features.Count, nil)
	for i, row := range d.Rows {
		m.SetRow(i, row)
	}
	return m
}

// Subset returns the rows at idx, in that order.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		Rows:   make([][]float64, len(idx)),
		Labels: make([]float64, len(idx)),
		Source: d.Source,
	}
	for i, j := range idx {
		out.Rows[i] = d.Rows[j]
		out.Labels[i] = d.Labels[j]
	}
	return out
}

// LoadFile reads a CSV dataset from disk.
func LoadFile(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Source = path
	return ds, nil
}

// Read parses CSV records. Rows containing MissingMarker or empty cells are dropped and
// counted; any other non-numeric cell is an error.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	if opts.Target == "" {
		return nil, fmt.Errorf("target column is required")
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRows
	}

	columns := opts.Columns
	first := 0
	if len(columns) == 0 {
		if isHeader(records[0]) {
			columns = normalize(records[0])
			first = 1
		} else {
			columns = UCIColumns
		}
	}

	target, index, err := resolve(columns, opts.Target)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{}
	for n, rec := range records[first:] {
		line := n + first + 1
		if len(rec) != len(columns) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(columns), len(rec))
		}
		if hasMissing(rec) {
			ds.Dropped++
			continue
		}

		row := make([]float64, features.Count)
		for i, col := range index {
			v, err := parseCell(rec[col])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, columns[col], err)
			}
			row[i] = v
		}
		label, err := parseCell(rec[target])
		if err != nil {
			return nil, fmt.Errorf("line %d column %s: %w", line, columns[target], err)
		}

		y := 0.0
		if label > 0 {
			y = 1
		}
		ds.Rows = append(ds.Rows, row)
		ds.Labels = append(ds.Labels, y)
	}

	if ds.Len() == 0 {
		return nil, ErrNoRows
	}
	return ds, nil
}

// resolve locates the target column and maps each canonical feature to its column.
func resolve(columns []string, target string) (int, []int, error) {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}

	t, ok := pos[target]
	if !ok {
		return 0, nil, fmt.Errorf("target column %q not found", target)
	}

	names := features.Names()
	index := make([]int, len(names))
	for i, name := range names {
		j, ok := pos[name]
		if !ok {
			return 0, nil, fmt.Errorf("feature column %q not found", name)
		}
		index[i] = j
	}
	return t, index, nil
}

func isHeader(rec []string) bool {
	for _, cell := range rec {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
			return false
		}
	}
	return true
}

func normalize(rec []string) []string {
	out := make([]string, len(rec))
	for i, c := range rec {
		out[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return out
}

func hasMissing(rec []string) bool {
	for _, cell := range rec {
		c := strings.TrimSpace(cell)
		if c == "" || c == MissingMarker {
			return true
		}
	}
	return false
}

func parseCell(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// WriteCSV writes d with a header row of the canonical names and the target column.
func WriteCSV(w io.Writer, d *Dataset, target string) error {
	cw := csv.NewWriter(w)
	header := append(features.Names(), target)
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(header))
	for i, row := range d.Rows {
		for j, v := range row {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		rec[len(rec)-1] = strconv.FormatFloat(d.Labels[i], 'g', -1, 64)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
