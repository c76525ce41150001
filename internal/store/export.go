package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/storage"
)

// ExportData is the JSON form of a run. Non-finite values from a diverged
// run are written as "NaN", "+Inf" or "-Inf".
type ExportData struct {
	RunID     string             `json:"run_id,omitempty"`
	Field     string             `json:"field"`
	Mode      string             `json:"mode"`
	Params    map[string]float64 `json:"params"`
	H         float64            `json:"h"`
	Tolerance float64            `json:"tolerance,omitempty"`
	Points    int                `json:"points"`
	Stats     dynamo.Stats       `json:"stats"`
	Metrics   storage.Metrics    `json:"metrics"`
	Times     []storage.Float    `json:"times"`
	StepSizes []storage.Float    `json:"step_sizes"`
	States    [][]storage.Float  `json:"states"`
}

func NewExportData(meta *storage.RunMetadata, tr *dynamo.Trajectory) ExportData {
	data := ExportData{
		RunID:     meta.ID,
		Field:     meta.Field,
		Mode:      meta.Mode,
		Params:    meta.Params,
		H:         meta.H,
		Tolerance: meta.Tolerance,
		Points:    tr.Len(),
		Stats:     tr.Stats,
		Metrics:   meta.Metrics,
		Times:     storage.Floats(tr.Times),
		StepSizes: storage.Floats(tr.Steps),
		States:    make([][]storage.Float, len(tr.States)),
	}
	for i, s := range tr.States {
		data.States[i] = storage.Floats(s)
	}
	return data
}

func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteCSV emits one row per state: time, step size, then x0..xn.
func WriteCSV(w io.Writer, tr *dynamo.Trajectory) error {
	cw := csv.NewWriter(w)
	if tr.Len() == 0 {
		cw.Flush()
		return cw.Error()
	}

	header := []string{"time", "h"}
	for i := range tr.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, s := range tr.States {
		row := make([]string, 0, len(s)+2)
		row = append(row,
			strconv.FormatFloat(tr.Times[i], 'g', -1, 64),
			strconv.FormatFloat(tr.Steps[i], 'g', -1, 64),
		)
		for _, val := range s {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportJSON writes to path, or to stdout when path is "-".
func ExportJSON(path string, data ExportData) error {
	return toPath(path, func(w io.Writer) error { return WriteJSON(w, data) })
}

func ExportCSV(path string, tr *dynamo.Trajectory) error {
	return toPath(path, func(w io.Writer) error { return WriteCSV(w, tr) })
}

func toPath(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
