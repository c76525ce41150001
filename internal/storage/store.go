package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/attractor/internal/config"
	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/sim"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.txt"
	stepsFile      = "steps.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Field     string             `json:"field"`
	Mode      string             `json:"mode"`
	Timestamp time.Time          `json:"timestamp"`
	Stepper   string             `json:"stepper"`
	Estimator string             `json:"estimator,omitempty"`
	H         float64            `json:"h"`
	Tolerance float64            `json:"tolerance,omitempty"`
	Steps     int                `json:"steps"`
	MinH      float64            `json:"min_h,omitempty"`
	MaxH      float64            `json:"max_h,omitempty"`
	InitState []float64          `json:"init_state"`
	Params    map[string]float64 `json:"params"`
	Points    int                `json:"points"`
	TEnd      float64            `json:"t_end"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
	Stats     dynamo.Stats       `json:"stats"`
	Metrics   Metrics            `json:"metrics"`
}

// Metadata describes a finished run. params are the constants the field
// actually used, defaults included.
func Metadata(cfg *config.Config, params map[string]float64, x0 dynamo.State, res *sim.Result) RunMetadata {
	meta := RunMetadata{
		Field:     cfg.Field,
		Mode:      string(res.Mode),
		Stepper:   cfg.Stepper,
		H:         cfg.H,
		Steps:     cfg.Steps,
		InitState: append([]float64(nil), x0...),
		Params:    params,
		Points:    res.Trajectory.Len(),
		Elapsed:   res.Elapsed,
		Stats:     res.Trajectory.Stats,
		Metrics:   res.Metrics,
	}
	if res.Mode == sim.ModeAdaptive {
		meta.Estimator = cfg.Estimator
		meta.Tolerance = cfg.Tolerance
		meta.MinH = cfg.MinH
		meta.MaxH = cfg.MaxH
	}
	_, meta.TEnd = res.Trajectory.Last()
	return meta
}

// Save writes metadata.json, trajectory.txt and steps.csv into a fresh run
// directory and returns its id. The files are written to a temporary
// directory that is renamed into place, so a failed save leaves no run behind.
func (s *Store) Save(meta RunMetadata, tr *dynamo.Trajectory) (string, error) {
	meta.ID = fmt.Sprintf("%s_%s", meta.Field, uuid.Must(uuid.NewV7()).String())
	meta.Timestamp = time.Now()
	meta.Points = tr.Len()

	if err := s.Init(); err != nil {
		return "", err
	}
	tmpDir, err := os.MkdirTemp(s.baseDir, ".save-")
	if err != nil {
		return "", err
	}
	if err := os.Chmod(tmpDir, 0755); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}

	if err := writeRun(tmpDir, meta, tr); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	if err := os.Rename(tmpDir, s.Dir(meta.ID)); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	return meta.ID, nil
}

func writeRun(dir string, meta RunMetadata, tr *dynamo.Trajectory) error {
	err := writeFile(filepath.Join(dir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", metadataFile, err)
	}

	err = writeFile(filepath.Join(dir, trajectoryFile), func(w io.Writer) error {
		return WriteTrajectory(w, tr.States)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", trajectoryFile, err)
	}

	err = writeFile(filepath.Join(dir, stepsFile), func(w io.Writer) error {
		return writeSteps(w, tr)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", stepsFile, err)
	}
	return nil
}

// writeFile reports the Close error when write itself succeeded.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func writeSteps(w io.Writer, tr *dynamo.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "h"}); err != nil {
		return err
	}
	for i := range tr.Times {
		row := []string{
			strconv.FormatFloat(tr.Times[i], 'g', -1, 64),
			strconv.FormatFloat(tr.Steps[i], 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// List returns every readable run, oldest first. Directories without valid
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}

	return &meta, nil
}

// LoadTrajectory rebuilds the trajectory of a saved run, including its step
// log and statistics.
func (s *Store) LoadTrajectory(runID string) (*dynamo.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	trajFile, err := os.Open(filepath.Join(s.Dir(runID), trajectoryFile))
	if err != nil {
		return nil, err
	}
	defer trajFile.Close()

	states, err := ReadTrajectory(trajFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", trajectoryFile, err)
	}

	times, steps, err := s.loadSteps(runID)
	if err != nil {
		return nil, err
	}
	if len(times) != len(states) {
		return nil, fmt.Errorf("%s: %d steps for %d states", runID, len(times), len(states))
	}

	return &dynamo.Trajectory{States: states, Times: times, Steps: steps, Stats: meta.Stats}, nil
}

func (s *Store) loadSteps(runID string) ([]float64, []float64, error) {
	f, err := os.Open(filepath.Join(s.Dir(runID), stepsFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", stepsFile, err)
	}
	if len(records) < 1 {
		return nil, nil, fmt.Errorf("%s: missing header", stepsFile)
	}

	times := make([]float64, 0, len(records)-1)
	steps := make([]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", stepsFile, i+1, err)
		}
		h, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", stepsFile, i+1, err)
		}
		times = append(times, t)
		steps = append(steps, h)
	}

	return times, steps, nil
}
