package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/trajopt/internal/solver"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID              string    `json:"id"`
	Model           string    `json:"model"`
	Timestamp       time.Time `json:"timestamp"`
	Dt              float64   `json:"dt"`
	Horizon         int       `json:"horizon"`
	Status          string    `json:"status"`
	Iterations      int       `json:"iterations"`
	MajorIterations int       `json:"major_iterations"`
	Runtime         float64   `json:"runtime"`
	SetupTime       float64   `json:"setup_time"`
	FinalCost       float64   `json:"final_cost"`
	FinalCMax       float64   `json:"final_c_max"`
	Cost            []float64 `json:"cost"`
	CMax            []float64 `json:"c_max"`
}

// Save writes a run directory with metadata.json and trajectory.csv and
// returns the run id.
func (s *Store) Save(model string, dt float64, res *solver.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", model, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:              runID,
		Model:           model,
		Timestamp:       time.Now(),
		Dt:              dt,
		Horizon:         len(res.X),
		Status:          res.Status.String(),
		Iterations:      res.Stats.Iterations,
		MajorIterations: res.Stats.MajorIterations,
		Runtime:         res.Stats.Runtime,
		SetupTime:       res.Stats.SetupTime,
		FinalCost:       res.Stats.FinalCost(),
		FinalCMax:       res.Stats.FinalCMax(),
		Cost:            res.Stats.Cost,
		CMax:            res.Stats.CMax,
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "trajectory.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if len(res.X) == 0 {
		return runID, nil
	}

	header := []string{"time"}
	for i := range res.X[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	numControls := 0
	if len(res.U) > 0 {
		numControls = len(res.U[0])
		for i := 0; i < numControls; i++ {
			header = append(header, fmt.Sprintf("u%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for k := range res.X {
		row := []string{strconv.FormatFloat(float64(k)*dt, 'f', 6, 64)}
		for _, v := range res.X[k] {
			row = append(row, strconv.FormatFloat(v, 'f', 9, 64))
		}
		if k < len(res.U) {
			for _, v := range res.U[k] {
				row = append(row, strconv.FormatFloat(v, 'f', 9, 64))
			}
		} else {
			for i := 0; i < numControls; i++ {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrajectory reads back the states, controls and times of a saved run.
func (s *Store) LoadTrajectory(runID string) (states, controls [][]float64, times []float64, err error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "trajectory.csv"))
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, nil, fmt.Errorf("storage: run %s has no samples", runID)
	}

	header := records[0]
	nx, nu := 0, 0
	for _, h := range header[1:] {
		if len(h) > 0 && h[0] == 'x' {
			nx++
		} else if len(h) > 0 && h[0] == 'u' {
			nu++
		}
	}

	for _, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, nil, nil, err
		}
		times = append(times, t)

		xrow := make([]float64, nx)
		for i := 0; i < nx; i++ {
			if xrow[i], err = strconv.ParseFloat(rec[1+i], 64); err != nil {
				return nil, nil, nil, err
			}
		}
		states = append(states, xrow)

		if nu > 0 && rec[1+nx] != "" {
			urow := make([]float64, nu)
			for i := 0; i < nu; i++ {
				if urow[i], err = strconv.ParseFloat(rec[1+nx+i], 64); err != nil {
					return nil, nil, nil, err
				}
			}
			controls = append(controls, urow)
		}
	}
	return states, controls, times, nil
}
