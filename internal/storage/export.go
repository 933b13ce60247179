package storage

import (
	"encoding/json"
	"io"
	"os"
)

// ExportData is the flat single-document form of a solved run, for handing
// to external tooling.
type ExportData struct {
	Model      string      `json:"model"`
	Status     string      `json:"status"`
	Dt         float64     `json:"dt"`
	Horizon    int         `json:"horizon"`
	Iterations int         `json:"iterations"`
	Times      []float64   `json:"times"`
	States     [][]float64 `json:"states"`
	Controls   [][]float64 `json:"controls"`
	Cost       []float64   `json:"cost"`
	CMax       []float64   `json:"c_max"`
}

func exportData(meta *RunMetadata, states, controls [][]float64, times []float64) ExportData {
	return ExportData{
		Model:      meta.Model,
		Status:     meta.Status,
		Dt:         meta.Dt,
		Horizon:    meta.Horizon,
		Iterations: meta.Iterations,
		Times:      times,
		States:     states,
		Controls:   controls,
		Cost:       meta.Cost,
		CMax:       meta.CMax,
	}
}

// ExportJSON writes a saved run to path as one indented JSON document.
func (s *Store) ExportJSON(runID, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.exportJSON(runID, file)
}

// ExportJSONStdout writes a saved run to stdout as one indented JSON
// document.
func (s *Store) ExportJSONStdout(runID string) error {
	return s.exportJSON(runID, os.Stdout)
}

func (s *Store) exportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	states, controls, times, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(meta, states, controls, times))
}
