package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save("double_integrator", 0.1, fakeResult())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "run.json")
	if err := st.ExportJSON(runID, path); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("exported document is not valid JSON: %v", err)
	}

	if data.Model != "double_integrator" || data.Status != "Converged" {
		t.Errorf("metadata fields lost: %+v", data)
	}
	if len(data.States) != 3 || len(data.Controls) != 2 || len(data.Times) != 3 {
		t.Errorf("trajectory lengths: states=%d controls=%d times=%d",
			len(data.States), len(data.Controls), len(data.Times))
	}
	if data.States[0][0] != 1 || data.Controls[1][0] != -0.5 {
		t.Error("trajectory values corrupted in export")
	}
	if len(data.Cost) != 3 || len(data.CMax) != 3 {
		t.Error("convergence histories lost in export")
	}
}

func TestExportJSONUnknownRun(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	if err := st.ExportJSON("missing_0", filepath.Join(t.TempDir(), "out.json")); err == nil {
		t.Error("expected error for unknown run id")
	}
}
