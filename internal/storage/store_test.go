package storage

import (
	"testing"

	"github.com/san-kum/trajopt/internal/solver"
)

func fakeResult() *solver.Result {
	return &solver.Result{
		X:      [][]float64{{1, 0}, {0.5, -0.5}, {0, 0}},
		U:      [][]float64{{-1}, {-0.5}},
		Status: solver.StatusConverged,
		Stats: solver.Stats{
			Iterations:      7,
			MajorIterations: 2,
			Cost:            []float64{10, 5, 2},
			CMax:            []float64{1, 0.1, 0.001},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	runID, err := st.Save("double_integrator", 0.1, fakeResult())
	if err != nil {
		t.Fatal(err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Model != "double_integrator" || meta.Horizon != 3 {
		t.Errorf("metadata round trip failed: %+v", meta)
	}
	if meta.Status != "Converged" || meta.Iterations != 7 {
		t.Error("solver statistics lost in metadata")
	}
	if len(meta.Cost) != 3 {
		t.Error("cost history lost in metadata")
	}
}

func TestLoadTrajectory(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save("double_integrator", 0.1, fakeResult())
	if err != nil {
		t.Fatal(err)
	}

	states, controls, times, err := st.LoadTrajectory(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 3 || len(controls) != 2 || len(times) != 3 {
		t.Fatalf("lengths: states=%d controls=%d times=%d", len(states), len(controls), len(times))
	}
	if states[0][0] != 1 || controls[1][0] != -0.5 {
		t.Error("trajectory values corrupted in round trip")
	}
	if times[2] < 0.199 || times[2] > 0.201 {
		t.Errorf("time column wrong: %g", times[2])
	}
}

func TestList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatal("fresh store should be empty")
	}

	if _, err := st.Save("pendulum", 0.05, fakeResult()); err != nil {
		t.Fatal(err)
	}
	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Model != "pendulum" {
		t.Error("list should return the saved run")
	}
}
