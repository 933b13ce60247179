package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/trajopt/internal/config"
	"github.com/san-kum/trajopt/internal/cost"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/physics"
	"github.com/san-kum/trajopt/internal/solver"
	"github.com/san-kum/trajopt/internal/storage"
	"github.com/san-kum/trajopt/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	integrator string
	horizon    int
	dt         float64
	verbose    bool
	infeasible bool
	resolve    bool
	sqrtBP     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trajopt",
		Short: "constrained trajectory optimization (iLQR + augmented Lagrangian)",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".trajopt", "data directory")

	solveCmd := &cobra.Command{
		Use:   "solve [model]",
		Short: "solve a trajectory optimization problem",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	solveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	solveCmd.Flags().StringVar(&integrator, "integrator", "rk4", "discretization when the config names none (euler, midpoint, rk4)")
	solveCmd.Flags().IntVar(&horizon, "horizon", 0, "knot points")
	solveCmd.Flags().Float64Var(&dt, "dt", 0, "timestep")
	solveCmd.Flags().BoolVar(&verbose, "verbose", false, "print iteration table")
	solveCmd.Flags().BoolVar(&infeasible, "infeasible", false, "infeasible start from interpolated states")
	solveCmd.Flags().BoolVar(&resolve, "resolve", true, "resolve feasible after infeasible phase")
	solveCmd.Flags().BoolVar(&sqrtBP, "square-root", false, "square-root backward pass")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "solve with live progress view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	liveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	liveCmd.Flags().StringVar(&integrator, "integrator", "rk4", "discretization when the config names none")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list solved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run trajectories and convergence",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "benchmark solver on a model",
		Args:  cobra.ExactArgs(1),
		RunE:  benchModel,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run trajectory to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets(args[0])
			if len(names) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range names {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(solveCmd, liveCmd, listCmd, plotCmd, benchCmd, exportCSVCmd, exportJSONCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildModel(name, method string) (dynamo.Model, error) {
	switch name {
	case "double_integrator":
		return physics.NewDiscreteDoubleIntegrator(), nil
	case "pendulum":
		return dynamo.Discretize(physics.NewPendulum(), method)
	case "cartpole":
		return dynamo.Discretize(physics.NewCartPole(), method)
	default:
		return nil, fmt.Errorf("unknown model: %s", name)
	}
}

func loadConfig(model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Model = model

	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		cfg.Model = model
	}
	if horizon > 0 {
		cfg.N = horizon
	}
	if dt > 0 {
		cfg.Dt = dt
	}
	return cfg, nil
}

func buildProblem(cfg *config.Config) (solver.Problem, *solver.Options, error) {
	if cfg.Integrator == "" {
		cfg.Integrator = integrator
	}
	model, err := buildModel(cfg.Model, cfg.Integrator)
	if err != nil {
		return solver.Problem{}, nil, err
	}

	n, m := model.StateDim(), model.ControlDim()
	if len(cfg.X0) != n || len(cfg.Xf) != n {
		return solver.Problem{}, nil, fmt.Errorf("x0/xf must have length %d for %s", n, cfg.Model)
	}

	obj := cost.Diagonal(n, m, cfg.Q, cfg.R, cfg.Qf, cfg.Xf)

	p := solver.Problem{
		Model:        model,
		Cost:         obj,
		N:            cfg.N,
		Dt:           cfg.Dt,
		X0:           cfg.X0,
		ControlLower: cfg.ControlLower,
		ControlUpper: cfg.ControlUpper,
		StateLower:   cfg.StateLower,
		StateUpper:   cfg.StateUpper,
	}
	if cfg.Goal {
		p.Goal = cfg.Xf
	}

	opts := cfg.Solver
	opts.Verbose = opts.Verbose || verbose
	opts.SquareRoot = opts.SquareRoot || sqrtBP
	if infeasible {
		opts.Infeasible = true
		opts.ResolveFeasible = resolve
		p.XGuess = interpolate(cfg.X0, cfg.Xf, cfg.N)
	}
	return p, &opts, nil
}

func interpolate(x0, xf []float64, n int) [][]float64 {
	out := make([][]float64, n)
	for k := 0; k < n; k++ {
		t := float64(k) / float64(n-1)
		row := make([]float64, len(x0))
		for i := range row {
			row[i] = (1-t)*x0[i] + t*xf[i]
		}
		out[k] = row
	}
	return out
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	p, opts, err := buildProblem(cfg)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s, err := solver.New(p, opts)
	if err != nil {
		return err
	}

	fmt.Printf("solving %s (N=%d, dt=%.4f)...\n", cfg.Model, cfg.N, cfg.Dt)
	start := time.Now()
	res, err := s.Solve()
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg.Model, cfg.Dt, res)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("status: %s\n", res.Status)
	fmt.Printf("iterations: %d (major: %d)\n", res.Stats.Iterations, res.Stats.MajorIterations)
	fmt.Printf("final cost: %.6f\n", res.Stats.FinalCost())
	if res.Stats.FinalCMax() > 0 {
		fmt.Printf("final c_max: %.3e\n", res.Stats.FinalCMax())
	}
	if res.Stats.Infeasible != nil {
		fmt.Printf("infeasible phase: %d iterations, final cost %.6f\n",
			res.Stats.Infeasible.Iterations, res.Stats.Infeasible.FinalCost())
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	p, opts, err := buildProblem(cfg)
	if err != nil {
		return err
	}
	opts.Verbose = false

	s, err := solver.New(p, opts)
	if err != nil {
		return err
	}

	m := viz.NewModel(cfg.Model)
	s.AddObserver(m.Observer())

	go func() {
		res, err := s.Solve()
		if err != nil {
			m.Finish(solver.StatusLineSearchFailed)
			return
		}
		m.Finish(res.Status)
	}()

	prog := tea.NewProgram(m)
	if _, err := prog.Run(); err != nil {
		return err
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tN\tDT\tSTATUS\tITERS\tCOST\tC_MAX")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f\t%s\t%d\t%.4f\t%.2e\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Horizon,
			run.Dt,
			run.Status,
			run.Iterations,
			run.FinalCost,
			run.FinalCMax,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	states, controls, _, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("status: %s\n\n", meta.Status)

	numVars := len(states[0])
	if numVars > 6 {
		numVars = 6
	}
	for varIdx := 0; varIdx < numVars; varIdx++ {
		data := make([]float64, len(states))
		for i := range states {
			data[i] = states[i][varIdx]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("x%d vs knot", varIdx)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	if len(controls) > 0 {
		data := make([]float64, len(controls))
		for i := range controls {
			data[i] = controls[i][0]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("u0 vs knot"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	if len(meta.Cost) > 1 {
		graph := asciigraph.Plot(meta.Cost,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("cost vs iteration"),
		)
		fmt.Println(graph)
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	states, controls, times, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"time"}
	for i := range states[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	numControls := 0
	if len(controls) > 0 {
		numControls = len(controls[0])
		for i := 0; i < numControls; i++ {
			header = append(header, fmt.Sprintf("u%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if i < len(controls) {
			for _, val := range controls[i] {
				row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return st.ExportJSONStdout(args[0])
}

func benchModel(cmd *cobra.Command, args []string) error {
	model := args[0]

	horizons := []int{51, 101, 201}
	dts := []float64{0.05, 0.1}

	fmt.Printf("benchmarking %s\n\n", model)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tDT\tITERS\tSTATUS\tTIME")

	for _, n := range horizons {
		for _, step := range dts {
			cfg := config.DefaultConfig()
			cfg.Model = model
			cfg.N = n
			cfg.Dt = step
			if p := config.GetPreset(model, defaultPreset(model)); p != nil {
				cfg = p
				cfg.N = n
				cfg.Dt = step
			}
			p, opts, err := buildProblem(cfg)
			if err != nil {
				return err
			}
			s, err := solver.New(p, opts)
			if err != nil {
				return err
			}
			start := time.Now()
			res, err := s.Solve()
			if err != nil {
				fmt.Fprintf(w, "%d\t%.4f\terror: %v\n", n, step, err)
				continue
			}
			fmt.Fprintf(w, "%d\t%.4f\t%d\t%s\t%v\n", n, step, res.Stats.Iterations, res.Status, time.Since(start))
		}
	}
	return w.Flush()
}

func defaultPreset(model string) string {
	switch model {
	case "cartpole":
		return "stabilize"
	case "pendulum":
		return "swingup"
	default:
		return "lqr"
	}
}
