package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/attractor/internal/analysis"
	"github.com/san-kum/attractor/internal/automation"
	"github.com/san-kum/attractor/internal/config"
	"github.com/san-kum/attractor/internal/dynamo"
	"github.com/san-kum/attractor/internal/experiment"
	"github.com/san-kum/attractor/internal/export"
	"github.com/san-kum/attractor/internal/sim"
	"github.com/san-kum/attractor/internal/storage"
	"github.com/san-kum/attractor/internal/store"
	"github.com/san-kum/attractor/internal/viz"
)

var (
	dataDir string
	verbose bool
	noColor bool

	// run configuration
	configFile      string
	preset          string
	mode            string
	stepper         string
	estimator       string
	stepH           float64
	tolerance       float64
	steps           int
	minH            float64
	maxH            float64
	initState       []float64
	params          map[string]string
	checkDivergence bool

	noSave     bool
	outPath    string
	exportPath string
	timeout    time.Duration

	// views
	plotComponent    int
	analyzeComponent int
	xAxis            int
	yAxis            int
	width            int
	height           int
	orbit            bool
	rotX             float64
	rotY             float64
	svgPath          string

	// studies
	lyapSteps   int
	lyapEps     float64
	perturbEps  float64
	spectrum    bool
	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepPoints int
	trials      int
	seed        int64
	workers     int
)

var logger = slog.New(slog.DiscardHandler)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "attractor",
		Short:         "integrate and inspect chaotic flows",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = newLogger(cmd.ErrOrStderr(), verbose, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".attractor", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "plain log output")

	runCmd := &cobra.Command{
		Use:   "run [field]",
		Short: "integrate a field and save the trajectory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIntegration,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not write the run to the data directory")
	runCmd.Flags().StringVarP(&outPath, "out", "o", "", "also write the trajectory text file here (- for stdout)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the integration after this long")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata and statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot components and step sizes against time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVarP(&plotComponent, "component", "c", -1, "plot only this component")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space projection",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for x-axis")
	phaseCmd.Flags().IntVar(&yAxis, "y-axis", 2, "state index for y-axis")
	phaseCmd.Flags().IntVar(&width, "width", 60, "canvas width in cells")
	phaseCmd.Flags().IntVar(&height, "height", 24, "canvas height in cells")
	phaseCmd.Flags().BoolVar(&orbit, "orbit", false, "rotated 3D view instead of a projection")
	phaseCmd.Flags().Float64Var(&rotX, "rot-x", 0.3, "orbit rotation about x (radians)")
	phaseCmd.Flags().Float64Var(&rotY, "rot-y", 0.6, "orbit rotation about y (radians)")
	phaseCmd.Flags().StringVar(&svgPath, "svg", "", "also write the x/y projection as SVG")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a fixed step run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVarP(&analyzeComponent, "component", "c", 0, "component to analyze")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&exportPath, "out", "o", "-", "output path (- for stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&exportPath, "out", "o", "-", "output path (- for stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [field]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of integrations",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&noSave, "no-save", false, "ignore save flags in the scenario")

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov [field]",
		Short: "estimate the largest Lyapunov exponent",
		Args:  cobra.MaximumNArgs(1),
		RunE:  lyapunov,
	}
	addRunFlags(lyapunovCmd)
	lyapunovCmd.Flags().IntVar(&lyapSteps, "lyap-steps", 50000, "steps of the two trajectory estimate")
	lyapunovCmd.Flags().Float64Var(&lyapEps, "eps", 1e-8, "initial separation")
	lyapunovCmd.Flags().BoolVar(&spectrum, "spectrum", false, "perturb every component separately")

	compareCmd := &cobra.Command{
		Use:   "compare [field] [name] [name] ...",
		Short: "compare steppers (fixed mode) or estimators (adaptive mode) on one field",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compare,
	}
	addRunFlags(compareCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [field]",
		Short: "integrate across a range of one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "sweep", "r", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 10, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 50, "last value")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 5, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 4, "concurrent runs")

	perturbCmd := &cobra.Command{
		Use:   "perturb [field]",
		Short: "integrate perturbed copies of a run and measure their separation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  perturb,
	}
	addRunFlags(perturbCmd)
	perturbCmd.Flags().IntVar(&trials, "trials", 8, "number of perturbed runs")
	perturbCmd.Flags().Float64Var(&perturbEps, "eps", 1e-6, "maximum perturbation per component")
	perturbCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	perturbCmd.Flags().IntVar(&workers, "workers", 4, "concurrent runs")

	rootCmd.AddCommand(runCmd, listCmd, showCmd, plotCmd, phaseCmd, analyzeCmd,
		exportJSONCmd, exportCSVCmd, presetsCmd, scenarioCmd, lyapunovCmd,
		compareCmd, sweepCmd, perturbCmd)

	return rootCmd
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&mode, "mode", config.DefaultConfig().Mode, "fixed or adaptive")
	f.StringVar(&stepper, "stepper", config.DefaultStepper, "rk4 or euler")
	f.StringVar(&estimator, "estimator", config.DefaultEstimator, "doubling or dopri")
	f.Float64Var(&stepH, "h", config.DefaultH, "step size (initial step size in adaptive mode)")
	f.Float64Var(&tolerance, "tol", config.DefaultTolerance, "adaptive error tolerance")
	f.IntVar(&steps, "steps", config.DefaultSteps, "steps (fixed) or controller ticks (adaptive)")
	f.Float64Var(&minH, "min-h", dynamo.DefaultMinH, "adaptive step size floor")
	f.Float64Var(&maxH, "max-h", 0, "adaptive step size ceiling (0 for none)")
	f.Float64SliceVar(&initState, "init", nil, "initial state, comma separated")
	f.StringToStringVarP(&params, "param", "p", nil, "field constant, e.g. -p r=28")
	f.BoolVar(&checkDivergence, "check-divergence", false, "stop at the first non-finite state")
}

// loadRunConfig layers the default config, a preset or config file, the
// field argument and finally any flag the user set explicitly.
func loadRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	switch {
	case preset != "":
		field := config.DefaultField
		if len(args) > 0 {
			field = args[0]
		}
		cfg = config.GetPreset(field, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(field))
		}
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if len(args) > 0 && args[0] != cfg.Field {
		cfg.Field = args[0]
		cfg.Params = nil
		cfg.InitState = nil
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("stepper") {
		cfg.Stepper = stepper
	}
	if flags.Changed("estimator") {
		cfg.Estimator = estimator
	}
	if flags.Changed("h") {
		cfg.H = stepH
	}
	if flags.Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("min-h") {
		cfg.MinH = minH
	}
	if flags.Changed("max-h") {
		cfg.MaxH = maxH
	}
	if flags.Changed("init") {
		cfg.InitState = append([]float64(nil), initState...)
	}
	if flags.Changed("check-divergence") {
		cfg.CheckDivergence = checkDivergence
	}
	if flags.Changed("param") {
		parsed, err := parseParams(params)
		if err != nil {
			return nil, err
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(parsed))
		}
		for k, v := range parsed {
			cfg.Params[k] = v
		}
	}

	return cfg, nil
}

func parseParams(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for k, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func runIntegration(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	exp, err := experiment.New(cfg, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	logger.Info("integrating", "field", cfg.Field, "mode", cfg.Mode, "h", cfg.H, "steps", cfg.Steps)
	result, runErr := exp.Run(ctx)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn("integration stopped early, keeping partial trajectory", "err", runErr)
	}

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := storage.Metadata(cfg, exp.FieldParams(), exp.InitialState(), result)
		if runID, err = st.Save(meta, result.Trajectory); err != nil {
			return err
		}
		logger.Debug("saved run", "id", runID, "dir", st.Dir(runID))
	}

	out := cmd.OutOrStdout()
	if outPath != "" {
		if err := writeTrajectoryFile(outPath, result.Trajectory); err != nil {
			return err
		}
		if outPath == "-" {
			out = cmd.ErrOrStderr()
		}
	}

	fmt.Fprintln(out, runSummary(runID, cfg, exp.FieldParams(), result))
	return runErr
}

func writeTrajectoryFile(path string, tr *dynamo.Trajectory) error {
	if path == "-" {
		return storage.WriteTrajectory(os.Stdout, tr.States)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := storage.WriteTrajectory(f, tr.States); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runSummary(runID string, cfg *config.Config, fieldParams map[string]float64, res *sim.Result) string {
	tr := res.Trajectory
	last, tEnd := tr.Last()

	rows := []viz.Row{}
	if runID != "" {
		rows = append(rows, viz.Rowf("run id", "%s", runID))
	}
	rows = append(rows,
		viz.Rowf("field", "%s %s", cfg.Field, formatParams(fieldParams)),
		viz.Rowf("mode", "%s (%s)", res.Mode, methodName(cfg, res.Mode)),
		viz.Rowf("points", "%d", tr.Len()),
		viz.Rowf("t end", "%.6g", tEnd),
		viz.Rowf("final state", "%s", formatState(last)),
		viz.Rowf("ticks", "%d", tr.Stats.Ticks),
	)
	if res.Mode == sim.ModeAdaptive {
		rows = append(rows,
			viz.Rowf("accepted/grown", "%d/%d", tr.Stats.Accepted, tr.Stats.Grown),
			viz.Rowf("rejected", "%d", tr.Stats.Rejected),
			viz.Rowf("floor hits", "%d", tr.Stats.FloorHits),
			viz.Rowf("estimates", "%d", tr.Stats.Estimates),
		)
	}
	rows = append(rows, viz.Rowf("elapsed", "%v", res.Elapsed.Round(time.Microsecond)))
	for _, name := range sortedNames(res.Metrics) {
		rows = append(rows, viz.Rowf(name, "%.6g", res.Metrics[name]))
	}

	s := viz.Summary("attractor run", rows)
	if res.Mode == sim.ModeAdaptive && tr.Len() > 1 {
		s += "\n" + viz.Subtle.Render("h ") + viz.Sparkline(tr.Steps[1:], 60)
	}
	return s
}

func methodName(cfg *config.Config, m sim.Mode) string {
	if m == sim.ModeAdaptive {
		return cfg.Stepper + ", " + cfg.Estimator
	}
	return cfg.Stepper
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFIELD\tMODE\tTIME\tPOINTS\tT_END\tH")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4g\t%g\n",
			run.ID,
			run.Field,
			run.Mode,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Points,
			run.TEnd,
			run.H,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}

	rows := []viz.Row{
		viz.Rowf("run id", "%s", meta.ID),
		viz.Rowf("saved", "%s", meta.Timestamp.Format(time.RFC3339)),
		viz.Rowf("field", "%s %s", meta.Field, formatParams(meta.Params)),
		viz.Rowf("mode", "%s", meta.Mode),
		viz.Rowf("stepper", "%s", meta.Stepper),
		viz.Rowf("h", "%g", meta.H),
		viz.Rowf("steps", "%d", meta.Steps),
		viz.Rowf("initial state", "%s", formatState(meta.InitState)),
		viz.Rowf("points", "%d", meta.Points),
		viz.Rowf("t end", "%.6g", meta.TEnd),
		viz.Rowf("ticks", "%d", meta.Stats.Ticks),
	}
	if meta.Mode == string(sim.ModeAdaptive) {
		rows = append(rows,
			viz.Rowf("estimator", "%s", meta.Estimator),
			viz.Rowf("tolerance", "%g", meta.Tolerance),
			viz.Rowf("min/max h", "%g/%g", meta.MinH, meta.MaxH),
			viz.Rowf("accepted/grown", "%d/%d", meta.Stats.Accepted, meta.Stats.Grown),
			viz.Rowf("rejected", "%d", meta.Stats.Rejected),
			viz.Rowf("floor hits", "%d", meta.Stats.FloorHits),
		)
	}
	rows = append(rows, viz.Rowf("elapsed", "%v", meta.Elapsed))
	for _, name := range sortedNames(meta.Metrics) {
		rows = append(rows, viz.Rowf(name, "%.6g", meta.Metrics[name]))
	}

	fmt.Fprintln(cmd.OutOrStdout(), viz.Summary(meta.ID, rows))
	return nil
}

func loadRun(runID string) (*storage.RunMetadata, *dynamo.Trajectory, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return nil, nil, err
	}
	if tr.Len() == 0 {
		return nil, nil, fmt.Errorf("run %s has no states", runID)
	}
	return meta, tr, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "field: %s\n", meta.Field)
	fmt.Fprintf(out, "points: %d\n\n", tr.Len())

	dim := len(tr.States[0])
	first, last := 0, dim-1
	if plotComponent >= 0 {
		if plotComponent >= dim {
			return fmt.Errorf("component %d out of range (state has %d)", plotComponent, dim)
		}
		first, last = plotComponent, plotComponent
	}

	for idx := first; idx <= last; idx++ {
		graph := asciigraph.Plot(tr.Component(idx),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(componentName(meta.Field, idx)+" vs step"),
		)
		fmt.Fprintln(out, graph)
		fmt.Fprintln(out)
	}

	if meta.Mode == string(sim.ModeAdaptive) && tr.Len() > 2 {
		graph := asciigraph.Plot(tr.Steps[1:],
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("step size h"),
		)
		fmt.Fprintln(out, graph)
	}

	return nil
}

func componentName(field string, idx int) string {
	switch field {
	case "lorenz", "rossler":
		if idx < 3 {
			return []string{"x", "y", "z"}[idx]
		}
	}
	return fmt.Sprintf("x%d", idx)
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}

	var canvas, caption string
	if orbit {
		canvas, err = viz.Orbit(tr.States, rotX, rotY, width, height)
		caption = fmt.Sprintf("%s orbit (rot-x %.2f, rot-y %.2f)", meta.Field, rotX, rotY)
	} else {
		canvas, err = viz.Phase(tr.States, xAxis, yAxis, width, height)
		caption = fmt.Sprintf("%s: %s vs %s", meta.Field,
			componentName(meta.Field, yAxis), componentName(meta.Field, xAxis))
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, viz.Title.Render(caption))
	fmt.Fprint(out, canvas)

	if svgPath != "" {
		return writeSVG(svgPath, tr)
	}
	return nil
}

func writeSVG(path string, tr *dynamo.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.PhaseSVG(f, tr.States, xAxis, yAxis, 8*width, 16*height, export.DefaultStroke); err != nil {
		f.Close()
		return err
	}
	logger.Info("wrote svg", "path", path)
	return f.Close()
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if meta.Mode != string(sim.ModeFixed) {
		return fmt.Errorf("run %s is %s; frequency analysis needs uniform steps", meta.ID, meta.Mode)
	}
	if analyzeComponent < 0 || analyzeComponent >= len(tr.States[0]) {
		return fmt.Errorf("analyzeComponent %d out of range", analyzeComponent)
	}

	series := tr.Component(analyzeComponent)
	power := analysis.PowerSpectrum(series)
	freq := analysis.DominantFrequency(series, meta.H)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "analyzeComponent: %s\n", componentName(meta.Field, analyzeComponent))
	fmt.Fprintf(out, "dominant frequency: %.6g (period %.6g)\n\n", freq, 1/freq)

	n := len(power) / 2
	if n > 200 {
		n = 200
	}
	if n < 2 {
		return nil
	}
	graph := asciigraph.Plot(power[1:n],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum ("+componentName(meta.Field, analyzeComponent)+")"),
	)
	fmt.Fprintln(out, graph)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if exportPath == "-" {
		return store.WriteJSON(cmd.OutOrStdout(), store.NewExportData(meta, tr))
	}
	return store.ExportJSON(exportPath, store.NewExportData(meta, tr))
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if exportPath == "-" {
		return store.WriteCSV(cmd.OutOrStdout(), tr)
	}
	return store.ExportCSV(exportPath, tr)
}

func listPresets(cmd *cobra.Command, args []string) error {
	fields := make([]string, 0, len(config.Presets))
	if len(args) > 0 {
		fields = append(fields, args[0])
	} else {
		for f := range config.Presets {
			fields = append(fields, f)
		}
		sort.Strings(fields)
	}

	out := cmd.OutOrStdout()
	for _, field := range fields {
		presets := config.ListPresets(field)
		if len(presets) == 0 {
			fmt.Fprintf(out, "no presets for field: %s\n", field)
			continue
		}
		fmt.Fprintf(out, "presets for %s:\n", field)
		for _, p := range presets {
			cfg := config.GetPreset(field, p)
			fmt.Fprintf(out, "  %-10s %s h=%g steps=%d\n", p, cfg.Mode, cfg.H, cfg.Steps)
		}
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	var st *storage.Store
	if !noSave {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	results, err := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry(), st, logger)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tMODE\tPOINTS\tT_END\tID")
	for _, r := range results {
		_, tEnd := r.Result.Trajectory.Last()
		fmt.Fprintf(w, "%s\t%s\t%d\t%.4g\t%s\n", r.Name, r.Result.Mode, r.Result.Trajectory.Len(), tEnd, r.RunID)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

func lyapunov(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	exp, err := experiment.New(cfg, reg, logger)
	if err != nil {
		return err
	}
	st, err := reg.GetStepper(cfg.Stepper)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	x0 := exp.InitialState()
	if spectrum {
		exps := analysis.LyapunovSpectrum(exp.Field(), st, x0, cfg.H, lyapSteps, lyapEps)
		for i, l := range exps {
			fmt.Fprintf(out, "lambda[%s] = %.6f\n", componentName(cfg.Field, i), l)
		}
		return nil
	}

	l := analysis.LyapunovExponent(exp.Field(), st, x0, cfg.H, lyapSteps, lyapEps)
	verdict := "not chaotic"
	if l > 0 {
		verdict = "chaotic"
	}
	fmt.Fprintf(out, "largest Lyapunov exponent: %.6f (%s)\n", l, verdict)
	return nil
}

func compare(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args[:1])
	if err != nil {
		return err
	}
	runMode, err := cfg.RunMode()
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()

	out := cmd.OutOrStdout()
	kind := "stepper"
	if runMode == sim.ModeAdaptive {
		kind = "estimator"
	}
	fmt.Fprintf(out, "comparing %ss for %s (%s, h=%g, steps=%d)\n\n", kind, cfg.Field, runMode, cfg.H, cfg.Steps)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(kind)+"\tPOINTS\tREJECTED\tT_END\tFINAL\tDIST\tTIME_MS")

	var reference dynamo.State
	for _, name := range args[1:] {
		c := cfg.Clone()
		if runMode == sim.ModeAdaptive {
			c.Estimator = name
		} else {
			c.Stepper = name
		}

		exp, err := experiment.New(c, reg, nil)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}
		res, err := exp.Run(cmd.Context())
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}

		final, tEnd := res.Trajectory.Last()
		if reference == nil {
			reference = final
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.4g\t%s\t%.3e\t%.2f\n",
			name,
			res.Trajectory.Len(),
			res.Trajectory.Stats.Rejected,
			tEnd,
			formatState(final),
			final.Distance(reference),
			float64(res.Elapsed.Microseconds())/1000,
		)
	}

	return w.Flush()
}

func sweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return err
	}

	sw := &automation.ParameterSweep{
		Base:    cfg,
		Param:   sweepParam,
		Min:     sweepMin,
		Max:     sweepMax,
		Points:  sweepPoints,
		Workers: workers,
	}
	results, err := automation.RunSweep(cmd.Context(), sw, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tPOINTS\tMAX_ABS\tFINAL\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		if r.Diverged {
			fmt.Fprintf(w, "%g\t%d\t-\tdiverged\n", r.Value, r.Points)
			continue
		}
		fmt.Fprintf(w, "%g\t%d\t%.4g\t%s\n", r.Value, r.Points, r.MaxAbs, formatState(r.FinalState))
	}
	return w.Flush()
}

func perturb(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd, args)
	if err != nil {
		return err
	}

	study := &automation.PerturbationStudy{
		Base:         cfg,
		Perturbation: perturbEps,
		Trials:       trials,
		Seed:         seed,
		Workers:      workers,
	}
	ref, results, err := automation.RunPerturbation(cmd.Context(), study, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	refFinal, tEnd := ref.Trajectory.Last()
	fmt.Fprintf(out, "reference final state at t=%.4g: %s\n\n", tEnd, formatState(refFinal))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tFINAL\tSEPARATION")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%.4e\n", r.Trial, formatState(r.FinalState), r.Separation)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	mean, maxSep := automation.SeparationStats(results)
	fmt.Fprintf(out, "\nseparation mean %.4e, max %.4e (initial <= %.1e)\n", mean, maxSep, perturbEps)
	return nil
}

func formatState(s []float64) string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatParams(p map[string]float64) string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p))
	for _, k := range sortedNames(p) {
		parts = append(parts, fmt.Sprintf("%s=%g", k, p[k]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
