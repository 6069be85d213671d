package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/dronetrace/internal/config"
	"github.com/san-kum/dronetrace/internal/experiment"
	"github.com/san-kum/dronetrace/internal/export"
	"github.com/san-kum/dronetrace/internal/storage"
	"github.com/san-kum/dronetrace/internal/trace"
	"github.com/san-kum/dronetrace/internal/viz"
)

var (
	outputFolder string
	logLevel     string
	configFile   string
	preset       string

	physicsMode string
	droneName   string
	controller  string
	traceFile   string
	seed        int64
	gui         bool
	recordVideo bool
	colab       bool
	plotRun     bool

	kind     string
	rate     int
	duration float64
	targetZ  float64

	plotFormat string
	jsonOut    string

	params     []string
	metric     string
	workers    int
	top        int
	saveConfig string
	runs       int
)

// main runs the chosen command and exits with status 1 when it fails.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dronetrace",
		Short:         "replay recorded quadrotor flights against a simulated controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&outputFolder, "output-folder", config.DefaultOutputFolder, "folder for runs, logs and plots")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "fly the simulated drone along a reference trace and record both",
		Args:  cobra.NoArgs,
		RunE:  runCompare,
	}
	addRunFlags(compareCmd)
	compareCmd.Flags().BoolVar(&gui, "gui", false, "live terminal view, paced to wall-clock time")
	compareCmd.Flags().BoolVar(&recordVideo, "record-video", false, "save one side-view frame per simulated second")
	compareCmd.Flags().BoolVar(&colab, "colab", false, "notebook mode: no live view, no terminal charts")
	compareCmd.Flags().BoolVar(&plotRun, "plot", false, "write PNG plots of the run")

	generateCmd := &cobra.Command{
		Use:   "generate [path]",
		Short: "write a synthetic reference trace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  generateTrace,
	}
	generateCmd.Flags().StringVar(&configFile, "config", "", "config file whose profile section is used")
	generateCmd.Flags().StringVar(&preset, "preset", "", "use a preset's profile")
	generateCmd.Flags().StringVar(&kind, "kind", string(trace.KindHover), "hover or sweep")
	generateCmd.Flags().IntVar(&rate, "rate", 100, "samples per second")
	generateCmd.Flags().Float64Var(&duration, "duration", 5, "length in seconds")
	generateCmd.Flags().Float64Var(&targetZ, "target-z", 1, "target altitude in meters")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a run (latest when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotStored,
	}
	plotCmd.Flags().StringVar(&plotFormat, "format", "png", "png or svg")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&jsonOut, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets and registered models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
			fmt.Printf("drones:      %v\n", reg.ListDrones())
			fmt.Printf("controllers: %v\n", reg.ListControllers())
			fmt.Printf("physics:     %v\n", reg.ListPhysics())
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the default (or a preset's) configuration as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "dronetrace.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := baseConfig()
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a named preset")

	tuneCmd := &cobra.Command{
		Use:     "tune",
		Short:   "grid-search controller gains against the reference trace",
		Example: "  dronetrace tune --param p_for.z=0.8,1.25,1.6 --param d_for.z=0.3,0.5 --save tuned.yaml",
		Args:    cobra.NoArgs,
		RunE:    runTune,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&params, "param", nil, "gain axis as name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metric, "metric", "tracking_rmse", "metric to minimize")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0: one per CPU)")
	tuneCmd.Flags().IntVar(&top, "top", 10, "trials to print")
	tuneCmd.Flags().StringVar(&saveConfig, "save", "", "write the config with the best gains to this path")
	_ = tuneCmd.MarkFlagRequired("param")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "repeat a run over consecutive noise seeds and summarize the metrics",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	addRunFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&runs, "runs", 8, "number of seeds")
	ensembleCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0: one per CPU)")

	rootCmd.AddCommand(compareCmd, generateCmd, listCmd, plotCmd, exportJSONCmd, presetsCmd, initCmd, tuneCmd, ensembleCmd)
	return rootCmd
}

// addRunFlags registers the flags that select what a comparison flies.
func addRunFlags(c *cobra.Command) {
	c.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	c.Flags().StringVar(&preset, "preset", "", "start from a named preset")
	c.Flags().StringVar(&physicsMode, "physics", config.DefaultPhysics, "physics mode: dyn, rk4, gnd, drag, gnd_drag")
	c.Flags().StringVar(&droneName, "drone", config.DefaultDrone, "drone model")
	c.Flags().StringVar(&controller, "controller", config.DefaultController, "controller")
	c.Flags().StringVar(&traceFile, "trace-file", "", "reference trace (.msgpack or .msgpack.zst); empty uses the built-in example")
	c.Flags().Int64Var(&seed, "seed", 0, "sensor noise seed")
}

// baseConfig is the preset (or defaults) replaced wholesale by the config
// file when one is given.
func baseConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	return cfg, nil
}

// resolveConfig layers flags the user actually set over baseConfig.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := baseConfig()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("output-folder") || cfg.OutputFolder == "" {
		cfg.OutputFolder = outputFolder
	}
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("physics") {
		cfg.Physics = physicsMode
	}
	if flags.Changed("drone") {
		cfg.Drone = droneName
	}
	if flags.Changed("controller") {
		cfg.Controller = controller
	}
	if flags.Changed("trace-file") {
		cfg.TraceFile = traceFile
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("gui") {
		cfg.GUI = gui
	}
	if flags.Changed("record-video") {
		cfg.RecordVideo = recordVideo
	}
	if flags.Changed("colab") {
		cfg.Colab = colab
	}
	if flags.Changed("plot") {
		cfg.Plot = plotRun
	}
	return cfg, cfg.Validate()
}

func generateTrace(cmd *cobra.Command, args []string) error {
	path := "example_trace.msgpack"
	if len(args) > 0 {
		path = args[0]
	}
	cfg, err := baseConfig()
	if err != nil {
		return err
	}
	p := cfg.Profile
	flags := cmd.Flags()
	if flags.Changed("kind") {
		p.Kind = trace.Kind(kind)
	}
	if flags.Changed("rate") {
		p.Rate = rate
	}
	if flags.Changed("duration") {
		p.Duration = duration
	}
	if flags.Changed("target-z") {
		p.Target.Z = targetZ
	}

	tr, err := trace.Synthesize(p)
	if err != nil {
		return err
	}
	if err := trace.Save(path, tr); err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d samples, %d Hz, %d s\n", path, tr.SampleCount(), tr.Rate(), tr.Duration())
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(outputFolder)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDRONE\tPHYSICS\tCTRL\tRATE\tSTEPS\tRMSE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dHz\t%d\t%.4f\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Drone,
			run.Physics,
			run.Controller,
			run.Rate,
			run.Steps,
			run.Metrics["tracking_rmse"],
		)
	}
	return w.Flush()
}

// lookupRun resolves args[0], or the latest run when no id is given.
func lookupRun(st *storage.Store, args []string) (*storage.RunMetadata, error) {
	if len(args) > 0 {
		return st.Load(args[0])
	}
	return st.Latest()
}

func plotStored(cmd *cobra.Command, args []string) error {
	st := storage.New(outputFolder)
	meta, err := lookupRun(st, args)
	if err != nil {
		return err
	}
	snap, err := st.LoadTracks(meta.ID)
	if err != nil {
		return err
	}

	paths, err := export.PlotRun(filepath.Join(st.RunDir(meta.ID), "plots"), snap, plotFormat)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s (%s, %s, %s)\n\n", meta.ID, meta.Drone, meta.Physics, meta.Controller)
	fmt.Println(viz.AltitudeChart(snap, 80, 10))
	fmt.Println()
	for _, p := range paths {
		fmt.Printf("wrote %s\n", p)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(outputFolder)
	meta, err := lookupRun(st, args)
	if err != nil {
		return err
	}
	snap, err := st.LoadTracks(meta.ID)
	if err != nil {
		return err
	}

	if jsonOut == "" {
		return storage.ExportJSON(os.Stdout, *meta, snap)
	}
	f, err := os.Create(jsonOut)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := storage.ExportJSON(f, *meta, snap); err != nil {
		return err
	}
	return f.Close()
}
