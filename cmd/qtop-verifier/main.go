// qtop-verifier checks quantum topological winding numbers for qtop
// circuits: one-shot circuit checks, emergency shutdown acknowledgements,
// and a monitoring mode with a Prometheus status endpoint.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/insider77circle/qtop/internal/circuit"
	"github.com/insider77circle/qtop/internal/config"
	"github.com/insider77circle/qtop/internal/logging"
	"github.com/insider77circle/qtop/internal/quantum"
	"github.com/insider77circle/qtop/internal/verifier"
	"github.com/insider77circle/qtop/internal/winding"
)

const version = "0.1.0"

var (
	// Flags
	port              uint16
	monitorMode       bool
	checkCircuit      uint64
	emergencyShutdown uint64
	verbose           bool
	cfgPath           string

	// Output sink; tests swap this for a buffer.
	out io.Writer = os.Stdout

	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "qtop-verifier",
	Short: "Quantum topological winding number verifier",
	Long: `qtop-verifier is the verification tool for qtop circuits.

Actions run in a fixed order and combine freely in one invocation:
monitoring mode first (runs until interrupted), then the circuit check,
then the emergency shutdown acknowledgement. With no flags only the
startup banner is printed.`,
	Version: version,
	RunE:    runVerifier,
}

func init() {
	rootCmd.Flags().Uint16VarP(&port, "port", "p", 9090, "Status endpoint port for monitoring mode")
	rootCmd.Flags().BoolVarP(&monitorMode, "monitor", "m", false, "Run the periodic verification sweep")
	rootCmd.Flags().Uint64Var(&checkCircuit, "check-circuit", 0, "Check the winding number for a circuit")
	rootCmd.Flags().Uint64Var(&emergencyShutdown, "emergency-shutdown", 0, "Trigger emergency shutdown for a circuit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "Path to YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runVerifier(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Verifier.Port = port
	}

	logger, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	printBanner(out, cfg.Verifier.Port)

	cache := quantum.NewCache(logger.Named("quantum"))
	preloadCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := cache.Preload(preloadCtx, cfg.Quantum.Source, cfg.Quantum.CacheSize); err != nil {
		return fmt.Errorf("preload quantum cache: %w", err)
	}

	engine := winding.NewEngine(winding.Config{
		Quantum:    cfg.Timing.WindingQuantum,
		MinDelayMs: cfg.Timing.MinDelayMs,
		MaxDelayMs: cfg.Timing.MaxDelayMs,
	}, cache, logger.Named("winding"))
	ctrl := circuit.NewController(logger.Named("circuit"))

	svc := verifier.New(verifier.Params{
		Controller: ctrl,
		Engine:     engine,
		Cache:      cache,
		Interval:   cfg.Verifier.Interval(),
		Logger:     logger,
		OnSweep: func(res verifier.SweepResult) {
			printSweep(out, res)
		},
	})

	// Fixed action order. Monitoring runs until interrupted, so the
	// remaining actions are unreachable while it is enabled.
	if monitorMode {
		return runMonitor(cmd.Context(), svc, cfg.Verifier.Port)
	}
	if cmd.Flags().Changed("check-circuit") {
		runCheck(cmd.Context(), svc, checkCircuit)
	}
	if cmd.Flags().Changed("emergency-shutdown") {
		runShutdown(cmd.Context(), svc, emergencyShutdown)
	}
	return nil
}

func runMonitor(ctx context.Context, svc *verifier.Service, port uint16) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, "Starting monitoring mode...")
	fmt.Fprintf(out, "Monitoring started on port %d\n", port)
	return svc.Monitor(ctx, port)
}

func runCheck(ctx context.Context, svc *verifier.Service, id uint64) {
	fmt.Fprintf(out, "Checking winding number for circuit %d...\n", id)

	v := svc.Check(ctx, id)
	if v.Valid {
		fmt.Fprintf(out, "%s Circuit %d winding number is valid\n", okStyle.Render("✓"), id)
	} else {
		fmt.Fprintf(out, "%s Circuit %d winding number violation detected\n", badStyle.Render("✗"), id)
	}
}

func runShutdown(ctx context.Context, svc *verifier.Service, id uint64) {
	fmt.Fprintln(out, alertStyle.Render(fmt.Sprintf("Emergency shutdown triggered for circuit %d", id)))

	svc.EmergencyShutdown(ctx, id)
	fmt.Fprintf(out, "%s Circuit %d has been safely shut down\n", okStyle.Render("✓"), id)
}

func printBanner(w io.Writer, port uint16) {
	fmt.Fprintln(w, titleStyle.Render("Quantum Topological Winding Number Verifier v"+version))
	fmt.Fprintf(w, "Starting verifier on port %d\n", port)
}

func printSweep(w io.Writer, res verifier.SweepResult) {
	if res.Violations == 0 {
		fmt.Fprintf(w, "%s All winding numbers verified (%d circuits)\n",
			okStyle.Render("✓"), res.Circuits)
		return
	}
	fmt.Fprintf(w, "%s %d winding number violations across %d circuits\n",
		badStyle.Render("✗"), res.Violations, res.Circuits)
}
