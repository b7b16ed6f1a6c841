package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/insider77circle/qtop/internal/circuit"
	"github.com/insider77circle/qtop/internal/verifier"
	"github.com/insider77circle/qtop/internal/winding"
)

func newTestService() *verifier.Service {
	return verifier.New(verifier.Params{
		Controller: circuit.NewController(nil),
		Engine:     winding.NewEngine(winding.Config{}, nil, nil),
	})
}

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := out
	out = buf
	t.Cleanup(func() { out = prev })
	return buf
}

func TestRunCheckOutput(t *testing.T) {
	svc := newTestService()

	t.Run("even circuit is valid", func(t *testing.T) {
		buf := captureOut(t)
		runCheck(context.Background(), svc, 4)

		got := buf.String()
		if !strings.Contains(got, "Checking winding number for circuit 4") {
			t.Fatalf("missing check line: %q", got)
		}
		if !strings.Contains(got, "Circuit 4 winding number is valid") {
			t.Fatalf("missing valid verdict: %q", got)
		}
	})

	t.Run("odd circuit violates", func(t *testing.T) {
		buf := captureOut(t)
		runCheck(context.Background(), svc, 7)

		if !strings.Contains(buf.String(), "Circuit 7 winding number violation detected") {
			t.Fatalf("missing violation verdict: %q", buf.String())
		}
	})
}

func TestRunShutdownOutput(t *testing.T) {
	svc := newTestService()
	buf := captureOut(t)

	runShutdown(context.Background(), svc, 7)

	got := buf.String()
	if !strings.Contains(got, "Emergency shutdown triggered for circuit 7") {
		t.Fatalf("missing trigger line: %q", got)
	}
	if !strings.Contains(got, "Circuit 7 has been safely shut down") {
		t.Fatalf("missing confirmation line: %q", got)
	}
}

func TestPrintBanner(t *testing.T) {
	buf := &bytes.Buffer{}
	printBanner(buf, 9090)

	got := buf.String()
	if !strings.Contains(got, "Quantum Topological Winding Number Verifier v"+version) {
		t.Fatalf("missing title: %q", got)
	}
	if !strings.Contains(got, "Starting verifier on port 9090") {
		t.Fatalf("missing port line: %q", got)
	}
}

func TestPrintSweep(t *testing.T) {
	buf := &bytes.Buffer{}

	printSweep(buf, verifier.SweepResult{Circuits: 3})
	if !strings.Contains(buf.String(), "All winding numbers verified (3 circuits)") {
		t.Fatalf("missing clean sweep line: %q", buf.String())
	}

	buf.Reset()
	printSweep(buf, verifier.SweepResult{Circuits: 3, Violations: 2})
	if !strings.Contains(buf.String(), "2 winding number violations across 3 circuits") {
		t.Fatalf("missing violation sweep line: %q", buf.String())
	}
}

func TestDispatchOrder(t *testing.T) {
	// Combining check and shutdown without monitor runs both, check first,
	// and completes normally.
	t.Setenv("QTOP_CACHE_SIZE", "16")
	buf := captureOut(t)

	rootCmd.SetArgs([]string{"--check-circuit", "4", "--emergency-shutdown", "7"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := buf.String()
	checkIdx := strings.Index(got, "Circuit 4 winding number is valid")
	shutdownIdx := strings.Index(got, "Emergency shutdown triggered for circuit 7")
	if checkIdx < 0 || shutdownIdx < 0 {
		t.Fatalf("missing action output: %q", got)
	}
	if checkIdx > shutdownIdx {
		t.Fatalf("check ran after shutdown: %q", got)
	}
	if !strings.Contains(got, "Starting verifier on port 9090") {
		t.Fatalf("missing banner: %q", got)
	}
}

func TestParseFailure(t *testing.T) {
	buf := captureOut(t)

	rootCmd.SetArgs([]string{"--check-circuit", "not-a-number"})
	rootCmd.SilenceErrors = true
	defer func() { rootCmd.SilenceErrors = false }()

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected parse error")
	}
	if strings.Contains(buf.String(), "Checking winding number") {
		t.Fatalf("action ran despite parse failure: %q", buf.String())
	}
}
