package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vogtb/go-spreadsheet/internal/config"
	"github.com/vogtb/go-spreadsheet/internal/server"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

func resetEvalFlags(t *testing.T) {
	t.Helper()
	t.Setenv("GRIDCALC_CONFIG", "")
	configPath = ""
	evalIn, evalOut = "", ""
	evalSets, evalGets = nil, nil
	evalJSON = false
	remoteJSON = false
}

func runEvalWith(t *testing.T) (string, error) {
	t.Helper()
	var out bytes.Buffer
	evalCmd.SetOut(&out)
	t.Cleanup(func() { evalCmd.SetOut(nil) })
	err := runEval(evalCmd, nil)
	return out.String(), err
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in      string
		address string
		value   string
		wantErr bool
	}{
		{in: "A1=5", address: "A1", value: "5"},
		{in: "B1==A1*2", address: "B1", value: "=A1*2"},
		{in: " C3 =hello", address: "C3", value: "hello"},
		{in: "D4=", address: "D4", value: ""},
		{in: "A1", wantErr: true},
		{in: "=5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			address, value, err := parseAssignment(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAssignment(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAssignment(%q) error: %v", tt.in, err)
			}
			if address != tt.address || value != tt.value {
				t.Errorf("parseAssignment(%q) = (%q, %q), want (%q, %q)", tt.in, address, value, tt.address, tt.value)
			}
		})
	}
}

func TestFlagOrEnv(t *testing.T) {
	newFlags := func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("url", "ws://default/ws", "")
		return flags
	}

	t.Setenv("GRIDCALC_URL", "")
	if got := flagOrEnv(newFlags(), "url", "GRIDCALC_URL"); got != "ws://default/ws" {
		t.Errorf("default: got %q", got)
	}

	t.Setenv("GRIDCALC_URL", "ws://env/ws")
	if got := flagOrEnv(newFlags(), "url", "GRIDCALC_URL"); got != "ws://env/ws" {
		t.Errorf("env: got %q", got)
	}

	flags := newFlags()
	if err := flags.Set("url", "ws://flag/ws"); err != nil {
		t.Fatal(err)
	}
	if got := flagOrEnv(flags, "url", "GRIDCALC_URL"); got != "ws://flag/ws" {
		t.Errorf("flag: got %q", got)
	}

	if got := flagOrEnv(newFlags(), "missing", "GRIDCALC_URL"); got != "ws://env/ws" {
		t.Errorf("unknown flag: got %q", got)
	}
}

func TestEvalPrintsRequestedCells(t *testing.T) {
	resetEvalFlags(t)
	evalSets = []string{"A1=5", "B1==A1*2"}
	evalGets = []string{"B1"}

	out, err := runEvalWith(t)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	fields := strings.Fields(out)
	if len(fields) != 3 || fields[0] != "B1" || fields[1] != "=A1*2" || fields[2] != "10" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestEvalJSON(t *testing.T) {
	resetEvalFlags(t)
	evalSets = []string{"A1=  Hi  ", "B1==UPPER(A1)"}
	evalJSON = true

	out, err := runEvalWith(t)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	var cells []spreadsheet.CellView
	if err := json.Unmarshal([]byte(out), &cells); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2", len(cells))
	}
	if cells[1].Address != "B1" || cells[1].Display != "  HI  " {
		t.Errorf("B1 = %+v", cells[1])
	}
}

func TestEvalExitCodeOnFormulaError(t *testing.T) {
	resetEvalFlags(t)
	evalSets = []string{"A1==B1", "B1==A1"}

	out, err := runEvalWith(t)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
	if !strings.Contains(out, "#ERROR: Circular reference") {
		t.Errorf("output missing circular error: %q", out)
	}
}

func TestEvalInvalidAddress(t *testing.T) {
	resetEvalFlags(t)
	evalSets = []string{"ZZZ99999=1"}

	_, err := runEvalWith(t)
	var appErr *spreadsheet.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
}

func TestEvalSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.json")

	resetEvalFlags(t)
	evalSets = []string{"A1=3"}
	evalOut = path
	if _, err := runEvalWith(t); err != nil {
		t.Fatalf("first eval failed: %v", err)
	}

	resetEvalFlags(t)
	evalIn = path
	evalSets = []string{"A2==A1+1"}
	evalGets = []string{"A2"}
	out, err := runEvalWith(t)
	if err != nil {
		t.Fatalf("second eval failed: %v", err)
	}
	if fields := strings.Fields(out); len(fields) != 3 || fields[2] != "4" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestEvalMissingSnapshot(t *testing.T) {
	resetEvalFlags(t)
	evalIn = filepath.Join(t.TempDir(), "missing.json")
	if _, err := runEvalWith(t); err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func startRemote(t *testing.T) {
	t.Helper()
	srv, err := server.New(config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.RunHub(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	t.Setenv("GRIDCALC_URL", "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws")
}

func runRemote(t *testing.T, cmd *cobra.Command, run func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	resetEvalFlags(t)
	var out bytes.Buffer
	cmd.SetOut(&out)
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := run(cmd, args)
	return out.String(), err
}

func TestRemoteSetAndGet(t *testing.T) {
	startRemote(t)

	out, err := runRemote(t, remoteSetCmd, runRemoteSet, "A1=5", "B1==A1*2")
	if err != nil {
		t.Fatalf("remote set failed: %v", err)
	}
	if !strings.Contains(out, "=A1*2") {
		t.Errorf("set output missing B1: %q", out)
	}

	out, err = runRemote(t, remoteGetCmd, runRemoteGet, "B1")
	if err != nil {
		t.Fatalf("remote get failed: %v", err)
	}
	if fields := strings.Fields(out); len(fields) != 3 || fields[0] != "B1" || fields[2] != "10" {
		t.Errorf("unexpected get output %q", out)
	}
}

func TestRemoteFormulaErrorExitCode(t *testing.T) {
	startRemote(t)

	_, err := runRemote(t, remoteSetCmd, runRemoteSet, "A1==FOO(1)")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
}

func TestRemoteRejectedRequest(t *testing.T) {
	startRemote(t)

	_, err := runRemote(t, remoteGetCmd, runRemoteGet, "not-an-address")
	if err == nil {
		t.Fatal("expected error for invalid address")
	}
	if !strings.Contains(err.Error(), "invalid_argument") {
		t.Errorf("error %q does not carry the code", err)
	}
}

func TestRemoteDialFailure(t *testing.T) {
	t.Setenv("GRIDCALC_URL", "ws://127.0.0.1:1/ws")
	if _, err := runRemote(t, remoteGetCmd, runRemoteGet, "A1"); err == nil {
		t.Fatal("expected dial error")
	}
}
