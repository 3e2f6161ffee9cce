package log

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, name string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	return ForService(name), buf
}

func TestPrefixAndLevel(t *testing.T) {
	SetGlobalDebug(false)

	l, buf := newTestLogger(t, "prefix_test")
	l.Infof("fetched %d jobs", 3)

	out := buf.String()
	if !strings.Contains(out, "INFO [prefix_test>] fetched 3 jobs") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLevels(t *testing.T) {
	l, buf := newTestLogger(t, "levels_test")

	l.Warnf("slow")
	l.Errorf("broken")

	out := buf.String()
	if !strings.Contains(out, "WARN [levels_test>] slow") {
		t.Errorf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "ERROR [levels_test>] broken") {
		t.Errorf("missing error line in %q", out)
	}
}

func TestDebugPerService(t *testing.T) {
	SetGlobalDebug(false)

	const name = "debug_service_test"
	DisableDebugFor(name)
	l, buf := newTestLogger(t, name)

	l.Debugf("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug line printed while disabled")
	}

	EnableDebugFor(name)
	l.Debugf("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug line after EnableDebugFor, got %q", buf.String())
	}

	other := ForService("debug_other_test")
	other.Debugf("other hidden")
	if strings.Contains(buf.String(), "other hidden") {
		t.Fatalf("per-service debug leaked to another service")
	}
	DisableDebugFor(name)
}

func TestGlobalDebug(t *testing.T) {
	l, buf := newTestLogger(t, "global_debug_test")

	SetGlobalDebug(true)
	defer SetGlobalDebug(false)

	l.Debugf("everywhere")
	if !strings.Contains(buf.String(), "DEBUG [global_debug_test>] everywhere") {
		t.Fatalf("expected global debug line, got %q", buf.String())
	}
	if !GlobalDebug() {
		t.Fatalf("GlobalDebug() = false after SetGlobalDebug(true)")
	}
}

func TestForServiceMemoized(t *testing.T) {
	if ForService("memo_test") != ForService("memo_test") {
		t.Fatalf("ForService should return the same logger for the same name")
	}
	if ForService("").Name() != "jobsearch" {
		t.Fatalf("empty name should map to the default service name")
	}
}
