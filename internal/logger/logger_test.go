package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"
)

func fixedClock(t *testing.T) {
	t.Helper()
	old := now
	now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		now = old
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
}

func TestSetVerbose(t *testing.T) {
	fixedClock(t)

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	fixedClock(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	if got := buf.String(); got != "2024-05-01T12:00:00 [DEBUG] test message arg\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	fixedClock(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("hidden")
	Section("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestSection(t *testing.T) {
	fixedClock(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Diffing")

	if got := buf.String(); got != "\n=== Diffing ===\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestLevels_AlwaysPrinted(t *testing.T) {
	fixedClock(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	Info("fetched %d documents", 3)
	Warn("page %d failed", 2)
	Error("upsert failed: %v", "boom")

	want := "2024-05-01T12:00:00 [INFO] fetched 3 documents\n" +
		"2024-05-01T12:00:00 [WARN] page 2 failed\n" +
		"2024-05-01T12:00:00 [ERROR] upsert failed: boom\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output:\n%s", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	fixedClock(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			SetVerbose(n%2 == 0)
			Debug("debug %d", n)
			_ = IsVerbose()
		}(i)
	}
	wg.Wait()
}
