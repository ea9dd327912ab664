package tail

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}

func TestOpenRecordsHeaderAndSeeksToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "det.csv")
	writeFile(t, path, "Timestamp, Class ,confidence,x1,y1,x2,y2\nold,row,0.1,1,2,3,4\n")

	r := NewReader(path, newTestLogger())
	defer r.Close()

	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	header := r.Header()
	want := []string{"timestamp", "class", "confidence", "x1", "y1", "x2", "y2"}
	if len(header) != len(want) {
		t.Fatalf("header = %v", header)
	}
	for i := range want {
		if header[i] != want[i] {
			t.Fatalf("header[%d] = %q, want %q", i, header[i], want[i])
		}
	}

	// Pre-existing rows must not be replayed
	lines, rotated, err := r.Poll(context.Background())
	if err != nil || rotated {
		t.Fatalf("poll: lines=%v rotated=%v err=%v", lines, rotated, err)
	}
	if len(lines) != 0 {
		t.Fatalf("replayed pre-existing lines: %v", lines)
	}
}

func TestPollReturnsOnlyAppendedCompleteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "det.csv")
	writeFile(t, path, "timestamp,class,confidence,x1,y1,x2,y2\n")

	r := NewReader(path, newTestLogger())
	defer r.Close()
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	appendFile(t, path, "a,person,0.9,1,2,3,4\nb,dog,0.8,5,6,7,8\nc,cat,0.7,9")

	lines, _, err := r.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %v, want the two terminated lines", lines)
	}
	if lines[0] != "a,person,0.9,1,2,3,4" || lines[1] != "b,dog,0.8,5,6,7,8" {
		t.Fatalf("lines = %v", lines)
	}

	// Finish the partial line; only it should come back
	appendFile(t, path, ",10,11,12\n")
	lines, _, err = r.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(lines) != 1 || lines[0] != "c,cat,0.7,9,10,11,12" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestPollIdleReturnsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "det.csv")
	writeFile(t, path, "timestamp,class,confidence,x1,y1,x2,y2\n")

	r := NewReader(path, newTestLogger())
	defer r.Close()
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 0; i < 3; i++ {
		lines, rotated, err := r.Poll(context.Background())
		if err != nil || rotated || len(lines) != 0 {
			t.Fatalf("idle poll: lines=%v rotated=%v err=%v", lines, rotated, err)
		}
	}
}

func TestTruncationTriggersRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "det.csv")
	writeFile(t, path, "timestamp,class,confidence,x1,y1,x2,y2\nx,person,0.9,1,2,3,4\n")

	r := NewReader(path, newTestLogger())
	r.SetWaitTick(10 * time.Millisecond)
	defer r.Close()
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Replace with a shorter file, new header included
	writeFile(t, path, "class,timestamp,confidence,x1,y1,x2,y2\n")

	lines, rotated, err := r.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll after truncation: %v", err)
	}
	if !rotated {
		t.Fatalf("truncation not reported as rotation")
	}
	if len(lines) != 0 {
		t.Fatalf("rotation poll returned lines: %v", lines)
	}
	if r.Header()[0] != "class" {
		t.Fatalf("header not refreshed after rotation: %v", r.Header())
	}

	// Tailing resumes on the reopened file
	appendFile(t, path, "dog,t1,0.8,1,2,3,4\n")
	lines, rotated, err = r.Poll(context.Background())
	if err != nil || rotated {
		t.Fatalf("poll after reopen: rotated=%v err=%v", rotated, err)
	}
	if len(lines) != 1 || lines[0] != "dog,t1,0.8,1,2,3,4" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestOpenWaitsForFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "det.csv")

	r := NewReader(path, newTestLogger())
	r.SetWaitTick(10 * time.Millisecond)
	defer r.Close()

	done := make(chan error, 1)
	go func() {
		done <- r.Open(context.Background())
	}()

	time.Sleep(30 * time.Millisecond)
	writeFile(t, path, "timestamp,class,confidence,x1,y1,x2,y2\n")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("open: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("open did not return after file appeared")
	}
}

func TestOpenHonorsCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.csv")

	r := NewReader(path, newTestLogger())
	r.SetWaitTick(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Open(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("open returned nil for a missing file")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("open did not honor cancellation")
	}
}
