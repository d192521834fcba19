package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakePurger struct {
	cutoff time.Time
	rows   int64
	err    error
}

func (f *fakePurger) PurgeBefore(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.rows, f.err
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	root := t.TempDir()
	oldFile := filepath.Join(root, "final-old.mp4")
	freshFile := filepath.Join(root, "final-new.mp4")
	writeAged(t, oldFile, 25*time.Hour)
	writeAged(t, freshFile, time.Minute)

	purger := &fakePurger{rows: 3}
	s := NewSweeper([]string{root}, 24*time.Hour, time.Hour, purger)

	cutoff := time.Now().Add(-24 * time.Hour)
	result := s.Sweep(cutoff)

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old file was not removed")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Errorf("fresh file was removed: %v", err)
	}
	if result.FilesRemoved != 1 || result.BytesFreed != 4 {
		t.Errorf("result = %+v, want 1 file / 4 bytes", result)
	}
	if result.RowsPurged != 3 || !purger.cutoff.Equal(cutoff) {
		t.Errorf("purger called with %v, rows %d", purger.cutoff, result.RowsPurged)
	}
}

func TestSweepRemovesEmptiedSessionDirs(t *testing.T) {
	root := t.TempDir()
	oldSession := filepath.Join(root, "11111111-1111-4111-8111-111111111111")
	mixedSession := filepath.Join(root, "22222222-2222-4222-8222-222222222222")
	newSession := filepath.Join(root, "33333333-3333-4333-8333-333333333333")

	writeAged(t, filepath.Join(oldSession, "video-a.mp4"), 48*time.Hour)
	writeAged(t, filepath.Join(oldSession, "bg-a.png"), 48*time.Hour)
	writeAged(t, filepath.Join(mixedSession, "video-b.mp4"), 48*time.Hour)
	writeAged(t, filepath.Join(mixedSession, "bg-b.png"), time.Minute)
	if err := os.Mkdir(newSession, 0o755); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper([]string{root}, 24*time.Hour, time.Hour, nil)
	result := s.Sweep(time.Now().Add(-24 * time.Hour))

	if _, err := os.Stat(oldSession); !os.IsNotExist(err) {
		t.Error("emptied session directory was not removed")
	}
	if _, err := os.Stat(filepath.Join(mixedSession, "bg-b.png")); err != nil {
		t.Error("fresh file in mixed session was removed")
	}
	if _, err := os.Stat(newSession); err != nil {
		t.Error("fresh empty session directory was removed")
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("root was removed")
	}
	if result.FilesRemoved != 3 || result.DirsRemoved != 1 {
		t.Errorf("result = %+v, want 3 files / 1 dir", result)
	}
}

func TestSweepKeepsStagingRoot(t *testing.T) {
	root := t.TempDir()
	writeAged(t, filepath.Join(root, stagingDir, "upload-1", "part"), 48*time.Hour)

	s := NewSweeper([]string{root}, 24*time.Hour, time.Hour, nil)
	s.Sweep(time.Now().Add(-24 * time.Hour))

	if _, err := os.Stat(filepath.Join(root, stagingDir, "upload-1")); !os.IsNotExist(err) {
		t.Error("abandoned staging directory was not removed")
	}
	if _, err := os.Stat(filepath.Join(root, stagingDir)); err != nil {
		t.Error("staging root was removed")
	}
}

func TestSweepMissingRootAndPurgeError(t *testing.T) {
	s := NewSweeper([]string{filepath.Join(t.TempDir(), "missing")}, time.Hour, time.Hour, &fakePurger{err: errors.New("locked")})

	result := s.Sweep(time.Now())
	if result.FilesRemoved != 0 || result.RowsPurged != 0 {
		t.Errorf("result = %+v, want zero", result)
	}
}

func TestSweeperStartStop(t *testing.T) {
	root := t.TempDir()
	oldFile := filepath.Join(root, "stale.mp4")
	writeAged(t, oldFile, 2*time.Hour)

	s := NewSweeper([]string{root}, time.Hour, time.Hour, nil)
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(oldFile); os.IsNotExist(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()
	s.Stop()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("initial sweep did not run on Start")
	}
}
