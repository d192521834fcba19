package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	ops    []string
	errs   int
	stales int
	fails  int
}

func (r *recordingObserver) ObserveOperation(volume, operation string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, volume+"/"+operation)
	if err != nil {
		r.errs++
	}
}

func (r *recordingObserver) ObserveRetryAttempt(_, _ string) {}
func (r *recordingObserver) ObserveRetrySuccess(_, _ string) {}

func (r *recordingObserver) ObserveRetryFailure(_, _ string) {
	r.mu.Lock()
	r.fails++
	r.mu.Unlock()
}

func (r *recordingObserver) ObserveStaleError(_, _ string) {
	r.mu.Lock()
	r.stales++
	r.mu.Unlock()
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"uploads":  "/data/uploads",
		"outputs":  "/data/outputs",
		"database": "/data",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"uploads root", "/data/uploads", "uploads"},
		{"session file", "/data/uploads/abc/video-clip.mp4", "uploads"},
		{"output file", "/data/outputs/final-abc.mp4", "outputs"},
		{"longest prefix wins", "/data/verticlipper.db", "database"},
		{"sibling with shared prefix", "/data/uploads-old/x", "database"},
		{"unrelated", "/tmp/x", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/data/uploads/x"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestRetryConfig_ResolveVolume_UsesConfigResolver(t *testing.T) {
	original := defaultResolver
	defer func() { defaultResolver = original }()

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"default-uploads": "/uploads"}))
	config := RetryConfig{VolumeResolver: NewVolumeResolver(map[string]string{"override": "/uploads"})}

	if got := config.resolveVolume("/uploads/a"); got != "override" {
		t.Errorf("resolveVolume() = %q, want override", got)
	}

	config.VolumeResolver = nil
	if got := config.resolveVolume("/uploads/a"); got != "default-uploads" {
		t.Errorf("resolveVolume() = %q, want default-uploads", got)
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "video-a.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}

	start := time.Now()
	_, err = StatWithRetry(filepath.Join(dir, "missing"), DefaultRetryConfig())
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if time.Since(start) > 40*time.Millisecond {
		t.Error("non-stale errors must not be retried")
	}
}

func TestReadDirWithRetry(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"video-b.mp4", "bg-a.png", "overlay1-c.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ReadDirWithRetry(dir, fastConfig())
	if err != nil {
		t.Fatalf("ReadDirWithRetry() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Name() != "bg-a.png" {
		t.Errorf("entries not sorted: first = %s", entries[0].Name())
	}
}

func TestRenameWithRetry(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "upload-123.tmp")
	to := filepath.Join(dir, "video-clip.mp4")
	if err := os.WriteFile(from, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RenameWithRetry(from, to, fastConfig()); err != nil {
		t.Fatalf("RenameWithRetry() error = %v", err)
	}
	if _, err := os.Stat(from); !os.IsNotExist(err) {
		t.Error("source should no longer exist")
	}
	if _, err := os.Stat(to); err != nil {
		t.Errorf("destination missing: %v", err)
	}
}

func TestRemoveWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.mp4")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveWithRetry(path, fastConfig()); err != nil {
		t.Fatalf("RemoveWithRetry() error = %v", err)
	}
	if err := RemoveWithRetry(path, fastConfig()); err != nil {
		t.Errorf("removing a missing file should succeed, got %v", err)
	}
}

func TestWithRetry_RetriesStaleErrors(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	calls := 0
	err := withRetry("stat", "/data/uploads/x", fastConfig(), func() error {
		calls++
		if calls < 3 {
			return syscall.ESTALE
		}
		return nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.stales != 2 {
		t.Errorf("stale observations = %d, want 2", obs.stales)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	calls := 0
	err := withRetry("rename", "/x", fastConfig(), func() error {
		calls++
		return syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("expected ESTALE, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want MaxRetries+1 = 3", calls)
	}
	if obs.fails != 1 {
		t.Errorf("retry failures = %d, want 1", obs.fails)
	}
	if obs.errs != 1 {
		t.Errorf("operation errors = %d, want 1", obs.errs)
	}
}

func TestResolveVolume(t *testing.T) {
	original := defaultResolver
	defer func() { defaultResolver = original }()

	SetDefaultVolumeResolver(nil)
	if got := ResolveVolume("/data/outputs/x.mp4"); got != "unknown" {
		t.Errorf("ResolveVolume() without resolver = %q, want unknown", got)
	}

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"outputs": "/data/outputs"}))
	if got := ResolveVolume("/data/outputs/x.mp4"); got != "outputs" {
		t.Errorf("ResolveVolume() = %q, want outputs", got)
	}
}
