package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"verticlipper/internal/apperr"
)

// TestHelperProcess stands in for ffmpeg. It is only active when run as a
// subprocess by fakeCommand; the last argument is the output path.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	output := args[len(args)-1]

	switch os.Getenv("HELPER_MODE") {
	case "ok":
		_ = os.WriteFile(output, []byte("mp4-data"), 0o644)
		os.Exit(0)
	case "args":
		_ = os.WriteFile(output, []byte(strings.Join(args, " ")), 0o644)
		os.Exit(0)
	case "fail":
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		fmt.Fprint(os.Stderr, "Error initializing filter 'overlay'")
		os.Exit(1)
	case "slow":
		time.Sleep(300 * time.Millisecond)
		_ = os.WriteFile(output, []byte("mp4-data"), 0o644)
		os.Exit(0)
	case "hang":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	}
	os.Exit(2)
}

func fakeCommand(mode string) func(string, ...string) *exec.Cmd {
	return func(name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
}

func newTestTranscoder(mode string, slots int) *Transcoder {
	t := New("ffmpeg", slots)
	t.command = fakeCommand(mode)
	return t
}

func simpleJob(output string) Job {
	return Job{
		Kind:   JobCompose,
		Output: output,
		Args: func(out string) []string {
			return []string{"-y", "-i", "in.mp4", out}
		},
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestNew(t *testing.T) {
	trans := New("", 3)
	if trans.ffmpeg != "ffmpeg" {
		t.Errorf("ffmpeg = %q, want ffmpeg", trans.ffmpeg)
	}
	if trans.Slots() != 3 {
		t.Errorf("Slots() = %d, want 3", trans.Slots())
	}
	if trans.processes == nil {
		t.Error("Expected processes map to be initialized")
	}
}

func TestTranscodeSuccess(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "final-abc.mp4")

	got, err := newTestTranscoder("ok", 1).Transcode(context.Background(), simpleJob(output))
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	if got != output {
		t.Errorf("Transcode() = %s, want %s", got, output)
	}

	data, err := os.ReadFile(output)
	if err != nil || string(data) != "mp4-data" {
		t.Errorf("output content = %q, %v", data, err)
	}
	assertNoTempFiles(t, dir)
}

func TestTranscodeWritesToTempWithSameExtension(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "final-abc.mp4")

	if _, err := newTestTranscoder("args", 0).Transcode(context.Background(), simpleJob(output)); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(output)
	fields := strings.Fields(string(data))
	written := fields[len(fields)-1]
	if written == output {
		t.Error("ffmpeg should write to a temp path, not the final output")
	}
	if filepath.Dir(written) != dir || filepath.Ext(written) != ".mp4" {
		t.Errorf("temp path %s should sit beside output with .mp4 extension", written)
	}
}

func TestTranscodeFailure(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "final-abc.mp4")

	_, err := newTestTranscoder("fail", 1).Transcode(context.Background(), simpleJob(output))
	if err == nil {
		t.Fatal("expected error")
	}

	e, ok := apperr.As(err)
	if !ok || e.Code != apperr.CodeComposition {
		t.Fatalf("error = %v, want composition error", err)
	}
	if !strings.Contains(e.Diagnostic, "Error initializing filter") {
		t.Errorf("Diagnostic = %q, want captured stderr", e.Diagnostic)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("partial output must not be published")
	}
	assertNoTempFiles(t, dir)
}

func TestTranscodeOverwrites(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "final-abc.mp4")
	if err := os.WriteFile(output, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	trans := newTestTranscoder("ok", 1)
	for i := 0; i < 2; i++ {
		got, err := trans.Transcode(context.Background(), simpleJob(output))
		if err != nil || got != output {
			t.Fatalf("run %d: Transcode() = %s, %v", i, got, err)
		}
	}

	data, _ := os.ReadFile(output)
	if string(data) != "mp4-data" {
		t.Errorf("output not overwritten: %q", data)
	}
}

func TestTranscodeWaitHonoursContext(t *testing.T) {
	dir := t.TempDir()
	trans := newTestTranscoder("slow", 1)

	done := make(chan error, 1)
	go func() {
		_, err := trans.Transcode(context.Background(), simpleJob(filepath.Join(dir, "a.mp4")))
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for trans.Active() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := trans.Transcode(ctx, simpleJob(filepath.Join(dir, "b.mp4"))); err == nil {
		t.Error("second job should give up while the only slot is busy")
	}

	if err := <-done; err != nil {
		t.Errorf("first job error = %v", err)
	}
}

func TestCleanupKillsRunningJobs(t *testing.T) {
	dir := t.TempDir()
	trans := newTestTranscoder("hang", 0)

	done := make(chan error, 1)
	go func() {
		_, err := trans.Transcode(context.Background(), simpleJob(filepath.Join(dir, "a.mp4")))
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for trans.Active() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if trans.Active() != 1 {
		t.Fatalf("Active() = %d, want 1", trans.Active())
	}

	trans.Cleanup()

	select {
	case err := <-done:
		if err == nil {
			t.Error("killed job should report an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job did not end after Cleanup")
	}

	if _, err := trans.Transcode(context.Background(), simpleJob(filepath.Join(dir, "b.mp4"))); err == nil {
		t.Error("jobs after Cleanup should be rejected")
	}
	assertNoTempFiles(t, dir)
}

func TestPreviewPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/u/s/video-clip.mp4", "/u/s/downres-video-clip.mp4"},
		{"/u/s/video-clip.webm", "/u/s/downres-video-clip.mp4"},
		{"/u/s/video-clip.MOV", "/u/s/downres-video-clip.mp4"},
		{"/u/s/video-clip.v2.avi", "/u/s/downres-video-clip.v2.mp4"},
	}

	for _, tt := range tests {
		if got := PreviewPath(tt.input); got != tt.want {
			t.Errorf("PreviewPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDownscaleWebMWritesMP4(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "video-clip.webm")

	got, err := newTestTranscoder("args", 1).Downscale(context.Background(), input)
	if err != nil {
		t.Fatalf("Downscale() error = %v", err)
	}
	if got != filepath.Join(dir, "downres-video-clip.mp4") {
		t.Errorf("Downscale() = %s", got)
	}

	data, _ := os.ReadFile(got)
	fields := strings.Fields(string(data))
	if len(fields) == 0 || filepath.Ext(fields[len(fields)-1]) != ".mp4" {
		t.Errorf("ffmpeg output should carry .mp4 so the MP4 muxer is used: %s", data)
	}
}

func TestDownscale(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "video-clip.mp4")

	got, err := newTestTranscoder("args", 1).Downscale(context.Background(), input)
	if err != nil {
		t.Fatalf("Downscale() error = %v", err)
	}
	if got != filepath.Join(dir, "downres-video-clip.mp4") {
		t.Errorf("Downscale() = %s", got)
	}

	data, _ := os.ReadFile(got)
	if !strings.Contains(string(data), "-i "+input+" -vf scale=-2:320 -c:v libx264 -preset veryfast -crf 23 -movflags +faststart") {
		t.Errorf("unexpected preview args: %s", data)
	}
}

func TestPreviewArgs(t *testing.T) {
	args := PreviewArgs("in.mp4", "out.mp4")
	if args[0] != "-y" || args[len(args)-1] != "out.mp4" {
		t.Errorf("PreviewArgs() = %v", args)
	}
}

func TestTail(t *testing.T) {
	if got := tail("  short  ", 10); got != "short" {
		t.Errorf("tail() = %q", got)
	}
	if got := tail("0123456789", 4); got != "...6789" {
		t.Errorf("tail() = %q, want ...6789", got)
	}
}
