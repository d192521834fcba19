package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"verticlipper/internal/logging"

	"github.com/gorilla/mux"
)

const rule = "------------------------------------------------------------"

const binaryCheckTimeout = 5 * time.Second

// section starts a titled block in the startup log.
func section(title string, args ...interface{}) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title, args...)
	logging.Info(rule)
}

func printBanner() {
	fmt.Println(rule + `
 _    __          __  _ ________ _
| |  / /__  _____/ /_(_) ____/ /(_)___  ____  ___  _____
| | / / _ \/ ___/ __/ / /   / // / __ \/ __ \/ _ \/ ___/
| |/ /  __/ /  / /_/ / /___/ // / /_/ / /_/ /  __/ /
|___/\___/_/   \__/_/\____/_//_/ .___/ .___/\___/_/
                              /_/   /_/
` + rule)
	logging.Info("  %s (%s), built %s", Version, Commit, BuildTime)
	logging.Info("  Started %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	cpus, procs := runtime.NumCPU(), runtime.GOMAXPROCS(0)
	if procs < cpus {
		logging.Info("  GOMAXPROCS %d of %d CPUs (container limit)", procs, cpus)
	} else {
		logging.Info("  GOMAXPROCS %d", procs)
	}

	if logging.IsDebugEnabled() {
		wd, _ := os.Getwd()
		host, _ := os.Hostname()
		logging.Debug("  host=%s cwd=%s", host, wd)
	}
}

// LogDatabaseInit reports how long opening and migrating the history took.
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE")
	logging.Info("  [OK] Composition history ready in %v", duration)
}

// LogTranscoderInit reports the transcode slot count and checks that ffmpeg
// and ffprobe run. A missing binary only warns.
func LogTranscoderInit(ffmpegPath, ffprobePath string, slots int) {
	section("TRANSCODER")
	logging.Info("  Concurrent jobs: %s", slotsString(slots))

	for _, bin := range []string{ffmpegPath, ffprobePath} {
		version, err := binaryVersion(bin)
		if err != nil {
			logging.Warn("  %v; uploads and compositions will fail until it is installed", err)
			continue
		}
		logging.Info("  [OK] %s", version)
	}
}

// binaryVersion returns the first line of "<bin> -version".
func binaryVersion(bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", bin)
	}

	ctx, cancel := context.WithTimeout(context.Background(), binaryCheckTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version failed: %w", path, err)
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), nil
}

// LogSweeperInit reports the retention settings of the cleanup sweeper.
func LogSweeperInit(maxAge, interval time.Duration) {
	section("CLEANUP SWEEPER")
	logging.Info("  Files older than %v are removed every %v", maxAge, interval)
}

// LogSweeperStarted confirms the sweeper goroutine is running.
func LogSweeperStarted() {
	logging.Info("  [OK] Sweeper started")
}

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes walks the router. Prefix-only routes report their regexp and
// routes without a method matcher report "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			if path, err = route.GetPathRegexp(); err != nil {
				return nil
			}
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes lists the routes at debug level and the access log switches.
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP SERVER")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		sort.SliceStable(routes, func(i, j int) bool {
			return getRouteGroup(routes[i].Path) < getRouteGroup(routes[j].Path)
		})

		logging.Debug("  %d routes:", len(routes))
		for _, r := range routes {
			logging.Debug("    %-12s %-6s %s", "["+getRouteGroup(r.Path)+"]", r.Method, r.Path)
		}
	}

	logging.Info("  Access log: static files %s, health checks %s",
		onOff(logStaticFiles), onOff(logHealthChecks))
}

// getRouteGroup is the first path segment, or "api/<resource>" under /api.
func getRouteGroup(path string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "api" && rest != "" {
		resource, _, _ := strings.Cut(rest, "/")
		return "api/" + resource
	}
	return first
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// ServerConfig is what LogServerStarted prints.
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted prints the listening endpoints once the server is up.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED in %v", config.StartupDuration)
	logging.Info("  API:      http://0.0.0.0:%s/api", config.Port)
	logging.Info("  Health:   http://0.0.0.0:%s/api/health", config.Port)
	logging.Info("  Outputs:  http://0.0.0.0:%s/outputs/", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:  http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:  disabled")
	}
	logging.Info(rule)
}

// LogShutdownInitiated opens the shutdown block.
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN (%s)", signal)
}

// LogShutdownStep logs the start of a shutdown step at debug level.
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a finished shutdown step.
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete closes the shutdown block.
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
