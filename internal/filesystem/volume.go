package filesystem

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"
)

const unknownVolume = "unknown"

// VolumeResolver labels paths with the configured root they live under,
// choosing the deepest root when roots nest.
type VolumeResolver struct {
	roots []volumeRoot
}

type volumeRoot struct {
	dir  string // absolute, with trailing separator
	name string
}

// NewVolumeResolver takes volume labels to directories, for example
// {"uploads": "/data/uploads", "database": "/data"}.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	roots := make([]volumeRoot, 0, len(volumes))
	for name, dir := range volumes {
		roots = append(roots, volumeRoot{dir: withSeparator(absOrSelf(dir)), name: name})
	}
	slices.SortFunc(roots, func(a, b volumeRoot) int {
		return cmp.Compare(len(b.dir), len(a.dir))
	})
	return &VolumeResolver{roots: roots}
}

// Resolve returns the label for path, or "unknown" outside every root.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return unknownVolume
	}
	p := withSeparator(absOrSelf(path))
	for _, root := range vr.roots {
		if strings.HasPrefix(p, root.dir) {
			return root.name
		}
	}
	return unknownVolume
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func withSeparator(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver installs the resolver used when a RetryConfig
// carries none. main sets it once after loading configuration.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// ResolveVolume labels path using the default resolver.
func ResolveVolume(path string) string {
	return defaultResolver.Resolve(path)
}
