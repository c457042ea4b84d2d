package models

import (
	"path"
	"path/filepath"
	"strings"
)

// PathSemantics tells how a resource root and path are joined
type PathSemantics string

const (
	// PathSemanticsPosix forward-slash separated paths
	PathSemanticsPosix PathSemantics = "posix"
	// PathSemanticsWindows back-slash separated paths with optional drive letter
	PathSemanticsWindows PathSemantics = "windows"
)

// IsValid reports whether the value is a known path convention
func (ps PathSemantics) IsValid() bool {
	return ps == PathSemanticsPosix || ps == PathSemanticsWindows
}

// Resource describes one physical data source: a file or a group of files
// decoded by the handler registered for Spec.
type Resource struct {
	ID             string
	Spec           string
	Root           string
	ResourcePath   string
	ResourceKwargs Kwargs
	PathSemantics  PathSemantics
}

// Key returns the identity used by caches and stores
func (r Resource) Key() string {
	return r.ID
}

// Location returns where the resource lives once its root has been resolved
func (r Resource) Location(actualRoot string) Location {
	semantics := r.PathSemantics
	if semantics == "" {
		semantics = PathSemanticsPosix
	}
	return Location{
		Root:          actualRoot,
		ResourcePath:  r.ResourcePath,
		PathSemantics: semantics,
	}
}

// Location is a resolved root plus the resource path below it
type Location struct {
	Root          string
	ResourcePath  string
	PathSemantics PathSemantics
}

// Path joins root and resource path according to the path semantics and
// converts the result to the local filesystem convention.
func (l Location) Path() string {
	root, rel := l.Root, l.ResourcePath
	if l.PathSemantics == PathSemanticsWindows {
		root = strings.ReplaceAll(root, `\`, "/")
		rel = strings.ReplaceAll(rel, `\`, "/")
	}
	return filepath.FromSlash(path.Join(root, rel))
}

// Datum is one addressable unit of data inside a Resource
type Datum struct {
	ID          string
	ResourceID  string
	DatumKwargs Kwargs
}

// Key returns the identity used by stores
func (d Datum) Key() string {
	return d.ID
}
