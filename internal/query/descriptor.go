// Package query discovers query files under an input directory and decides,
// per file, whether it has to run.
//
// A query is identified by its slash-separated path relative to the input
// root (e.g. "stage1/query1.sql"). The same relative path with the extension
// replaced by ".csv" names its artifact under the output root; the walker,
// the checker and the artifact writer all rely on that mapping.
package query

import (
	"path"
	"strings"
)

// Extension is the file extension of query files.
const Extension = ".sql"

// ArtifactExtension is the file extension of result artifacts.
const ArtifactExtension = ".csv"

// Descriptor is one discovered query file.
type Descriptor struct {
	// RelPath is the slash-separated path relative to the input root.
	RelPath string

	// SourcePath is the location of the query text. For descriptors produced
	// by OpenWalker it is an absolute OS path; for walkers over an arbitrary
	// filesystem it equals RelPath.
	SourcePath string
}

// String returns the query identifier.
func (d Descriptor) String() string { return d.RelPath }

// Dir returns the slash-separated directory part of RelPath, "." at the root.
func (d Descriptor) Dir() string { return path.Dir(d.RelPath) }

// Name returns the leaf file name, e.g. "query1.sql".
func (d Descriptor) Name() string { return path.Base(d.RelPath) }

// ArtifactPath returns the slash-separated artifact path relative to the
// output root: RelPath with its extension replaced by ".csv".
func (d Descriptor) ArtifactPath() string {
	return ArtifactPathFor(d.RelPath)
}

// ArtifactPathFor maps a query's relative path to its artifact path.
func ArtifactPathFor(relPath string) string {
	ext := path.Ext(relPath)
	return strings.TrimSuffix(relPath, ext) + ArtifactExtension
}
