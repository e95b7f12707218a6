package query

import (
	"errors"
	"io/fs"
	"sort"
	"strings"
	"syscall"

	billy "github.com/go-git/go-billy/v5"
)

// RerunPolicy decides whether a query must execute given whether its
// artifact already exists. The variants are RerunAll, RerunNamed and
// RerunMissing; the interface is sealed.
type RerunPolicy interface {
	// MustRun reports whether d has to execute.
	MustRun(d Descriptor, artifactExists bool) bool
	// String describes the policy for logs.
	String() string

	sealed()
}

// RerunAll executes every query regardless of existing artifacts.
type RerunAll struct{}

// MustRun always returns true.
func (RerunAll) MustRun(Descriptor, bool) bool { return true }
func (RerunAll) String() string                { return "all" }
func (RerunAll) sealed()                       {}

// RerunMissing executes only queries whose artifact is absent.
type RerunMissing struct{}

// MustRun returns true when the artifact does not exist.
func (RerunMissing) MustRun(_ Descriptor, artifactExists bool) bool { return !artifactExists }
func (RerunMissing) String() string                                 { return "missing" }
func (RerunMissing) sealed()                                        {}

// RerunNamed executes the named queries plus any query whose artifact is
// absent. A name matches a query's file name ("query2.sql") or its relative
// path ("stage1/query2.sql").
type RerunNamed struct {
	names map[string]struct{}
}

// NewRerunNamed builds a RerunNamed from names. Blank names are dropped and
// backslashes are treated as path separators.
func NewRerunNamed(names ...string) RerunNamed {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(strings.ReplaceAll(n, `\`, "/"))
		n = strings.TrimPrefix(n, "./")
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return RerunNamed{names: set}
}

// Names returns the configured names in sorted order.
func (p RerunNamed) Names() []string {
	out := make([]string, 0, len(p.names))
	for n := range p.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Has reports whether d is named by the policy.
func (p RerunNamed) Has(d Descriptor) bool {
	if _, ok := p.names[d.Name()]; ok {
		return true
	}
	_, ok := p.names[d.RelPath]
	return ok
}

// MustRun returns true for named queries and for missing artifacts.
func (p RerunNamed) MustRun(d Descriptor, artifactExists bool) bool {
	return p.Has(d) || !artifactExists
}

func (p RerunNamed) String() string { return "named(" + strings.Join(p.Names(), ",") + ")" }
func (RerunNamed) sealed()          {}

// PolicyFrom maps the rerun flags onto a policy. rerunAll wins over names;
// with neither set the result is RerunMissing.
func PolicyFrom(rerunAll bool, names []string) RerunPolicy {
	if rerunAll {
		return RerunAll{}
	}
	named := NewRerunNamed(names...)
	if len(named.names) > 0 {
		return named
	}
	return RerunMissing{}
}

// ArtifactExists reports whether a regular artifact file exists for d on
// out. Missing parent directories and a directory at the artifact path count
// as absent.
func ArtifactExists(out billy.Filesystem, d Descriptor) (bool, error) {
	fi, err := out.Stat(d.ArtifactPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
			return false, nil
		}
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

// NeedsRun combines ArtifactExists with policy. It has no side effects.
func NeedsRun(out billy.Filesystem, d Descriptor, policy RerunPolicy) (bool, error) {
	if policy == nil {
		policy = RerunMissing{}
	}
	if _, all := policy.(RerunAll); all {
		return true, nil
	}
	exists, err := ArtifactExists(out, d)
	if err != nil {
		return false, err
	}
	return policy.MustRun(d, exists), nil
}

// isNotDir matches stat errors raised when a parent path component is a
// regular file.
func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
