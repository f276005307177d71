// Package locator resolves template include paths against an ordered
// list of search roots, including an embedded-resource scheme.
// Grounded on tmpl-template-locator.c; uses go-billy filesystems for
// roots so a `resource://` root can be an in-memory billy/memfs tree
// sitting right next to on-disk osfs roots.
package locator

import (
	"io"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
)

const resourceScheme = "resource://"

// Root is one search-path entry. Roots are searched in registration
// order, head = highest priority (spec.md §4.3).
type Root struct {
	FS       billy.Filesystem
	Resource bool // true if this root was declared with resource://
}

// Locator implements lexer.Locator.
type Locator struct {
	roots []Root
}

// New creates an empty Locator.
func New() *Locator {
	return &Locator{}
}

// AddDir appends an on-disk search root, lowest priority so far.
func (l *Locator) AddDir(dir string) {
	l.roots = append(l.roots, Root{FS: osfs.New(dir)})
}

// AddResourceFS appends an embedded-resource root backed by an
// in-memory billy filesystem (e.g. populated from go:embed at
// startup).
func (l *Locator) AddResourceFS(fs billy.Filesystem) {
	l.roots = append(l.roots, Root{FS: fs, Resource: true})
}

// AddRootSpec appends a root described either as a plain directory or
// as `resource://<name>` backed by an empty in-memory tree the caller
// populates via Root().FS.
func (l *Locator) AddRootSpec(spec string) billy.Filesystem {
	if strings.HasPrefix(spec, resourceScheme) {
		fs := memfs.New()
		l.roots = append(l.roots, Root{FS: fs, Resource: true})
		return fs
	}
	l.AddDir(spec)
	return l.roots[len(l.roots)-1].FS
}

// Locate opens the first root that can serve path, in priority order.
// Any candidate whose cleaned path escapes its root (e.g. via "..") is
// rejected outright rather than attempted.
func (l *Locator) Locate(p string) (io.ReadCloser, error) {
	if !safeRelative(p) {
		return nil, errs.Newf(errs.TemplateNotFound, "include path escapes its search root: %q", p).
			WithDetail("path", p)
	}

	for _, root := range l.roots {
		f, err := root.FS.Open(p)
		if err != nil {
			continue
		}
		return f, nil
	}

	return nil, errs.Newf(errs.TemplateNotFound, "template not found in any search root: %q", p).
		WithDetail("path", p)
}

// safeRelative reports whether the cleaned form of p stays within its
// root (no leading ".." segment after cleaning).
func safeRelative(p string) bool {
	cleaned := path.Clean(p)
	// After cleaning, any ".." left over sits at the front and climbs
	// out of the root.
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}
