// Package suite discovers the suite tree from the file system.
//
// A file path becomes a leaf. A directory becomes a container whose children
// are its accepted entries in case-insensitive name order; a file named
// __init__ with an accepted extension is the directory's init file. Entries
// starting with '_' or '.' and version control directories are skipped.
// Several paths become a synthetic root with the paths as children in
// argument order.
package suite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/casualjim/kwexec/api"
	"github.com/casualjim/kwexec/logger"
	"github.com/fogfish/opts"
)

const initStem = "__init__"

var (
	ignoredPrefixes = []string{"_", "."}
	ignoredDirs     = []string{"CVS"}
)

// DefaultExtensions are the suffixes accepted when none are configured.
var DefaultExtensions = []string{".robot", ".rbt"}

// Option configures a Builder.
type Option = opts.Option[Builder]

// Extensions replaces the accepted suffixes. The leading dot is optional.
func Extensions(exts ...string) Option {
	return opts.Type[Builder](func(b *Builder) error {
		b.extensions = b.extensions[:0]
		for _, ext := range exts {
			ext = strings.TrimSpace(ext)
			if strings.Trim(ext, ".") == "" {
				return fmt.Errorf("invalid extension '%s'", ext)
			}
			b.extensions = append(b.extensions, "."+strings.ToLower(strings.TrimLeft(ext, ".")))
		}
		return nil
	})
}

// IncludedSuites limits the files taken to the suites whose names match one
// of the glob patterns.
func IncludedSuites(names ...string) Option {
	return opts.Type[Builder](func(b *Builder) error {
		b.included = newPatterns(names)
		return nil
	})
}

// Builder builds suite trees. It is immutable once created.
type Builder struct {
	extensions []string
	included   patterns
}

// NewBuilder creates a builder accepting DefaultExtensions and every suite
// unless configured otherwise.
func NewBuilder(options ...Option) (*Builder, error) {
	b := &Builder{extensions: slices.Clone(DefaultExtensions)}
	if err := opts.Apply(b, options); err != nil {
		return nil, err
	}
	if len(b.extensions) == 0 {
		return nil, errors.New("at least one extension is required")
	}
	return b, nil
}

// Build builds the tree rooted at the given paths. Unreadable directories and
// several init files among the paths abort the build with an
// *api.DiscoveryError. Skipped entries are reported through the logger.
func (b *Builder) Build(ctx context.Context, paths ...string) (*Node, error) {
	switch len(paths) {
	case 0:
		return nil, &api.DiscoveryError{Message: "No paths given."}
	case 1:
		return b.build(ctx, paths[0], b.included)
	}
	return b.buildMultiSource(ctx, paths)
}

func (b *Builder) build(ctx context.Context, path string, included patterns) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isFile(path) {
		return &Node{Source: path}, nil
	}
	return b.buildDirectory(ctx, path, included)
}

func (b *Builder) buildDirectory(ctx context.Context, path string, included patterns) (*Node, error) {
	node := &Node{Source: path, dir: true, Children: []*Node{}}
	// everything below an included directory is included
	if isSuiteIncluded(filepath.Base(path), included) {
		included = nil
	}

	entries, err := listDir(path)
	if err != nil {
		return nil, err
	}
	for _, item := range entries {
		switch {
		case b.isInitFile(item):
			if node.InitFile != "" {
				logger.Errorf(ctx, "Ignoring second test suite init file '%s'.", item)
				continue
			}
			node.InitFile = item
		case b.isIncluded(item, included):
			child, err := b.build(ctx, item, included)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		default:
			logger.Infof(ctx, false, "Ignoring file or directory '%s'.", item)
		}
	}
	return node, nil
}

func (b *Builder) buildMultiSource(ctx context.Context, paths []string) (*Node, error) {
	node := &Node{dir: true, Children: []*Node{}}
	for _, path := range paths {
		if b.isInitFile(path) {
			if node.InitFile != "" {
				return nil, &api.DiscoveryError{Path: path, Message: "Multiple init files not allowed."}
			}
			node.InitFile = path
			continue
		}
		child, err := b.build(ctx, path, b.included)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func listDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &api.DiscoveryError{
			Path:    path,
			Message: fmt.Sprintf("Reading directory '%s' failed", path),
			Err:     err,
		}
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	slices.SortStableFunc(names, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	for i, name := range names {
		names[i] = filepath.Join(path, name)
	}
	return names, nil
}

func (b *Builder) isInitFile(path string) bool {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return strings.ToLower(stem) == initStem && b.accepts(ext) && isFile(path)
}

func (b *Builder) isIncluded(path string, included patterns) bool {
	name := filepath.Base(path)
	for _, prefix := range ignoredPrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	if isDir(path) {
		return !slices.Contains(ignoredDirs, name)
	}
	if !isFile(path) {
		return false
	}
	ext := filepath.Ext(name)
	if !b.accepts(ext) {
		return false
	}
	return isSuiteIncluded(strings.TrimSuffix(name, ext), included)
}

func (b *Builder) accepts(ext string) bool {
	return slices.Contains(b.extensions, strings.ToLower(ext))
}

func isSuiteIncluded(name string, included patterns) bool {
	if included.empty() {
		return true
	}
	if _, rest, ok := strings.Cut(name, "__"); ok && rest != "" {
		name = rest
	}
	return included.match(name)
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
