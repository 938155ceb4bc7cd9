package suite

import (
	"path/filepath"
	"strings"
)

// Node is one entry of the suite tree: a suite file, a directory, or the
// synthetic root built for several explicit paths.
type Node struct {
	// Source is the file or directory path. It is empty for the root of a
	// multi-source build.
	Source string
	// InitFile is the directory level setup file, if any.
	InitFile string
	// Children is nil for files and in case-insensitive name order for
	// directories.
	Children []*Node

	dir bool
}

// IsDirectory reports whether n is a directory or a multi-source root.
func (n *Node) IsDirectory() bool { return n.dir }

// IsMultiSource reports whether n is the synthetic root of several paths.
func (n *Node) IsMultiSource() bool { return n.dir && n.Source == "" }

// Extension is the lower case suffix without the dot: of the file itself, or
// of the init file of a directory. Directories without an init file have
// none.
func (n *Node) Extension() string {
	path := n.Source
	if n.dir {
		path = n.InitFile
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Visit walks n depth first.
func (n *Node) Visit(v Visitor) {
	if !n.dir {
		v.VisitFile(n)
		return
	}
	v.StartDirectory(n)
	for _, child := range n.Children {
		child.Visit(v)
	}
	v.EndDirectory(n)
}

// Visitor is how the suite parser walks the tree.
type Visitor interface {
	VisitFile(*Node)
	StartDirectory(*Node)
	EndDirectory(*Node)
}

// BaseVisitor ignores everything; embed it to implement only what is needed.
type BaseVisitor struct{}

func (BaseVisitor) VisitFile(*Node)      {}
func (BaseVisitor) StartDirectory(*Node) {}
func (BaseVisitor) EndDirectory(*Node)   {}
