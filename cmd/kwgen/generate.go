package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/casualjim/kwexec/api"
	"mvdan.cc/gofumpt/format"
)

const (
	defaultOutput   = "keywords_gen.go"
	directivePrefix = "kwexec:"
	apiImportPath   = "github.com/casualjim/kwexec/api"
	describeMethod  = "DescribeKeywords"
)

type methodInfo struct {
	name    string
	display string
	aliases []string
	tags    []string
	doc     string
	args    []string
}

type providerInfo struct {
	name    string
	methods []methodInfo
}

type directive struct {
	name  string
	value string
}

// processDir generates the descriptions of the providers declared in dir. It
// reports whether a file was written.
func processDir(dir, out string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	fset := token.NewFileSet()
	var files []*ast.File
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") || name == out {
			continue
		}
		path := filepath.Join(dir, name)
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			slog.Error("Error parsing file", slog.String("file", path), slog.String("error", err.Error()))
			return false, err
		}
		if ast.IsGenerated(file) {
			continue
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return false, nil
	}

	pkgName := files[0].Name.Name
	for _, f := range files[1:] {
		if f.Name.Name != pkgName {
			return false, fmt.Errorf("found packages %s and %s in %s", pkgName, f.Name.Name, dir)
		}
	}

	providers, err := collectProviders(files)
	if err != nil {
		return false, err
	}
	if len(providers) == 0 {
		return false, nil
	}

	src, err := generate(pkgName, providers)
	if err != nil {
		return false, err
	}
	target := filepath.Join(dir, out)
	if err := os.WriteFile(target, src, 0o644); err != nil {
		return false, err
	}
	slog.Info("Generated file", slog.String("file", target), slog.Int("providers", len(providers)))
	return true, nil
}

// collectProviders finds the marked provider types of a package and the
// keyword methods declared on them, in source order.
func collectProviders(files []*ast.File) ([]providerInfo, error) {
	var providers []providerInfo
	index := map[string]int{}

	for _, file := range files {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				_, directives := splitComment(doc)
				if !hasDirective(directives, "provider") {
					continue
				}
				if ts.TypeParams != nil {
					return nil, fmt.Errorf("provider %s: generic provider types are not supported", ts.Name.Name)
				}
				index[ts.Name.Name] = len(providers)
				providers = append(providers, providerInfo{name: ts.Name.Name})
			}
		}
	}

	for _, file := range files {
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv == nil || len(fd.Recv.List) == 0 {
				continue
			}
			i, ok := index[receiverName(fd.Recv.List[0].Type)]
			if !ok {
				continue
			}
			if fd.Name.Name == describeMethod {
				return nil, fmt.Errorf("provider %s already declares %s", providers[i].name, describeMethod)
			}
			if !fd.Name.IsExported() || api.IsReserved(fd.Name.Name) {
				continue
			}
			m, err := collectMethod(fd)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", providers[i].name, err)
			}
			providers[i].methods = append(providers[i].methods, m)
		}
	}
	return providers, nil
}

func receiverName(expr ast.Expr) string {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

func collectMethod(fd *ast.FuncDecl) (methodInfo, error) {
	doc, directives := splitComment(fd.Doc)
	m := methodInfo{name: fd.Name.Name, doc: doc, args: parameterSpecs(fd.Type.Params)}

	for _, d := range directives {
		switch d.name {
		case "name":
			m.display = d.value
		case "alias":
			m.aliases = append(m.aliases, splitList(d.value)...)
		case "tags":
			m.tags = append(m.tags, splitList(d.value)...)
		case "default":
			name, value, ok := strings.Cut(d.value, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return m, fmt.Errorf("%s: default must be written as name=value, got '%s'", m.name, d.value)
			}
			idx := slices.Index(m.args, name)
			if idx < 0 {
				return m, fmt.Errorf("%s: default for unknown argument '%s'", m.name, name)
			}
			m.args[idx] = name + "=" + strings.TrimSpace(value)
		default:
			return m, fmt.Errorf("%s: unknown directive '%s%s'", m.name, directivePrefix, d.name)
		}
	}
	return m, nil
}

// parameterSpecs renders the parameters the way argument specifications
// name them. A leading context.Context is not an argument.
func parameterSpecs(params *ast.FieldList) []string {
	var specs []string
	n := 0
	for i, field := range params.List {
		if i == 0 && isContext(field.Type) {
			continue
		}
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, id := range names {
			n++
			name := fmt.Sprintf("arg%d", n)
			if id != nil && id.Name != "_" {
				name = id.Name
			}
			switch {
			case isEllipsis(field.Type):
				name = "*" + name
			case isKeywordArgs(field.Type):
				name = "**" + name
			}
			specs = append(specs, name)
		}
	}
	return specs
}

func isContext(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "context" && sel.Sel.Name == "Context"
}

func isEllipsis(expr ast.Expr) bool {
	_, ok := expr.(*ast.Ellipsis)
	return ok
}

func isKeywordArgs(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.SelectorExpr:
		return t.Sel.Name == "KeywordArgs"
	case *ast.Ident:
		return t.Name == "KeywordArgs"
	}
	return false
}

// splitComment separates the text of a doc comment from its kwexec
// directives.
func splitComment(doc *ast.CommentGroup) (string, []directive) {
	if doc == nil {
		return "", nil
	}
	var (
		lines      []string
		directives []directive
	)
	for _, c := range doc.List {
		text := c.Text
		if strings.HasPrefix(text, "/*") {
			text = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
		} else {
			text = strings.TrimPrefix(text, "//")
		}
		for _, line := range strings.Split(text, "\n") {
			trimmed := strings.TrimSpace(line)
			if rest, ok := strings.CutPrefix(trimmed, directivePrefix); ok {
				name, value, _ := strings.Cut(rest, " ")
				directives = append(directives, directive{name: name, value: strings.TrimSpace(value)})
				continue
			}
			lines = append(lines, strings.TrimPrefix(line, " "))
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), directives
}

func hasDirective(directives []directive, name string) bool {
	return slices.ContainsFunc(directives, func(d directive) bool { return d.name == name })
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// generate renders the DescribeKeywords methods of providers as a gofumpt
// formatted Go file.
func generate(pkgName string, providers []providerInfo) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("// Code generated by kwgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkgName)
	fmt.Fprintf(&b, "import %q\n", apiImportPath)

	for _, p := range providers {
		fmt.Fprintf(&b, "\n// %s describes the keywords of %s.\n", describeMethod, p.name)
		fmt.Fprintf(&b, "func (%s) %s() map[string]api.Description {\n", p.name, describeMethod)
		b.WriteString("return map[string]api.Description{\n")
		for _, m := range p.methods {
			fmt.Fprintf(&b, "%s: {\n", strconv.Quote(m.name))
			if m.display != "" {
				fmt.Fprintf(&b, "Name: %s,\n", strconv.Quote(m.display))
			}
			if len(m.aliases) > 0 {
				fmt.Fprintf(&b, "Aliases: %s,\n", stringSlice(m.aliases))
			}
			if len(m.args) > 0 {
				fmt.Fprintf(&b, "Args: %s,\n", stringSlice(m.args))
			}
			if len(m.tags) > 0 {
				fmt.Fprintf(&b, "Tags: %s,\n", stringSlice(m.tags))
			}
			if m.doc != "" {
				fmt.Fprintf(&b, "Doc: %s,\n", strconv.Quote(m.doc))
			}
			b.WriteString("},\n")
		}
		b.WriteString("}\n}\n")
	}

	return format.Source(b.Bytes(), format.Options{LangVersion: "go1.23"})
}

func stringSlice(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = strconv.Quote(it)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}
