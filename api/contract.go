package api

import (
	"context"
	"slices"

	"github.com/casualjim/kwexec/pkg/future"
)

// KeywordNamer enumerates the keywords of a dynamic or hybrid provider. It is
// queried again whenever the engine refreshes the provider, so the returned
// set may change during a run.
type KeywordNamer interface {
	GetKeywordNames(ctx context.Context) ([]string, error)
}

// AsyncKeywordNamer is the awaitable form of KeywordNamer.
type AsyncKeywordNamer interface {
	GetKeywordNamesAsync(ctx context.Context) future.Future[[]string]
}

// KeywordRunner executes any keyword of a dynamic provider by name.
type KeywordRunner interface {
	RunKeyword(ctx context.Context, name string, args []any, named map[string]any) (any, error)
}

// AsyncKeywordRunner is the awaitable form of KeywordRunner. Every keyword of
// a provider implementing it is treated as asynchronous.
type AsyncKeywordRunner interface {
	RunKeywordAsync(ctx context.Context, name string, args []any, named map[string]any) future.Future[any]
}

// ArgumentsDescriber returns the argument specification of a dynamic keyword.
// Each entry is one of "name", "name=default", "*varargs", "**kwargs", and a
// name may carry a type as in "name: int" or "name: int=5". A lone "*" marks
// the start of named-only arguments.
type ArgumentsDescriber interface {
	GetKeywordArguments(ctx context.Context, name string) ([]string, error)
}

// TypesDescriber maps argument names of a dynamic keyword to type expressions
// such as "int", "list[str]" or "bool | None".
type TypesDescriber interface {
	GetKeywordTypes(ctx context.Context, name string) (map[string]string, error)
}

// TagsDescriber returns the tags of a dynamic keyword.
type TagsDescriber interface {
	GetKeywordTags(ctx context.Context, name string) ([]string, error)
}

// DocDescriber returns the documentation of a dynamic keyword.
type DocDescriber interface {
	GetKeywordDocumentation(ctx context.Context, name string) (string, error)
}

// Description carries what reflection cannot see about a static or hybrid
// keyword. Args uses the same syntax as ArgumentsDescriber and names the Go
// parameters in order, after any leading context.Context.
type Description struct {
	Name    string
	Aliases []string
	Args    []string
	Types   map[string]string
	Tags    []string
	Doc     string
}

// Describer describes the keywords of a static or hybrid provider, keyed by
// Go method name.
type Describer interface {
	DescribeKeywords() map[string]Description
}

// Named lets a provider choose the namespace used for qualified keyword
// names like "Browser.Open Browser".
type Named interface {
	KeywordProviderName() string
}

// KeywordArgs as the last parameter of a keyword method collects the named
// arguments that match no other parameter.
type KeywordArgs map[string]any

var reservedMethods = []string{
	"GetKeywordNames",
	"GetKeywordNamesAsync",
	"RunKeyword",
	"RunKeywordAsync",
	"GetKeywordArguments",
	"GetKeywordTypes",
	"GetKeywordTags",
	"GetKeywordDocumentation",
	"DescribeKeywords",
	"KeywordProviderName",
	"String",
	"Close",
}

// IsReserved reports whether a method name belongs to the provider contract
// rather than being a keyword.
func IsReserved(method string) bool {
	return slices.Contains(reservedMethods, method)
}
