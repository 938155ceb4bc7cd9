// Package libdoc documents the keywords of an inspected provider. A Library
// renders as markdown for terminals and every keyword exposes a JSON schema of
// its arguments.
package libdoc

import (
	"fmt"
	"strings"

	"github.com/casualjim/kwexec/provider"
	"github.com/casualjim/kwexec/types"
	"github.com/charmbracelet/glamour"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Library is the documentation of one provider.
type Library struct {
	Name     string
	Kind     provider.Kind
	Keywords []KeywordDoc
}

// KeywordDoc is the documentation of one keyword.
type KeywordDoc struct {
	Name          string
	Aliases       []string
	Tags          []string
	Documentation string
	Async         bool
	ArgsUnknown   bool
	Args          []ArgDoc
}

// ArgDoc documents one parameter.
type ArgDoc struct {
	Name       string
	Type       types.Type
	Default    any
	HasDefault bool
	Variadic   bool
	KwVariadic bool
	NamedOnly  bool
}

// New documents the current keyword set of h.
func New(h *provider.Handle) Library {
	lib := Library{Name: h.Name, Kind: h.Kind}
	for _, kw := range h.Keywords() {
		lib.Keywords = append(lib.Keywords, describe(kw))
	}
	return lib
}

func describe(kw *provider.Keyword) KeywordDoc {
	doc := KeywordDoc{
		Name:          kw.Name,
		Aliases:       aliasesOf(kw),
		Tags:          kw.Tags,
		Documentation: kw.Documentation,
		Async:         kw.IsAsync,
		ArgsUnknown:   kw.ArgsUnknown,
	}
	for _, p := range kw.Parameters {
		doc.Args = append(doc.Args, ArgDoc{
			Name:       p.Name,
			Type:       p.Type,
			Default:    p.Default,
			HasDefault: p.HasDefault,
			Variadic:   p.IsVariadic,
			KwVariadic: p.IsKeywordVariadic,
			NamedOnly:  p.IsNamedOnly,
		})
	}
	return doc
}

// aliasesOf drops aliases that only restate the keyword name, like the Go
// method name of a static keyword.
func aliasesOf(kw *provider.Keyword) []string {
	var out []string
	for _, a := range kw.Aliases {
		if provider.Canonical(a) != kw.Key() {
			out = append(out, a)
		}
	}
	return out
}

// String renders the argument the way it is declared, e.g. "timeout: integer = 5".
func (a ArgDoc) String() string {
	var b strings.Builder
	switch {
	case a.Variadic:
		b.WriteString("*")
	case a.KwVariadic:
		b.WriteString("**")
	}
	b.WriteString(a.Name)
	if !a.Type.IsAny() {
		b.WriteString(": ")
		b.WriteString(a.Type.String())
	}
	if a.HasDefault {
		fmt.Fprintf(&b, " = %v", a.Default)
	}
	return b.String()
}

// Signature renders the keyword name with its arguments.
func (k KeywordDoc) Signature() string {
	if k.ArgsUnknown {
		return k.Name + "(...)"
	}
	parts := make([]string, len(k.Args))
	for i, a := range k.Args {
		parts[i] = a.String()
	}
	return k.Name + "(" + strings.Join(parts, ", ") + ")"
}

var recordReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// Schema describes the named arguments of the keyword as a JSON object.
// Arguments without a default are required, a variadic is an array and a
// keyword variadic opens the object to additional properties.
func (k KeywordDoc) Schema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:        "object",
		Title:       k.Name,
		Description: k.Documentation,
		Properties:  orderedmap.New[string, *jsonschema.Schema](),
	}
	if k.ArgsUnknown {
		schema.AdditionalProperties = jsonschema.TrueSchema
		return schema
	}
	schema.AdditionalProperties = jsonschema.FalseSchema

	var required []string
	for _, a := range k.Args {
		switch {
		case a.KwVariadic:
			schema.AdditionalProperties = jsonschema.TrueSchema
			if a.Type.Kind == types.Map && a.Type.Elem != nil && !a.Type.Elem.IsAny() {
				schema.AdditionalProperties = typeSchema(*a.Type.Elem)
			}
		case a.Variadic:
			schema.Properties.Set(a.Name, &jsonschema.Schema{Type: "array", Items: typeSchema(a.Type)})
		default:
			prop := typeSchema(a.Type)
			if a.HasDefault {
				prop.Default = a.Default
			} else {
				required = append(required, a.Name)
			}
			schema.Properties.Set(a.Name, prop)
		}
	}
	if len(required) > 0 {
		schema.Required = required
	}
	return schema
}

func typeSchema(t types.Type) *jsonschema.Schema {
	switch t.Kind {
	case types.None:
		return &jsonschema.Schema{Type: "null"}
	case types.Bool:
		return &jsonschema.Schema{Type: "boolean"}
	case types.Int, types.Uint:
		return &jsonschema.Schema{Type: "integer"}
	case types.Float:
		return &jsonschema.Schema{Type: "number"}
	case types.String, types.Bytes:
		return &jsonschema.Schema{Type: "string"}
	case types.Duration:
		return &jsonschema.Schema{Type: "string", Format: "duration"}
	case types.Enum:
		enum := make([]any, len(t.Choices))
		for i, c := range t.Choices {
			enum[i] = c
		}
		return &jsonschema.Schema{Type: "string", Title: t.Name, Enum: enum}
	case types.List:
		s := &jsonschema.Schema{Type: "array"}
		if n := uint64(len(t.Items)); n > 0 {
			for _, item := range t.Items {
				s.PrefixItems = append(s.PrefixItems, typeSchema(item))
			}
			s.MinItems, s.MaxItems = &n, &n
			return s
		}
		if t.Elem != nil && !t.Elem.IsAny() {
			s.Items = typeSchema(*t.Elem)
		}
		return s
	case types.Map:
		s := &jsonschema.Schema{Type: "object"}
		if t.Elem != nil && !t.Elem.IsAny() {
			s.AdditionalProperties = typeSchema(*t.Elem)
		}
		return s
	case types.Record:
		if t.GoType != nil {
			s := recordReflector.ReflectFromType(t.GoType)
			s.Version = ""
			return s
		}
		s := &jsonschema.Schema{
			Type:       "object",
			Title:      t.Name,
			Properties: orderedmap.New[string, *jsonschema.Schema](),
		}
		for _, f := range t.Fields {
			s.Properties.Set(f.Name, typeSchema(f.Type))
		}
		return s
	case types.Union:
		s := &jsonschema.Schema{}
		for _, alt := range t.Alternatives {
			s.AnyOf = append(s.AnyOf, typeSchema(alt))
		}
		return s
	}
	return &jsonschema.Schema{}
}

// Markdown renders the library as a markdown document.
func (l Library) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", l.Name)
	fmt.Fprintf(&b, "_%s library, %d keyword(s)_\n", l.Kind, len(l.Keywords))
	for _, kw := range l.Keywords {
		fmt.Fprintf(&b, "\n## %s\n\n", kw.Name)
		fmt.Fprintf(&b, "`%s`\n", kw.Signature())
		if kw.Async {
			b.WriteString("\nRuns asynchronously.\n")
		}
		if len(kw.Aliases) > 0 {
			fmt.Fprintf(&b, "\nAliases: %s\n", codeList(kw.Aliases))
		}
		if len(kw.Tags) > 0 {
			fmt.Fprintf(&b, "\nTags: %s\n", codeList(kw.Tags))
		}
		if doc := strings.TrimSpace(kw.Documentation); doc != "" {
			b.WriteString("\n" + doc + "\n")
		}
	}
	return b.String()
}

// Render renders the library for a terminal of the given width. Styles stay
// plain so the output is stable when piped.
func (l Library) Render(width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(l.Markdown())
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "`" + it + "`"
	}
	return strings.Join(quoted, ", ")
}
