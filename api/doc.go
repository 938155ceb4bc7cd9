// Package api defines the contract between the keyword engine and the
// libraries that provide keywords, together with the errors the engine
// reports.
//
// A provider is any Go value. How its keywords are discovered depends on
// which of the interfaces in this package it implements:
//
//   - Dynamic: a names entry point (KeywordNamer or AsyncKeywordNamer) and a
//     generic runner (KeywordRunner or AsyncKeywordRunner). Arguments, types,
//     tags and documentation come from the optional describer companions.
//   - Hybrid: a names entry point without a runner. Every name must be an
//     exported method of the provider.
//   - Static: none of the above. Every exported method that is not part of
//     this contract is a keyword.
//
// Static and hybrid providers can implement Describer to supply the parameter
// names, defaults, tags and documentation that reflection cannot see. The
// kwgen command generates such an implementation from source comments.
//
// Example static provider:
//
//	type Browser struct{}
//
//	func (b *Browser) OpenBrowser(ctx context.Context, url string) error { ... }
//	func (b *Browser) ClickButton(locator string, timeout int) error { ... }
//
// Example dynamic provider:
//
//	type Remote struct{}
//
//	func (r *Remote) GetKeywordNames(ctx context.Context) ([]string, error) {
//		return []string{"Ping", "Echo"}, nil
//	}
//
//	func (r *Remote) RunKeyword(ctx context.Context, name string, args []any, named map[string]any) (any, error) {
//		...
//	}
package api
