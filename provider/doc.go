// Package provider inspects keyword providers and exposes their keywords in a
// uniform shape, whatever convention the provider follows.
//
// Design decisions:
//   - Closed set of shapes: a provider is Static, Dynamic or Hybrid. The shape
//     is detected once by Inspect and stored on the Handle; dispatch switches on
//     it and never checks again.
//   - Reflection stays here: Go method signatures are adapted once into
//     Parameter descriptors. Other packages only see Keyword and Parameter.
//   - Rebuild, never patch: Refresh re-enumerates a dynamic or hybrid provider
//     and swaps in a complete new keyword set atomically.
//   - Process-wide cache: handles are cached per provider identity. The first
//     caller builds the handle and concurrent callers wait for it.
//
// Key concepts:
//   - Handle: one inspected provider with its kind, namespace and keywords
//   - Keyword: one invocable action with its parameters, tags and docs
//   - Parameter: one declared argument, with its semantic type and default
//   - Arguments: the bound values a keyword is called with
//
// Example usage:
//
//	h, err := provider.Get(ctx, &Browser{})
//	if err != nil {
//		return err
//	}
//	kw, ok := h.Lookup("Click Button")
package provider
