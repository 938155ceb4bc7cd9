// Package kwexec runs keywords of in-process providers for a keyword-driven
// test automation engine.
//
// An Engine holds an ordered list of registered providers. Each step names a
// keyword; the engine resolves the name against the providers, binds and
// converts the arguments, and invokes the keyword with a timeout. Every call
// ends in an executor.Result, whatever went wrong.
//
// # Runs
//
// Start begins a run and returns a context carrying it. Suites and tests are
// entered with EnterSuite and EnterTest; keyword calls made with that context
// push keyword frames on top. Frame and result events are published to the
// run's topic on the configured broker and delivered to hooks:
//
//	eng, err := kwexec.New(kwexec.WithHook(pubsub.LoggingHook()))
//	if err != nil {
//		return err
//	}
//	if err := eng.Register(ctx, &Browser{}); err != nil {
//		return err
//	}
//	ctx, run, err := eng.Start(ctx)
//	if err != nil {
//		return err
//	}
//	defer run.Close(ctx)
//
//	leave := kwexec.EnterTest(ctx, "Login")
//	res := eng.RunKeyword(ctx, "Given Click Button", []any{"#ok", "timeout=10"}, nil)
//	leave()
//
// # Providers
//
// Providers are plain Go values. Static providers expose keywords as exported
// methods, dynamic providers enumerate names and run them by name, and hybrid
// providers enumerate names backed by methods. See package provider.
package kwexec
