// Package lua runs user scripts in a sandboxed gopher-lua state.
//
// A State opens only the base, table, string and math libraries, removes
// the file-loading functions and replaces require with a version that
// resolves only safe built-ins and modules registered on the State:
//
//	state, err := lua.NewState(
//	    lua.WithExecutionTimeout(5 * time.Second),
//	    lua.WithInstructionLimit(100_000),
//	)
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	state.RegisterModule("history", funcs)
//	if err := state.DoFile(ctx, "edit.lua"); err != nil {
//	    return err
//	}
//
// # Limits
//
// Each DoString or DoFile runs under the caller's context, bounded by the
// execution timeout. The instruction limit is charged once for every call
// from Lua into a host function created with State.NewFunction or
// registered with RegisterModule; when it runs out the script is aborted
// with ErrInstructionLimit.
//
// # Bridge
//
// ToGoValue and ToLuaValue convert between Lua values and plain Go values:
// booleans, numbers, strings, slices and string-keyed maps.
package lua
