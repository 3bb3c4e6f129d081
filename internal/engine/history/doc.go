// Package history provides transactional undo/redo for application objects.
//
// Mutations are recorded as Changes, grouped by change scopes (Trackers)
// into immutable Items, and kept by a Manager in a single linear history
// with an undo/redo cursor.
//
// # Changes
//
// A Change is one reversible mutation with Redo and Undo. Built-in variants:
//   - AttributeChange: set a named attribute on a target (see package attr)
//   - ListInsertChange / ListRemoveChange: insert into or remove from a slice
//   - MapInsertChange / MapRemoveChange: insert into or remove from a map
//
// Every variant checks current membership or identity before mutating, so
// Undo and Redo can be repeated safely. Constructors validate their inputs
// and return errors; failures while applying are reported to the manager's
// logger and never abort the rest of an undo or redo.
//
// # Scopes
//
// A Tracker is a transaction scope. Open one around a logical operation,
// record a Change for each mutation, and complete it on every exit path:
//
//	t := history.Open(selection...)
//	defer t.Complete()
//
//	old := shape.Name
//	shape.Name = "b"
//	c, err := history.NewAttributeChange(shape, "Name", old, "b")
//	if err != nil {
//	    return err
//	}
//	t.Record(c)
//
// A top-level scope commits an Item when it completes. A scope opened while
// another is active merges its changes into the enclosing scope instead.
// The enclosing scope is discovered through the manager's active-scope slot.
// In the default NestOutermost mode the slot is claimed only when empty, so
// every nested scope, at any depth, merges into the outermost one. Pass
// WithNesting(NestImmediate) for parent-equals-innermost nesting, or use
// OpenWithin to name the parent explicitly.
//
// # History
//
//	ok, selection := history.Default().Undo()
//	ok, selection = history.Default().Redo()
//
// Committing while items are undone discards the redo branch. Observers
// registered with Subscribe or SubscribeProperty hear about CanUndo and
// CanRedo after every Commit, Undo, Redo and Clear.
package history
