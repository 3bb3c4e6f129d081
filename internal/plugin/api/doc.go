// Package api exposes the history manager and the scene document to Lua
// scripts.
//
// Two modules are installed as globals and are also loadable with require:
//
//	history.scope(function(scope)
//	    scene.add("box")
//	    scene.set("box", "X", 10)
//	    scope:select("box")
//	end, "box")
//
//	local ok, selection = history.undo()
//
// Scene mutations made outside history.scope open their own scope, so each
// one becomes a separate undoable item. Inside a scope they merge into it.
package api
