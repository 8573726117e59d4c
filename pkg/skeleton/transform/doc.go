// Package transform turns a built skeleton graph into a rooted, directed
// structure.
//
// # Orientation
//
// [Orient] walks the undirected skeleton breadth-first from a root node and
// returns a new directed graph holding only the traversal tree. This is a
// spanning-tree reduction, not just a direction assignment: an edge that
// closes a cycle, a second edge between two junctions, or a self-loop is
// dropped. Skeletons of real tissue do contain loops, so dropping is
// expected and is reported in [OrientReport] and logged at warn level.
//
// After orientation every edge runs from parent to child. Edges whose path
// was stored the other way have path and spline reversed together, so
// downstream code can always walk an edge from U to V.
//
// Components that the root cannot reach are oriented from their
// highest-degree node. This is a heuristic: it gives a usable tree, not
// necessarily the anatomically correct one.
//
// # Validation
//
// [ValidateOrientation] checks the result: the root has no incoming edge,
// there is no directed cycle, every node is reachable, and every path agrees
// with its edge.
//
// # Cycle Breaking
//
// [BreakCycles] removes back edges from graphs that arrive already directed
// (for example from a document written by another tool). [Orient] passes
// such graphs through unchanged unless OrientOptions.BreakCycles is set, in
// which case it returns a copy with the back edges removed.
package transform
