// Package skeleton models a branching 3D centerline as a multigraph whose
// edges carry spline curves.
//
// # Overview
//
// A skeleton is extracted from a binary volume: junctions and end points
// become nodes, and each centerline segment between two nodes becomes an
// edge. Every edge stores the ordered voxel path of its segment and a
// [spline.B3Spline] fit through that path in the same order.
//
// Skeletons are multigraphs. Two branches joining the same junctions, or a
// branch that loops back to its own junction, are separate edges told apart
// by a multiplicity key:
//
//	g, err := skeleton.FromBranches(nodes, branches, skeleton.BuildOptions{})
//	e, ok := g.Edge(0, 1, 0)
//
// # Storage
//
// Nodes and edges are fixed-shape records held in slices. Adjacency is not
// stored: queries such as [Graph.Neighbors] and [Graph.Degree] scan the
// edge arena, which is cheap at skeleton sizes.
//
// # Equality
//
// [Graph.Equal] compares only node keys and edge keys, so two graphs with
// the same topology but different geometry are equal. [Graph.DeepEqual]
// additionally compares coordinates, paths and splines within a tolerance.
//
// # Building
//
// [FromBranches] turns skeletonizer output into an undirected graph.
// [FromMask] runs a [Skeletonizer] first. Use the transform subpackage to
// orient the result from a root node.
package skeleton
