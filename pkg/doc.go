// Package pkg provides the core libraries for Skeleplex skeleton analysis.
//
// # Overview
//
// Skeleplex turns the skeleton of a segmented 3D structure (airways,
// vessels, neurites) into a graph whose edges are smooth curves, and uses
// those curves to look back into the image. The pkg directory is organized
// as follows:
//
//  1. [spline] - cubic B-spline curves: fitting, arc-length evaluation,
//     moving frames
//  2. [skeleton] - the multigraph of nodes and spline edges, with
//     [skeleton/transform] for orientation and cycle breaking
//  3. [volume], [pixelgraph], [sample] - voxel data, mask tracing and
//     curvilinear resampling
//  4. [io], [codec] - the tagged JSON document format
//  5. [pipeline] - orchestration (build → orient → sample → render) with
//     [cache] and [observability]
//  6. [render/nodelink] - Graphviz node-link diagrams
//
// # Architecture
//
// The typical data flow:
//
//	skeleton mask (z-slices)        branch table (JSON)
//	         ↓                               ↓
//	  [pixelgraph] tracer ──────→ [skeleton.FromBranches]
//	                                         ↓
//	                     [skeleton.Graph] (undirected, spline edges)
//	                                         ↓
//	                     [transform.Orient] (directed tree from a root)
//	                                         ↓
//	          [sample.SampleCrossSections] + intensity volume
//	                                         ↓
//	            cross-section stacks, JSON graph, SVG/PNG/PDF diagram
//
// # Quick Start
//
//	import (
//	    "github.com/skeleplex/skeleplex/pkg/io"
//	    "github.com/skeleplex/skeleplex/pkg/skeleton"
//	    "github.com/skeleplex/skeleplex/pkg/skeleton/transform"
//	)
//
//	// 1. Build a graph from skeletonizer output
//	skel, _ := io.ImportBranches("branches.json")
//	g, _ := skeleton.FromBranches(skel.Nodes, skel.Branches, skeleton.BuildOptions{})
//
//	// 2. Orient it from the node nearest to the trachea
//	root, _ := g.NearestNode(r3.Vec{X: 10, Y: 10, Z: 5})
//	d, report, _ := transform.Orient(g, root, transform.OrientOptions{})
//
//	// 3. Save it
//	_ = io.ExportJSON(d, "airways.json")
//
// [pipeline.Runner] wraps the same steps with caching and is what the
// skeleplex command uses.
package pkg
