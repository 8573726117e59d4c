// Package io provides JSON import and export for skeleton graphs.
//
// # Overview
//
// A skeleton graph is persisted as a single UTF-8 JSON document. Numeric
// arrays become plain nested number lists, and each edge spline becomes a
// tagged object whose "__class__" member names its type. The format is
// designed for:
//
//   - Lossless round trips: node keys, edge keys, coordinates, paths and
//     spline coefficients survive export and re-import
//   - Exchange with tools that read node-link graph documents
//
// # JSON Format
//
//	{
//	  "graph": {
//	    "directed": true,
//	    "multigraph": true,
//	    "nodes": [
//	      {"id": 0, "node_coordinate": [10, 10, 5]},
//	      {"id": 1, "node_coordinate": [10, 10, 10]}
//	    ],
//	    "edges": [
//	      {"source": 0, "target": 1, "key": 0,
//	       "path_coordinates": [[10, 10, 5], [10, 10, 7.5], [10, 10, 10]],
//	       "spline": {"__class__": "skeleplex.B3Spline", "backend": "skeleplex",
//	                  "model": {"__class__": "skeleplex.SplineModel", ...}}}
//	    ]
//	  }
//	}
//
// # Tagged Objects
//
// Tagged objects are reconstructed through a [Registry], a table from
// discriminator to decode function. [NewRegistry] knows the spline types;
// documents naming any other discriminator fail to decode. Tagging a
// payload that already holds a "__class__" member is an error, since the
// round trip would be ambiguous.
//
// # Import and Export
//
// Use [ImportJSON] and [ExportJSON] for files, or [ReadJSON] and [WriteJSON]
// for any reader or writer. Files are always closed, also on error, and an
// error from closing a written file is reported.
//
//	g, err := io.ImportJSON("skeleton.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Branch Tables
//
// [ReadBranches] and [WriteBranches] handle the raw skeletonizer output
// that [skeleton.FromBranches] consumes: a node table and a list of branch
// paths.
package io
