// Package pixelgraph turns a one-voxel-thin binary mask into skeleton nodes
// and branches.
//
// The mask is read as a graph on its set voxels with 26-connectivity. A
// diagonal link is dropped when both ends also touch a common set voxel
// that is closer to each of them, which removes the triangles thin
// staircases and junctions would otherwise form. After pruning, every voxel
// with exactly two links lies on a branch and every other voxel is part of a
// node.
//
// [Tracer] implements skeleton.Skeletonizer, so a mask produced by any
// thinning step can go straight into skeleton.FromMask:
//
//	g, err := skeleton.FromMask(ctx, mask, pixelgraph.Tracer{}, skeleton.BuildOptions{})
//
// The tracer does not thin. Thick masks produce clusters of node voxels
// and short spurious branches.
package pixelgraph
