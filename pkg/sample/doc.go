// Package sample resamples volumes along skeleton curves.
//
// [Grid3D] and [Grid2D] build lattices of offsets centered on the origin.
// [SampleVolume] and [Interpolator] evaluate a volume at real-valued voxel
// coordinates with B-spline interpolation of order 0 to 5; points outside
// the volume take a fill value. [SampleCrossSections] combines the two with
// a spline's moving frame to cut images perpendicular to a branch.
package sample
