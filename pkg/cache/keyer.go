package cache

import "fmt"

// Keyer derives cache keys from stage inputs.
type Keyer interface {
	// GraphKey identifies a graph built from the input with the given hash.
	GraphKey(inputHash string, opts GraphKeyOpts) string

	// OrientKey identifies the orientation of a graph from a root node.
	OrientKey(graphHash string, opts OrientKeyOpts) string

	// SectionsKey identifies cross sections sampled from a volume along one
	// edge of a graph.
	SectionsKey(graphHash, volumeHash string, opts SectionsKeyOpts) string
}

// GraphKeyOpts are the build options that change a graph.
type GraphKeyOpts struct {
	MaxKnots int
	Tracer   string
}

// OrientKeyOpts are the orientation options that change an oriented graph.
type OrientKeyOpts struct {
	Root        int
	BreakCycles bool
}

// SectionsKeyOpts are the sampling options that change cross sections.
type SectionsKeyOpts struct {
	Edge        [3]int
	Positions   []float64
	GridShape   [2]int
	GridSpacing [2]float64
	FrameMethod string
	Order       int
	Fill        float64
}

// DefaultKeyer builds keys of the form kind:sha256(parts).
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) GraphKey(inputHash string, opts GraphKeyOpts) string {
	return hashKey("graph", inputHash, opts.MaxKnots, opts.Tracer)
}

func (DefaultKeyer) OrientKey(graphHash string, opts OrientKeyOpts) string {
	if opts.BreakCycles {
		return fmt.Sprintf("orient:%s:%d:break", graphHash, opts.Root)
	}
	return fmt.Sprintf("orient:%s:%d", graphHash, opts.Root)
}

func (DefaultKeyer) SectionsKey(graphHash, volumeHash string, opts SectionsKeyOpts) string {
	return hashKey("sections", graphHash, volumeHash, opts.Edge, opts.Positions,
		opts.GridShape, opts.GridSpacing, opts.FrameMethod, opts.Order, opts.Fill)
}

var _ Keyer = DefaultKeyer{}
