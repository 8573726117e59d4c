package io

import (
	"github.com/skeleplex/skeleplex/pkg/codec"
	"github.com/skeleplex/skeleplex/pkg/spline"
)

// Registry maps the "__class__" discriminators found in documents to decode
// functions. See package codec for the tagging rules.
type Registry = codec.Registry

// NewRegistry returns a registry holding every type that can appear in a
// skeleton graph document. Callers embedding their own tagged types can
// register them on the result and pass it to [ReadJSONWith].
func NewRegistry() *Registry {
	return spline.NewRegistry()
}
