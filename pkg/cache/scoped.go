package cache

// ScopedKeyer wraps a Keyer with a prefix, so that several projects can
// share one Redis database without their entries colliding:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "lung-atlas:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) GraphKey(inputHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(inputHash, opts)
}

func (k *ScopedKeyer) OrientKey(graphHash string, opts OrientKeyOpts) string {
	return k.prefix + k.inner.OrientKey(graphHash, opts)
}

func (k *ScopedKeyer) SectionsKey(graphHash, volumeHash string, opts SectionsKeyOpts) string {
	return k.prefix + k.inner.SectionsKey(graphHash, volumeHash, opts)
}
