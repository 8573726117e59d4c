// Package codec implements the type-discriminator scheme used to embed
// typed objects (splines and their models) inside JSON documents.
//
// A tagged object is a JSON object carrying a reserved "__class__" key
// whose string value names the object's type:
//
//	{"__class__": "skeleplex.B3Spline", "backend": "skeleplex", "model": {...}}
//
// A [Registry] maps each discriminator to a [DecodeFunc]. Decoding reads the
// discriminator, strips it, and hands the remaining fields to the function,
// which may decode nested tagged objects through the same registry. There is
// no reflection-based type lookup: a type is decodable only if it was
// registered.
package codec

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

// ClassKey is the reserved key holding an object's discriminator.
const ClassKey = "__class__"

// Fields holds the undecoded members of a tagged object, without ClassKey.
type Fields map[string]json.RawMessage

// DecodeFunc reconstructs a value from the fields of a tagged object.
// The registry is passed so that nested tagged objects can be decoded.
type DecodeFunc func(fields Fields, r *Registry) (any, error)

// Registry maps discriminator strings to decode functions.
// The zero value is not usable - use NewRegistry.
// A Registry is safe for concurrent decoding once registration is finished.
type Registry struct {
	decoders map[string]DecodeFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecodeFunc)}
}

// Register adds a decoder for tag. Registering the same tag twice is an
// error: silently replacing a decoder would make documents ambiguous.
func (r *Registry) Register(tag string, fn DecodeFunc) error {
	if tag == "" {
		return errors.New(errors.ErrCodeInvalidInput, "discriminator must not be empty")
	}
	if fn == nil {
		return errors.New(errors.ErrCodeInvalidInput, "decoder for %q is nil", tag)
	}
	if _, exists := r.decoders[tag]; exists {
		return errors.New(errors.ErrCodeDuplicateDiscriminator, "discriminator %q already registered", tag)
	}
	r.decoders[tag] = fn
	return nil
}

// Registered reports whether tag has a decoder.
func (r *Registry) Registered(tag string) bool {
	_, ok := r.decoders[tag]
	return ok
}

// Tags returns the registered discriminators in sorted order.
func (r *Registry) Tags() []string {
	return slices.Sorted(maps.Keys(r.decoders))
}

// Tag returns a copy of payload with ClassKey set to tag.
//
// Tag fails if payload already contains ClassKey, since the original value
// would be lost and the round trip would be ambiguous, and if tag is not
// registered, since the output could not be decoded again.
func (r *Registry) Tag(tag string, payload map[string]any) (map[string]any, error) {
	if _, exists := payload[ClassKey]; exists {
		return nil, errors.New(errors.ErrCodeReservedKey, "payload for %q already has a %q key", tag, ClassKey)
	}
	if !r.Registered(tag) {
		return nil, errors.New(errors.ErrCodeUnknownDiscriminator, "discriminator %q is not registered", tag)
	}
	out := make(map[string]any, len(payload)+1)
	maps.Copy(out, payload)
	out[ClassKey] = tag
	return out, nil
}

// Decode reconstructs the tagged object in raw.
// Unknown discriminators fail with ErrCodeUnknownDiscriminator; objects
// without a discriminator fail with ErrCodeDecodeFailed.
func (r *Registry) Decode(raw json.RawMessage) (any, error) {
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "tagged object is not a JSON object")
	}
	tagRaw, ok := fields[ClassKey]
	if !ok {
		return nil, errors.New(errors.ErrCodeDecodeFailed, "object has no %q key", ClassKey)
	}
	var tag string
	if err := json.Unmarshal(tagRaw, &tag); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "%q must be a string", ClassKey)
	}
	fn, ok := r.decoders[tag]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownDiscriminator, "unknown discriminator %q", tag)
	}
	delete(fields, ClassKey)
	return fn(fields, r)
}

// Field decodes the named member of fields into v.
// A missing member fails with ErrCodeDecodeFailed.
func (f Fields) Field(name string, v any) error {
	raw, ok := f[name]
	if !ok {
		return errors.New(errors.ErrCodeDecodeFailed, "missing field %q", name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(errors.ErrCodeDecodeFailed, err, "field %q", name)
	}
	return nil
}
