package volume

import (
	"bytes"
	"encoding/binary"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

// binaryMagic starts every encoded volume.
var binaryMagic = [4]byte{'S', 'K', 'V', '1'}

// MarshalBinary encodes the volume as a little-endian header (magic and
// three int64 extents) followed by the voxel values as float64.
func (v *Volume) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(4 + 3*8 + 8*len(v.Data))
	buf.Write(binaryMagic[:])
	for _, n := range v.Shape {
		_ = binary.Write(&buf, binary.LittleEndian, int64(n))
	}
	if err := binary.Write(&buf, binary.LittleEndian, v.Data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data written by MarshalBinary.
func (v *Volume) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != binaryMagic {
		return errors.New(errors.ErrCodeDecodeFailed, "not an encoded volume")
	}
	var extents [3]int64
	if err := binary.Read(r, binary.LittleEndian, &extents); err != nil {
		return errors.Wrap(errors.ErrCodeDecodeFailed, err, "read volume shape")
	}
	shape := Shape{int(extents[0]), int(extents[1]), int(extents[2])}
	if err := errors.ValidateShape(shape[:]...); err != nil {
		return errors.Wrap(errors.ErrCodeDecodeFailed, err, "volume shape")
	}
	if r.Len() != 8*shape.Len() {
		return errors.New(errors.ErrCodeDecodeFailed, "volume of shape %s needs %d bytes, got %d", shape, 8*shape.Len(), r.Len())
	}
	out := make([]float64, shape.Len())
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return errors.Wrap(errors.ErrCodeDecodeFailed, err, "read voxels")
	}
	v.Shape, v.Data = shape, out
	return nil
}
