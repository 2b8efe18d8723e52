package pixbuf

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a stable 64-bit content hash over the buffer's geometry and
// pixels. Two buffers with identical dimensions, channel count and pixel
// data hash equal regardless of stride padding.
func (b *Buffer) Hash() uint64 {
	d := xxhash.New()
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(b.Width))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(b.Height))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(b.Channels))
	_, _ = d.Write(hdr[:])
	row := b.Width * b.Channels
	for y := 0; y < b.Height; y++ {
		_, _ = d.Write(b.Pix[y*b.Stride : y*b.Stride+row])
	}
	return d.Sum64()
}
