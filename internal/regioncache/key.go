// Package regioncache implements the abstract region cache: a capacity- and
// memory-pressure-bounded, single-flight cache of decoded spatial or
// attribute indices, keyed by the dataset (resource, column) pair a query
// was resolved against.
package regioncache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/geoindex/regioncache/internal/core/model"
)

// Key identifies one cached index: a dataset column, optionally narrowed to
// a bounding envelope. Envelope is held by value rather than by pointer so
// Key stays comparable and usable directly as an LRU/map key — two lookups
// for the same resource, column and box hash and compare equal regardless of
// which *Envelope the caller constructed.
type Key struct {
	Resource    string
	Column      string
	Envelope    model.Envelope
	HasEnvelope bool
}

// NewKey builds a Key, accepting a nil envelope for the whole-dataset case.
func NewKey(resource, column string, envelope *model.Envelope) Key {
	k := Key{Resource: resource, Column: column}
	if envelope != nil {
		k.Envelope = *envelope
		k.HasEnvelope = true
	}
	return k
}

// String renders a key for logging and as the label IndicesBySizeDesc
// reports for each entry. Deliberately lossy: it drops the envelope, so
// two keys differing only by bounding box collapse to one label. This
// mirrors a documented, intentionally-kept design choice — see DESIGN.md.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Resource, k.Column)
}

// Hash returns a fast, well-distributed hash of the key's full identity
// (including the envelope). The slot table does not use it: the table is
// keyed by k itself.
func (k Key) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(k.Resource)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(k.Column)
	_, _ = h.Write([]byte{0})
	if k.HasEnvelope {
		var buf [32]byte
		binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(k.Envelope.MinX))
		binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(k.Envelope.MinY))
		binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(k.Envelope.MaxX))
		binary.LittleEndian.PutUint64(buf[24:32], math.Float64bits(k.Envelope.MaxY))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
