package regioncache

import "github.com/geoindex/regioncache/internal/memgovernor"

// governorPacer adapts a memgovernor.Governor into the featuredecoder.Pacer
// interface, binding it to the specific cache a build is populating: every
// PaceEvery features, the decoder yields to the governor, which depressurizes
// that same cache if free heap has dropped below target while the build ran.
type governorPacer struct {
	governor  *memgovernor.Governor
	target    memgovernor.Evictable
	targetPct int
}

func (p *governorPacer) Yield() {
	if p.governor == nil || p.target == nil {
		return
	}
	if p.governor.AtLeastFree(p.targetPct) {
		return
	}
	p.governor.Depressurize(p.target, p.targetPct)
}
