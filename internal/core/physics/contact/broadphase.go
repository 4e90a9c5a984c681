// Package contact finds overlapping bodies and resolves them with positional
// correction, normal impulses and Coulomb friction.
package contact

import (
	"sort"

	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

// Pair is a candidate for narrow-phase testing. A always has the lower handle.
type Pair struct {
	A, B *body.Body
}

// Filter vetoes a candidate pair. Returning false skips it.
type Filter func(a, b *body.Body) bool

type proxy struct {
	b   *body.Body
	box geom.AABB
}

// BroadPhase runs sweep-and-prune along x and returns pairs whose boxes
// overlap, in a deterministic order.
func BroadPhase(bodies []*body.Body, filter Filter) []Pair {
	proxies := make([]proxy, 0, len(bodies))
	for _, b := range bodies {
		if b == nil || !b.Collides() {
			continue
		}
		proxies = append(proxies, proxy{b: b, box: b.Bounds()})
	}
	sort.Slice(proxies, func(i, j int) bool {
		if proxies[i].box.Min[0] != proxies[j].box.Min[0] {
			return proxies[i].box.Min[0] < proxies[j].box.Min[0]
		}
		return proxies[i].b.Handle() < proxies[j].b.Handle()
	})

	var pairs []Pair
	for i := range proxies {
		pi := proxies[i]
		for j := i + 1; j < len(proxies); j++ {
			pj := proxies[j]
			if pj.box.Min[0] > pi.box.Max[0] {
				break
			}
			if pi.b.Static() && pj.b.Static() {
				continue
			}
			if !pi.box.Overlaps(pj.box) {
				continue
			}
			a, b := pi.b, pj.b
			if b.Handle() < a.Handle() {
				a, b = b, a
			}
			if filter != nil && !filter(a, b) {
				continue
			}
			pairs = append(pairs, Pair{A: a, B: b})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A.Handle() != pairs[j].A.Handle() {
			return pairs[i].A.Handle() < pairs[j].A.Handle()
		}
		return pairs[i].B.Handle() < pairs[j].B.Handle()
	})
	return pairs
}
