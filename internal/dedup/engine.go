// Package dedup clusters content items by fingerprint similarity and selects
// a canonical representative per cluster.
package dedup

import (
	"sort"
	"time"

	"curator/internal/fingerprint"
	"curator/internal/models"
)

// DefaultThreshold is the shingle Jaccard similarity at which two items are
// considered near duplicates.
const DefaultThreshold = 0.90

// DefaultSketchSize is how many of an item's smallest shingle hashes seed the
// candidate index. Items sharing none of them are never compared pairwise.
const DefaultSketchSize = 8

// Item is the dedup engine's view of a content item. WeightedScore may be
// zero for items not yet scored; the tie-break then falls through to the
// timestamp and id.
type Item struct {
	ID            string
	Fingerprint   fingerprint.Fingerprint
	WeightedScore float64
	Timestamp     time.Time
}

// Engine clusters a fixed batch of items. Clustering must complete before any
// canonical status is considered final, so Cluster operates on the whole
// batch at once.
type Engine struct {
	Threshold  float64
	SketchSize int
}

// NewEngine returns an engine with the given similarity threshold; values
// outside (0,1] fall back to DefaultThreshold.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Engine{Threshold: threshold, SketchSize: DefaultSketchSize}
}

// Cluster groups exact and near duplicates, merges transitively, and picks a
// canonical per cluster. Same input set in any order yields the same clusters
// and canonicals. Singleton items are not reported.
func (e *Engine) Cluster(items []Item) []models.DuplicateCluster {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	uf := newUnionFind(len(sorted))

	// Exact duplicates: trivial grouping by hash.
	byHash := make(map[string]int, len(sorted))
	for i, it := range sorted {
		if first, ok := byHash[it.Fingerprint.ExactHash]; ok {
			uf.union(first, i)
			continue
		}
		byHash[it.Fingerprint.ExactHash] = i
	}

	// Near duplicates: candidates must share a sketch hash, keeping the
	// comparison count far below n^2. Degenerate items (no shingles) are
	// excluded here but were still checked for exact duplication above.
	sketchSize := e.SketchSize
	if sketchSize <= 0 {
		sketchSize = DefaultSketchSize
	}
	buckets := make(map[uint64][]int)
	for i, it := range sorted {
		if it.Fingerprint.Empty() {
			continue
		}
		for _, h := range it.Fingerprint.Sketch(sketchSize) {
			buckets[h] = append(buckets[h], i)
		}
	}
	compared := make(map[[2]int]struct{})
	for _, bucket := range buckets {
		for x := 0; x < len(bucket); x++ {
			for y := x + 1; y < len(bucket); y++ {
				pair := [2]int{bucket[x], bucket[y]}
				if _, done := compared[pair]; done {
					continue
				}
				compared[pair] = struct{}{}
				sim := fingerprint.Jaccard(sorted[pair[0]].Fingerprint.Shingles, sorted[pair[1]].Fingerprint.Shingles)
				if sim >= e.Threshold {
					uf.union(pair[0], pair[1])
				}
			}
		}
	}

	// Materialize transitively closed clusters.
	groups := make(map[int][]int)
	for i := range sorted {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	clusters := make([]models.DuplicateCluster, 0)
	for _, member := range groups {
		if len(member) < 2 {
			continue
		}
		canonical := member[0]
		for _, idx := range member[1:] {
			if moreCanonical(sorted[idx], sorted[canonical]) {
				canonical = idx
			}
		}
		cluster := models.DuplicateCluster{CanonicalID: sorted[canonical].ID}
		for _, idx := range member {
			if idx == canonical {
				continue
			}
			cluster.Members = append(cluster.Members, models.ClusterMember{
				ItemID:     sorted[idx].ID,
				Similarity: e.similarity(sorted[idx], sorted[canonical]),
			})
		}
		sort.Slice(cluster.Members, func(i, j int) bool {
			return cluster.Members[i].ItemID < cluster.Members[j].ItemID
		})
		clusters = append(clusters, cluster)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].CanonicalID < clusters[j].CanonicalID })
	return clusters
}

// moreCanonical reports whether a should be canonical over b: highest
// weighted score, then most recent timestamp, then smallest id.
func moreCanonical(a, b Item) bool {
	if a.WeightedScore != b.WeightedScore {
		return a.WeightedScore > b.WeightedScore
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID < b.ID
}

func (e *Engine) similarity(member, canonical Item) float64 {
	if member.Fingerprint.ExactHash == canonical.Fingerprint.ExactHash {
		return 1.0
	}
	return fingerprint.Jaccard(member.Fingerprint.Shingles, canonical.Fingerprint.Shingles)
}

// unionFind is a plain disjoint-set over item indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Smaller root index wins so that merges stay order independent.
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
