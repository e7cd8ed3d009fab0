package themes

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"curator/internal/models"
)

// DefaultFuzzyFloor is the minimum token-set similarity for a fuzzy match.
const DefaultFuzzyFloor = 0.5

// DefaultFallbackConfidence is assigned to miscellaneous fallback matches.
const DefaultFallbackConfidence = 0.15

// Classifier resolves oracle theme hints against a hierarchy. It runs only
// on items the aggregator kept or marked for refinement.
type Classifier struct {
	hierarchy          *Hierarchy
	FuzzyFloor         float64
	FallbackConfidence float64
}

// NewClassifier builds a classifier over a loaded hierarchy.
func NewClassifier(h *Hierarchy) *Classifier {
	return &Classifier{
		hierarchy:          h,
		FuzzyFloor:         DefaultFuzzyFloor,
		FallbackConfidence: DefaultFallbackConfidence,
	}
}

// Classify matches each hint independently (first matching method wins per
// hint), merges per-node results on the highest confidence, and ranks the
// assignments. The top assignment is primary; confidence ties prefer the
// deeper, more specific node.
func (c *Classifier) Classify(itemID string, hints []models.ThemeHint) []models.ThemeAssignment {
	best := make(map[string]models.ThemeAssignment)

	for _, hint := range hints {
		if strings.TrimSpace(hint.Label) == "" {
			continue
		}
		a, ok := c.matchHint(itemID, hint)
		if !ok {
			continue
		}
		if prev, seen := best[a.NodePath]; !seen || a.Confidence > prev.Confidence {
			best[a.NodePath] = a
		}
	}

	if len(best) == 0 {
		log.Debugf("themes: no hints matched for item %s, assigning %q", itemID, c.hierarchy.MiscPath)
		best[c.hierarchy.MiscPath] = models.ThemeAssignment{
			ItemID:     itemID,
			NodePath:   c.hierarchy.MiscPath,
			Confidence: c.FallbackConfidence,
			Method:     models.MatchFallback,
		}
	}

	assignments := make([]models.ThemeAssignment, 0, len(best))
	for _, a := range best {
		assignments = append(assignments, a)
	}
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].Confidence != assignments[j].Confidence {
			return assignments[i].Confidence > assignments[j].Confidence
		}
		di := c.depthOf(assignments[i].NodePath)
		dj := c.depthOf(assignments[j].NodePath)
		if di != dj {
			return di > dj
		}
		return assignments[i].NodePath < assignments[j].NodePath
	})
	assignments[0].Primary = true
	return assignments
}

// matchHint applies the matching precedence for one hint: exact, keyword,
// fuzzy, then no match.
func (c *Classifier) matchHint(itemID string, hint models.ThemeHint) (models.ThemeAssignment, bool) {
	label := strings.TrimSpace(hint.Label)

	if node := c.exactMatch(label); node != nil {
		return models.ThemeAssignment{
			ItemID:     itemID,
			NodePath:   node.Path,
			Confidence: hint.Confidence,
			Method:     models.MatchExact,
		}, true
	}

	if node, coverage := c.keywordMatch(label); node != nil {
		return models.ThemeAssignment{
			ItemID:     itemID,
			NodePath:   node.Path,
			Confidence: hint.Confidence * coverage,
			Method:     models.MatchKeyword,
		}, true
	}

	if node, sim := c.fuzzyMatch(label); node != nil {
		return models.ThemeAssignment{
			ItemID:     itemID,
			NodePath:   node.Path,
			Confidence: hint.Confidence * sim,
			Method:     models.MatchFuzzy,
		}, true
	}

	return models.ThemeAssignment{}, false
}

func (c *Classifier) exactMatch(label string) *Node {
	lower := strings.ToLower(label)
	nodes := c.hierarchy.Nodes()
	for i := range nodes {
		if strings.ToLower(nodes[i].Name) == lower {
			return &nodes[i]
		}
		for _, alias := range nodes[i].Aliases {
			if strings.ToLower(alias) == lower {
				return &nodes[i]
			}
		}
	}
	return nil
}

// keywordMatch picks the node with the highest keyword coverage ratio over
// the hint text; deeper nodes win coverage ties.
func (c *Classifier) keywordMatch(label string) (*Node, float64) {
	lower := strings.ToLower(label)
	var bestNode *Node
	bestCoverage := 0.0
	nodes := c.hierarchy.Nodes()
	for i := range nodes {
		if len(nodes[i].Keywords) == 0 {
			continue
		}
		matched := 0
		for _, kw := range nodes[i].Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		coverage := float64(matched) / float64(len(nodes[i].Keywords))
		if coverage > bestCoverage || (coverage == bestCoverage && bestNode != nil && nodes[i].Depth > bestNode.Depth) {
			bestNode = &nodes[i]
			bestCoverage = coverage
		}
	}
	return bestNode, bestCoverage
}

// fuzzyMatch picks the node whose name or alias has the highest token-set
// similarity to the hint, subject to the fuzzy floor.
func (c *Classifier) fuzzyMatch(label string) (*Node, float64) {
	var bestNode *Node
	bestSim := 0.0
	nodes := c.hierarchy.Nodes()
	for i := range nodes {
		candidates := append([]string{nodes[i].Name}, nodes[i].Aliases...)
		for _, cand := range candidates {
			sim := TokenSetJaccard(label, cand)
			if sim < c.FuzzyFloor {
				continue
			}
			if sim > bestSim || (sim == bestSim && bestNode != nil && nodes[i].Depth > bestNode.Depth) {
				bestNode = &nodes[i]
				bestSim = sim
			}
		}
	}
	return bestNode, bestSim
}

func (c *Classifier) depthOf(path string) int {
	if node := c.hierarchy.Lookup(path); node != nil {
		return node.Depth
	}
	return 0
}
