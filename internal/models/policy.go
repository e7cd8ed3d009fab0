package models

import (
	"fmt"
	"sort"
)

// DefaultContentType is the fallback policy key for content types without an
// explicit policy of their own.
const DefaultContentType = "default"

// TriagePolicy flags the dimensions whose borderline scores defer the decision
// to a human. Margin 0 triggers only on exact threshold equality.
type TriagePolicy struct {
	Dimensions []string `mapstructure:"dimensions" json:"dimensions"`
	Margin     float64  `mapstructure:"margin" json:"margin"`
}

// Policy is the per-content-type decision configuration. Loaded once,
// immutable during a run.
type Policy struct {
	ContentType string `mapstructure:"-" json:"content_type"`

	// MinLength is an absolute floor: shorter normalized text is deleted
	// regardless of scores.
	MinLength int `mapstructure:"min_length" json:"min_length"`

	// Weights per dimension. Non-negative; the aggregator normalizes, so they
	// need not sum to 1.
	Weights map[string]float64 `mapstructure:"weights" json:"weights"`

	// Outcomes maps outcome names (delete, keep, refine, archive) to weighted
	// score thresholds. delete is a floor; the rest are hit when the weighted
	// score reaches them.
	Outcomes map[string]float64 `mapstructure:"outcomes" json:"outcomes"`

	// Dimensions holds individual score floors. Missing a floor is a failing
	// condition checked before any outcome hit.
	Dimensions map[string]float64 `mapstructure:"dimensions" json:"dimensions"`

	// Gate lists the dimensions whose distance to their floor drives cascade
	// escalation. Each must have a floor in Dimensions.
	Gate []string `mapstructure:"gate" json:"gate"`

	Triage TriagePolicy `mapstructure:"triage" json:"triage"`
}

// Validate enforces the policy invariants. Violations are fatal at startup.
func (p Policy) Validate() error {
	if len(p.Weights) == 0 {
		return fmt.Errorf("%w: policy %q has no dimension weights", ErrPolicyMisconfigured, p.ContentType)
	}
	for dim, w := range p.Weights {
		if w < 0 {
			return fmt.Errorf("%w: policy %q weight for %q is negative (%f)", ErrPolicyMisconfigured, p.ContentType, dim, w)
		}
	}
	if p.MinLength < 0 {
		return fmt.Errorf("%w: policy %q min_length is negative", ErrPolicyMisconfigured, p.ContentType)
	}
	for name, th := range p.Outcomes {
		switch Outcome(name) {
		case OutcomeDelete, OutcomeKeep, OutcomeRefine, OutcomeArchive:
		default:
			return fmt.Errorf("%w: policy %q has threshold for unknown outcome %q", ErrPolicyMisconfigured, p.ContentType, name)
		}
		if th < 0 || th > 1 {
			return fmt.Errorf("%w: policy %q outcome %q threshold %f outside [0,1]", ErrPolicyMisconfigured, p.ContentType, name, th)
		}
	}
	for dim, th := range p.Dimensions {
		if th < 0 || th > 1 {
			return fmt.Errorf("%w: policy %q dimension %q floor %f outside [0,1]", ErrPolicyMisconfigured, p.ContentType, dim, th)
		}
	}
	for _, dim := range p.Gate {
		if _, ok := p.Dimensions[dim]; !ok {
			return fmt.Errorf("%w: policy %q gates dimension %q without a floor", ErrPolicyMisconfigured, p.ContentType, dim)
		}
	}
	if p.Triage.Margin < 0 {
		return fmt.Errorf("%w: policy %q triage margin is negative", ErrPolicyMisconfigured, p.ContentType)
	}
	for _, dim := range p.Triage.Dimensions {
		if _, ok := p.Dimensions[dim]; !ok {
			return fmt.Errorf("%w: policy %q triage-gates dimension %q without a floor", ErrPolicyMisconfigured, p.ContentType, dim)
		}
	}
	return nil
}

// PolicyTable resolves content types to policies, falling back to the default.
type PolicyTable struct {
	policies map[string]Policy
}

// NewPolicyTable validates every policy and requires a default entry so that
// unknown content types always resolve.
func NewPolicyTable(policies map[string]Policy) (*PolicyTable, error) {
	if _, ok := policies[DefaultContentType]; !ok {
		return nil, fmt.Errorf("%w: no %q policy defined", ErrPolicyMisconfigured, DefaultContentType)
	}
	table := make(map[string]Policy, len(policies))
	for ct, p := range policies {
		p.ContentType = ct
		if err := p.Validate(); err != nil {
			return nil, err
		}
		table[ct] = p
	}
	return &PolicyTable{policies: table}, nil
}

// For returns the policy for a content type, or the default policy.
func (t *PolicyTable) For(contentType string) Policy {
	if p, ok := t.policies[contentType]; ok {
		return p
	}
	return t.policies[DefaultContentType]
}

// ContentTypes lists the configured content types in stable order.
func (t *PolicyTable) ContentTypes() []string {
	types := make([]string, 0, len(t.policies))
	for ct := range t.policies {
		types = append(types, ct)
	}
	sort.Strings(types)
	return types
}
