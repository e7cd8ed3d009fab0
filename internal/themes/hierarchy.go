// Package themes maps free-form oracle theme hints onto a fixed thematic
// hierarchy via exact, keyword, and fuzzy matching.
package themes

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMiscPath is the fallback leaf for hints that match nothing.
const DefaultMiscPath = "miscellaneous"

// NodeSpec is one hierarchy entry as declared in the YAML definition file.
type NodeSpec struct {
	Name     string     `yaml:"name"`
	Aliases  []string   `yaml:"aliases,omitempty"`
	Keywords []string   `yaml:"keywords,omitempty"`
	Children []NodeSpec `yaml:"children,omitempty"`
}

// HierarchySpec is the on-disk shape of a hierarchy definition.
type HierarchySpec struct {
	Nodes    []NodeSpec `yaml:"nodes"`
	MiscPath string     `yaml:"misc_path,omitempty"`
}

// Node is a flattened hierarchy node with its full path.
type Node struct {
	Path     string // slash-joined, e.g. "infrastructure/financing"
	Name     string
	Depth    int
	Aliases  []string
	Keywords []string
}

// Hierarchy is the static tree of named nodes, loaded once per run.
type Hierarchy struct {
	nodes    []Node
	MiscPath string
}

// LoadHierarchy reads a YAML hierarchy definition from disk.
func LoadHierarchy(path string) (*Hierarchy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hierarchy file %q: %w", path, err)
	}
	var spec HierarchySpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse hierarchy file %q: %w", path, err)
	}
	return NewHierarchy(spec)
}

// NewHierarchy flattens a spec into a traversable hierarchy. The designated
// miscellaneous leaf is added if the tree does not declare it.
func NewHierarchy(spec HierarchySpec) (*Hierarchy, error) {
	h := &Hierarchy{MiscPath: spec.MiscPath}
	if h.MiscPath == "" {
		h.MiscPath = DefaultMiscPath
	}

	var walk func(prefix string, depth int, specs []NodeSpec) error
	walk = func(prefix string, depth int, specs []NodeSpec) error {
		for _, ns := range specs {
			if strings.TrimSpace(ns.Name) == "" {
				return fmt.Errorf("hierarchy node with empty name under %q", prefix)
			}
			path := ns.Name
			if prefix != "" {
				path = prefix + "/" + ns.Name
			}
			h.nodes = append(h.nodes, Node{
				Path:     path,
				Name:     ns.Name,
				Depth:    depth,
				Aliases:  ns.Aliases,
				Keywords: ns.Keywords,
			})
			if err := walk(path, depth+1, ns.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk("", 1, spec.Nodes); err != nil {
		return nil, err
	}

	if h.Lookup(h.MiscPath) == nil {
		h.nodes = append(h.nodes, Node{Path: h.MiscPath, Name: h.MiscPath, Depth: 1})
	}
	return h, nil
}

// Nodes returns the flattened node list in declaration order.
func (h *Hierarchy) Nodes() []Node { return h.nodes }

// Lookup finds a node by its full path, or nil.
func (h *Hierarchy) Lookup(path string) *Node {
	for i := range h.nodes {
		if h.nodes[i].Path == path {
			return &h.nodes[i]
		}
	}
	return nil
}
