// Package graph infers the producer→consumer routing graph of a fleet from
// declarative bind and output metadata. No edge list is ever persisted: the
// graph is rebuilt from scratch on every request by testing each identity's
// input filters against every other identity's declared outputs.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/dyluth/warren/pkg/fleet"
)

// Sentinel shown when an identity has no bind half to take metadata from.
const metadataUnknown = "N/A"

// Node is one service identity in the routing graph: its consuming side
// (filters), its producing side (outputs) and display metadata.
type Node struct {
	Identity string
	Filters  []fleet.Filter
	Outputs  []fleet.Descriptor
	Version  string // Service version from the bind, or "N/A"
	Info     string // Bind description, or "N/A"
}

// ConsumesFrom reports whether producer can emit something this node is
// willing to consume: at least one of the node's filters is wholly
// contained in at least one of the producer's output descriptors.
//
// A node without filters consumes from nobody and a producer without
// outputs feeds nobody - absence is absence, not a wildcard.
func (n *Node) ConsumesFrom(producer *Node) bool {
	if len(n.Filters) == 0 || len(producer.Outputs) == 0 {
		return false
	}
	for _, filter := range n.Filters {
		for _, output := range producer.Outputs {
			if filter.Matches(output) {
				return true
			}
		}
	}
	return false
}

// Graph is the inferred routing graph. Nodes are sorted by identity and
// ReceivesFrom maps each consumer identity to the sorted identities that
// feed it, so the same bind/output universe always yields the same graph.
type Graph struct {
	Nodes        []*Node
	ReceivesFrom map[string][]string
}

// InDegree returns how many identities feed the given one.
func (g *Graph) InDegree(identity string) int {
	return len(g.ReceivesFrom[identity])
}

// Node returns the node with the given identity, or nil.
func (g *Graph) Node(identity string) *Node {
	for _, n := range g.Nodes {
		if n.Identity == identity {
			return n
		}
	}
	return nil
}

// Builder constructs routing graphs from the current bind and output
// registries. Stateless; every Build is a fresh read.
type Builder struct {
	client *fleet.Client
}

// NewBuilder creates a builder reading through the given client.
func NewBuilder(client *fleet.Client) *Builder {
	return &Builder{client: client}
}

// Build reads all binds and output declarations and infers the edges.
// Identities present in only one of the two registries still produce a
// node; the missing half is simply empty. An empty universe yields an
// empty graph, not an error.
//
// The edge test is O(nodes² × filters × outputs), which is fine: the node
// count is bounded by the number of registered services, not task volume.
func (b *Builder) Build(ctx context.Context) (*Graph, error) {
	binds, err := b.client.GetBinds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load binds: %w", err)
	}

	outputs, err := b.client.GetOutputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load outputs: %w", err)
	}

	nodes := make(map[string]*Node)
	for identity, bind := range binds {
		version := bind.ServiceVersion
		if version == "" {
			version = metadataUnknown
		}
		info := bind.Description
		if info == "" {
			info = metadataUnknown
		}
		nodes[identity] = &Node{
			Identity: identity,
			Filters:  bind.Filters,
			Version:  version,
			Info:     info,
		}
	}
	for identity, descriptors := range outputs {
		node, ok := nodes[identity]
		if !ok {
			node = &Node{
				Identity: identity,
				Version:  metadataUnknown,
				Info:     metadataUnknown,
			}
			nodes[identity] = node
		}
		node.Outputs = descriptors
	}

	graph := &Graph{
		Nodes:        make([]*Node, 0, len(nodes)),
		ReceivesFrom: make(map[string][]string, len(nodes)),
	}
	for _, node := range nodes {
		graph.Nodes = append(graph.Nodes, node)
		graph.ReceivesFrom[node.Identity] = []string{}
	}
	sort.Slice(graph.Nodes, func(i, j int) bool {
		return graph.Nodes[i].Identity < graph.Nodes[j].Identity
	})

	// Self-edges are intentional: a service may consume its own output.
	for _, consumer := range graph.Nodes {
		for _, producer := range graph.Nodes {
			if consumer.ConsumesFrom(producer) {
				graph.ReceivesFrom[consumer.Identity] = append(
					graph.ReceivesFrom[consumer.Identity], producer.Identity)
			}
		}
	}

	return graph, nil
}
