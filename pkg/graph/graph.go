// Package graph computes a safe processing order for a set of named nodes
// with declared dependencies, using Kahn's algorithm with deterministic
// input-order tie-breaking.
package graph

import (
	"fmt"
	"strings"
)

// Node is one unit to be ordered. Deps names the nodes that must come first;
// names outside the input set are ignored.
type Node struct {
	Name string
	Deps []string
}

// CycleError is returned when no valid total order exists. Remaining holds
// every node still blocked when the queue drained, which is a superset of at
// least one cycle rather than a minimal cycle.
type CycleError struct {
	Remaining []string
}

// Error implements the error interface
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among: %s", strings.Join(e.Remaining, ", "))
}

// BuildOrder returns the node names in an order where every dependency
// precedes its dependents. Nodes with equal standing keep their input order.
func BuildOrder(nodes []Node) ([]string, error) {
	inSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inSet[n.Name] = true
	}

	// In-degree per node and reverse edges, with duplicate deps removed and
	// edges restricted to the input set.
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for _, n := range nodes {
		seen := make(map[string]bool)
		for _, dep := range n.Deps {
			if !inSet[dep] || dep == n.Name || seen[dep] {
				continue
			}
			seen[dep] = true
			inDegree[n.Name]++
			dependents[dep] = append(dependents[dep], n.Name)
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n.Name] == 0 {
			queue = append(queue, n.Name)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(nodes) {
		var remaining []string
		for _, n := range nodes {
			if inDegree[n.Name] > 0 {
				remaining = append(remaining, n.Name)
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}
	return order, nil
}
