package permission

import (
	"context"
	"fmt"
)

// RoleGraph answers reachability questions over the role-include DAG.
//
// Edges are read from the [IncludeSource] on every call; RoleGraph keeps no
// state of its own and is safe for concurrent use.
type RoleGraph struct {
	source IncludeSource
}

// NewRoleGraph creates a [RoleGraph] over source.
func NewRoleGraph(source IncludeSource) *RoleGraph {
	return &RoleGraph{source: source}
}

// ResolveEffectiveRoles returns seed plus every role reachable from it,
// breadth first, in first-visit order. Duplicates in seed are dropped.
func (g *RoleGraph) ResolveEffectiveRoles(ctx context.Context, seed []string) ([]string, error) {
	visited := make(map[string]struct{}, len(seed))
	order := make([]string, 0, len(seed))
	queue := make([]string, 0, len(seed))

	for _, role := range seed {
		if _, ok := visited[role]; ok {
			continue
		}
		visited[role] = struct{}{}
		order = append(order, role)
		queue = append(queue, role)
	}

	for len(queue) > 0 {
		role := queue[0]
		queue = queue[1:]

		includes, err := g.source.DirectIncludes(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("load includes of %q: %w", role, err)
		}
		for _, next := range includes {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			order = append(order, next)
			queue = append(queue, next)
		}
	}

	return order, nil
}

// WouldCreateCycle reports whether adding the edge role → candidate would
// close a cycle, i.e. whether role is reachable from candidate. A self edge
// is a cycle.
func (g *RoleGraph) WouldCreateCycle(ctx context.Context, role, candidate string) (bool, error) {
	if role == candidate {
		return true, nil
	}

	visited := map[string]struct{}{candidate: {}}
	queue := []string{candidate}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		includes, err := g.source.DirectIncludes(ctx, current)
		if err != nil {
			return false, fmt.Errorf("load includes of %q: %w", current, err)
		}
		for _, next := range includes {
			if next == role {
				return true, nil
			}
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return false, nil
}

// HierarchyGraph returns the full adjacency map, role → direct includes.
func (g *RoleGraph) HierarchyGraph(ctx context.Context) (map[string][]string, error) {
	graph, err := g.source.AllIncludes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load role hierarchy: %w", err)
	}
	if graph == nil {
		graph = map[string][]string{}
	}
	return graph, nil
}
