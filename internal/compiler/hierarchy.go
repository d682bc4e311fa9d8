package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/covenant/internal/ir"
)

// CycleError reports a cycle in the declared type hierarchy.
//
// Unlike ordinary reference cycles, an inheritance cycle makes contract
// composition undefined, so every cycle is an error.
type CycleError struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
}

func (e *CycleError) Error() string {
	return e.Message
}

// AnalyzeHierarchy detects cycles in the parent relation of decls.
//
// The algorithm:
//  1. Build type → parents graph, keeping only declared types as nodes
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// Types are visited in declaration order so results are deterministic.
// An acyclic hierarchy returns an empty list.
func AnalyzeHierarchy(decls []ir.TypeDecl) []CycleError {
	if len(decls) == 0 {
		return []CycleError{}
	}

	graph, order := buildHierarchyGraph(decls)
	sccs := tarjanSCC(graph, order)

	cycles := []CycleError{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// hierarchyGraph maps type name → direct parent names.
type hierarchyGraph map[string][]string

// buildHierarchyGraph constructs the parent graph. Parents that are not
// declared are dropped: they cannot take part in a cycle.
func buildHierarchyGraph(decls []ir.TypeDecl) (hierarchyGraph, []string) {
	graph := make(hierarchyGraph)
	var order []string
	for _, d := range decls {
		if _, seen := graph[d.Name]; !seen {
			order = append(order, d.Name)
			graph[d.Name] = []string{}
		}
	}
	for _, d := range decls {
		for _, p := range d.Parents {
			if _, declared := graph[p]; declared {
				graph[d.Name] = append(graph[d.Name], p)
			}
		}
	}
	return graph, order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph hierarchyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of type names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph hierarchyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// sccToCycle converts an SCC to a CycleError with a readable path.
func sccToCycle(scc []string, graph hierarchyGraph) CycleError {
	if len(scc) == 1 {
		name := scc[0]
		return CycleError{
			Path:    []string{name, name},
			Message: fmt.Sprintf("type %s lists itself as a parent", name),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleError{
		Path:    path,
		Message: fmt.Sprintf("inheritance cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the last node Tarjan popped (the first one visited),
// follow parent edges to other SCC members until we return to it.
func reconstructCyclePath(scc []string, graph hierarchyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
