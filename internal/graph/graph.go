// Package graph provides a small, generic directed-acyclic-graph on top of
// github.com/pyr-sh/dag: vertex/edge management, transitive closures, cycle
// detection with a readable description, and a deterministic worker-pool
// walk. Every vertex is identified by a stable string id.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyr-sh/dag"
)

// Graph is a thin, typed wrapper over dag.AcyclicGraph.
type Graph struct {
	underlying dag.AcyclicGraph
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// AddVertex registers id as a vertex if it is not already present.
func (g *Graph) AddVertex(id string) {
	g.underlying.Add(id)
}

// HasVertex reports whether id has been added.
func (g *Graph) HasVertex(id string) bool {
	return g.underlying.HasVertex(id)
}

// AddEdge connects from -> to, meaning "to depends on from": from must
// complete before to may start. Both vertices are added if missing.
func (g *Graph) AddEdge(from, to string) {
	g.underlying.Add(from)
	g.underlying.Add(to)
	g.underlying.Connect(dag.BasicEdge(to, from))
}

// Vertices returns every vertex id, sorted for determinism.
func (g *Graph) Vertices() []string {
	var out []string
	for v := range g.underlying.Vertices() {
		out = append(out, dag.VertexName(v))
	}
	sort.Strings(out)
	return out
}

// Ancestors returns every vertex that id transitively depends on.
func (g *Graph) Ancestors(id string) ([]string, error) {
	set, err := g.underlying.Ancestors(id)
	if err != nil {
		return nil, err
	}
	return vertexNames(set), nil
}

// Descendants returns every vertex that transitively depends on id.
func (g *Graph) Descendants(id string) ([]string, error) {
	set, err := g.underlying.Descendents(id)
	if err != nil {
		return nil, err
	}
	return vertexNames(set), nil
}

// DownEdges returns the direct dependencies of id (vertices id points to).
func (g *Graph) DownEdges(id string) []string {
	return vertexNames(g.underlying.DownEdges(id))
}

func vertexNames(set dag.Set) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, dag.VertexName(v))
	}
	sort.Strings(out)
	return out
}

// CycleError describes one or more cycles found during validation, with a
// human-readable rendering of each cycle's member vertices, sorted by name.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	lines := make([]string, len(e.Cycles))
	for i, cycle := range e.Cycles {
		lines[i] = strings.Join(cycle, " -> ")
	}
	return fmt.Sprintf("cyclic dependency detected:\n  %s", strings.Join(lines, "\n  "))
}

// Validate reports every cycle present in the graph as a single CycleError,
// rather than failing on the first one found. It checks cycles only: it
// does not look for missing vertices and never returns a
// MissingVerticesError (AddEdge adds both ends of every edge).
func (g *Graph) Validate() error {
	if cycles := g.underlying.Cycles(); len(cycles) > 0 {
		out := make([][]string, len(cycles))
		for i, cycle := range cycles {
			names := make([]string, len(cycle))
			for j, v := range cycle {
				names[j] = dag.VertexName(v)
			}
			sort.Strings(names)
			out[i] = names
		}
		return &CycleError{Cycles: out}
	}
	return nil
}

// MissingVerticesError reports every edge that referenced an undeclared
// vertex, collected in one pass.
type MissingVerticesError struct {
	Missing []string
}

func (e *MissingVerticesError) Error() string {
	sort.Strings(e.Missing)
	return fmt.Sprintf("missing vertices: %s", strings.Join(e.Missing, ", "))
}

// Visitor is invoked once per non-root vertex during Walk.
type Visitor func(id string) error

// Walk traverses the graph in dependency order (a vertex's dependencies
// always run before it) using up to concurrency workers. rootID, if
// non-empty, is a synthetic sink vertex that is skipped rather than visited.
// The first visitor error halts admission of new work but lets in-flight
// visits finish; all errors encountered are returned together.
func (g *Graph) Walk(rootID string, concurrency int, visit Visitor) []error {
	sema := make(chan struct{}, maxInt(concurrency, 1))
	var errored int32
	errs := g.underlying.Walk(func(v dag.Vertex) error {
		id := dag.VertexName(v)
		if rootID != "" && id == rootID {
			return nil
		}
		if loadErrored(&errored) {
			return nil
		}
		sema <- struct{}{}
		defer func() { <-sema }()
		if err := visit(id); err != nil {
			storeErrored(&errored)
			return err
		}
		return nil
	})
	return errs
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DOT renders the graph in Graphviz dot format, for `turbine run --graph`
// to write out or pipe to `dot`.
func (g *Graph) DOT() string {
	return string(g.underlying.Dot(&dag.DotOpts{
		Verbose:    true,
		DrawCycles: true,
	}))
}
