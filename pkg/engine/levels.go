package engine

import (
	"fmt"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// levelBuilder orders a batch of formula cells into dependency levels
// using Kahn's algorithm. A cell in level n depends only on cells of
// earlier levels or on cells outside the batch.
type levelBuilder struct {
	nodes     map[value.CellRef]*formulaCell
	order     []value.CellRef
	adjacency map[value.CellRef][]value.CellRef
	inDegree  map[value.CellRef]int
	excluded  map[value.CellRef]bool
	levels    [][]*formulaCell
}

// buildLevels computes the levels of cells. dependents lists the cells
// reading a cell's output; edges leaving the batch are ignored. Excluded
// cells are never placed, and neither is anything downstream of them or
// on a cycle: Leftover returns those.
func buildLevels(
	cells []*formulaCell,
	dependents func(*formulaCell) []value.CellRef,
	exclude func(*formulaCell) bool,
) *levelBuilder {
	b := &levelBuilder{
		nodes:     make(map[value.CellRef]*formulaCell, len(cells)),
		adjacency: make(map[value.CellRef][]value.CellRef),
		inDegree:  make(map[value.CellRef]int, len(cells)),
		excluded:  make(map[value.CellRef]bool),
	}
	b.initialize(cells, dependents, exclude)
	b.computeLevels()
	return b
}

func (b *levelBuilder) initialize(
	cells []*formulaCell,
	dependents func(*formulaCell) []value.CellRef,
	exclude func(*formulaCell) bool,
) {
	for _, fc := range cells {
		b.nodes[fc.ref] = fc
		b.inDegree[fc.ref] = 0
		b.order = append(b.order, fc.ref)
		if exclude != nil && exclude(fc) {
			b.excluded[fc.ref] = true
		}
	}
	sortCells(b.order)

	for _, ref := range b.order {
		for _, dep := range dependents(b.nodes[ref]) {
			if _, ok := b.nodes[dep]; !ok {
				continue
			}
			b.adjacency[ref] = append(b.adjacency[ref], dep)
			b.inDegree[dep]++
		}
	}
}

func (b *levelBuilder) computeLevels() {
	inDegreeCopy := make(map[value.CellRef]int, len(b.inDegree))
	for ref, degree := range b.inDegree {
		inDegreeCopy[ref] = degree
	}

	// Root nodes, in cell order
	currentLevel := make([]value.CellRef, 0)
	for _, ref := range b.order {
		if inDegreeCopy[ref] == 0 && !b.excluded[ref] {
			currentLevel = append(currentLevel, ref)
		}
	}

	for len(currentLevel) > 0 {
		level := make([]*formulaCell, len(currentLevel))
		for i, ref := range currentLevel {
			level[i] = b.nodes[ref]
		}
		b.levels = append(b.levels, level)

		nextLevel := make([]value.CellRef, 0)
		for _, ref := range currentLevel {
			for _, dep := range b.adjacency[ref] {
				inDegreeCopy[dep]--
				if inDegreeCopy[dep] == 0 && !b.excluded[dep] {
					nextLevel = append(nextLevel, dep)
				}
			}
		}
		sortCells(nextLevel)
		currentLevel = nextLevel
	}
}

// Levels returns the computed levels.
func (b *levelBuilder) Levels() [][]*formulaCell {
	return b.levels
}

// Leftover returns the cells not placed in any level, in cell order.
func (b *levelBuilder) Leftover() []value.CellRef {
	placed := make(map[value.CellRef]bool, len(b.nodes))
	for _, level := range b.levels {
		for _, fc := range level {
			placed[fc.ref] = true
		}
	}
	var out []value.CellRef
	for _, ref := range b.order {
		if !placed[ref] {
			out = append(out, ref)
		}
	}
	return out
}

// ToDOT renders the batch in Graphviz DOT format, one cluster per level.
// Cells that could not be placed are grouped last.
func (b *levelBuilder) ToDOT(name func(value.CellRef) string) string {
	var sb strings.Builder

	sb.WriteString("digraph Dependencies {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	writeNode := func(ref value.CellRef) {
		fc := b.nodes[ref]
		label := fmt.Sprintf("%s\\n=%s", name(ref), escapeDOT(fc.text))
		sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
			name(ref), label, stateColor(fc.state)))
	}

	for level, cells := range b.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")
		for _, fc := range cells {
			writeNode(fc.ref)
		}
		sb.WriteString("  }\n\n")
	}

	if leftover := b.Leftover(); len(leftover) > 0 {
		sb.WriteString("  subgraph cluster_unresolved {\n")
		sb.WriteString("    label=\"Unresolved\";\n")
		sb.WriteString("    style=dashed;\n")
		for _, ref := range leftover {
			writeNode(ref)
		}
		sb.WriteString("  }\n\n")
	}

	for _, ref := range b.order {
		for _, dep := range b.adjacency[ref] {
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", name(ref), name(dep)))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func stateColor(s State) string {
	switch s {
	case StateDirty:
		return "lightyellow"
	case StateError:
		return "lightcoral"
	default:
		return "lightgreen"
	}
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}

// formatCycle formats a cycle path for display.
func formatCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " -> ")
}
