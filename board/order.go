package board

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/ardnew/mcuhal/pkg"
)

// ErrCycle is returned when peripheral dependencies form a cycle.
var ErrCycle = errors.New("dependency cycle")

// BringUpOrder returns the named peripherals, together with everything they
// depend on, ordered so each peripheral follows its dependencies. The order
// is deterministic. With no names, every peripheral of the board is ordered.
func (b *Board) BringUpOrder(names ...string) ([]string, error) {
	if len(names) == 0 {
		names = b.Names()
	}

	g := simple.NewDirectedGraph()
	ids := make(map[string]int64)
	byID := make(map[int64]string)
	var visit func(name string) (graph.Node, error)
	visit = func(name string) (graph.Node, error) {
		p, ok := b.Peripheral(name)
		if !ok {
			return nil, fmt.Errorf("board %s: peripheral %q: %w", b.Name, name, pkg.ErrNotFound)
		}
		if id, ok := ids[p.Name]; ok {
			return g.Node(id), nil
		}
		n := g.NewNode()
		g.AddNode(n)
		ids[p.Name] = n.ID()
		byID[n.ID()] = p.Name
		for _, dep := range p.Depends {
			d, err := visit(dep)
			if err != nil {
				return nil, err
			}
			if d.ID() == n.ID() {
				return nil, fmt.Errorf("board %s: %s depends on itself: %w", b.Name, p.Name, ErrCycle)
			}
			g.SetEdge(g.NewEdge(d, n))
		}
		return n, nil
	}
	for _, name := range names {
		if _, err := visit(name); err != nil {
			return nil, err
		}
	}

	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return byID[nodes[i].ID()] < byID[nodes[j].ID()]
		})
	})
	if err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) && len(cycles) > 0 {
			var members []string
			for _, n := range cycles[0] {
				members = append(members, byID[n.ID()])
			}
			slices.Sort(members)
			return nil, fmt.Errorf("board %s: %w among %v", b.Name, ErrCycle, members)
		}
		return nil, fmt.Errorf("board %s: %w: %v", b.Name, ErrCycle, err)
	}

	order := make([]string, len(sorted))
	for i, n := range sorted {
		order[i] = byID[n.ID()]
	}
	pkg.LogDebug(pkg.ComponentBoard, "bring-up order", "board", b.Name, "order", order)
	return order, nil
}
