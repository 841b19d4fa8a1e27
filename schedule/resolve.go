package schedule

import (
	"container/heap"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// DefaultEvent is the event group of systems that do not name one.
const DefaultEvent = "default"

// Node is the scheduling view of one system.
type Node struct {
	Name     string
	Event    string
	Priority int

	// After lists the names of systems that must run before this one.
	After []string
}

func (n Node) event() string {
	if n.Event == "" {
		return DefaultEvent
	}
	return n.Event
}

// Plan is a resolved execution order per event group.
type Plan struct {
	groups map[string][]string
	events []string
}

// Events returns the event groups that have at least one system, sorted.
func (p *Plan) Events() []string {
	return slices.Clone(p.events)
}

// Order returns the execution order of an event group, or nil if the
// group has no systems.
func (p *Plan) Order(event string) []string {
	return slices.Clone(p.groups[event])
}

// Len returns the number of scheduled systems across all groups.
func (p *Plan) Len() int {
	n := 0
	for _, order := range p.groups {
		n += len(order)
	}
	return n
}

// String renders the plan as "event: a, b, c" lines.
func (p *Plan) String() string {
	var b strings.Builder
	for _, event := range p.events {
		fmt.Fprintf(&b, "%s: %s\n", event, strings.Join(p.groups[event], ", "))
	}
	return b.String()
}

// Resolve validates nodes and computes the execution order of every event
// group. The slice order of nodes is the registration order used to break
// ties.
func Resolve(nodes []Node) (*Plan, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.Name == "" {
			return nil, &Error{
				Code:    ErrCodeInvalidSystem,
				Message: fmt.Sprintf("system at position %d has no name", i),
			}
		}
		if _, dup := index[n.Name]; dup {
			return nil, &Error{
				Code:    ErrCodeDuplicateSystem,
				Message: fmt.Sprintf("system %q is registered twice", n.Name),
				Systems: []string{n.Name},
			}
		}
		index[n.Name] = i
	}

	for _, n := range nodes {
		for _, dep := range n.After {
			j, ok := index[dep]
			if !ok {
				return nil, &Error{
					Code:    ErrCodeUnknownDependency,
					Message: fmt.Sprintf("system %q runs after unknown system %q", n.Name, dep),
					Event:   n.event(),
					Systems: []string{n.Name, dep},
				}
			}
			if other := nodes[j].event(); other != n.event() {
				return nil, &Error{
					Code: ErrCodeCrossEvent,
					Message: fmt.Sprintf("system %q (event %q) runs after %q (event %q)",
						n.Name, n.event(), dep, other),
					Event:   n.event(),
					Systems: []string{n.Name, dep},
				}
			}
		}
	}

	// Partition by event, preserving registration order inside each group.
	members := make(map[string][]int)
	for i, n := range nodes {
		members[n.event()] = append(members[n.event()], i)
	}
	events := make([]string, 0, len(members))
	for event := range members {
		events = append(events, event)
	}
	sort.Strings(events)

	plan := &Plan{groups: make(map[string][]string, len(events)), events: events}
	for _, event := range events {
		order, err := resolveGroup(event, nodes, members[event])
		if err != nil {
			return nil, err
		}
		plan.groups[event] = order
	}
	return plan, nil
}

// resolveGroup orders the nodes of one event group. idx holds global node
// indices in registration order.
func resolveGroup(event string, nodes []Node, idx []int) ([]string, error) {
	local := make(map[string]int, len(idx))
	g := &graph{
		names: make([]string, len(idx)),
		succ:  make([][]int, len(idx)),
	}
	for li, gi := range idx {
		local[nodes[gi].Name] = li
		g.names[li] = nodes[gi].Name
	}

	indegree := make([]int, len(idx))
	seen := make(map[[2]int]bool)
	for li, gi := range idx {
		for _, dep := range nodes[gi].After {
			from := local[dep]
			edge := [2]int{from, li}
			if seen[edge] {
				continue
			}
			seen[edge] = true
			g.succ[from] = append(g.succ[from], li)
			indegree[li]++
		}
	}
	for v := range g.succ {
		sort.Ints(g.succ[v])
	}

	if path := findCycle(g); path != nil {
		return nil, newCycleError(event, path)
	}

	if err := checkPriorities(event, nodes, idx, g); err != nil {
		return nil, err
	}

	// Kahn's algorithm, ready set ordered by (priority, registration).
	ready := &readyQueue{nodes: nodes, idx: idx}
	for li := range idx {
		if indegree[li] == 0 {
			heap.Push(ready, li)
		}
	}

	order := make([]string, 0, len(idx))
	for ready.Len() > 0 {
		v := heap.Pop(ready).(int)
		order = append(order, g.names[v])
		for _, w := range g.succ[v] {
			indegree[w]--
			if indegree[w] == 0 {
				heap.Push(ready, w)
			}
		}
	}
	return order, nil
}

// checkPriorities rejects edges whose dependent has a strictly lower
// priority than its dependency. Every offending pair is listed in the
// message; Systems holds the first one as [dependent, dependency].
func checkPriorities(event string, nodes []Node, idx []int, g *graph) error {
	var conflicts []string
	var first []string

	for from, dependents := range g.succ {
		dep := nodes[idx[from]]
		for _, to := range dependents {
			n := nodes[idx[to]]
			if n.Priority >= dep.Priority {
				continue
			}
			conflicts = append(conflicts, fmt.Sprintf("%q (priority %d) runs after %q (priority %d)",
				n.Name, n.Priority, dep.Name, dep.Priority))
			if first == nil {
				first = []string{n.Name, dep.Name}
			}
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	return &Error{
		Code:    ErrCodeUnschedulable,
		Message: "priority contradicts dependency order: " + strings.Join(conflicts, "; "),
		Event:   event,
		Systems: first,
	}
}

// readyQueue is a min-heap of local node indices keyed on
// (priority, local index). Local index order is registration order.
type readyQueue struct {
	nodes []Node
	idx   []int
	items []int
}

func (q *readyQueue) Len() int { return len(q.items) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	pa, pb := q.nodes[q.idx[a]].Priority, q.nodes[q.idx[b]].Priority
	if pa != pb {
		return pa < pb
	}
	return a < b
}

func (q *readyQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *readyQueue) Push(x any) { q.items = append(q.items, x.(int)) }

func (q *readyQueue) Pop() any {
	n := len(q.items)
	x := q.items[n-1]
	q.items = q.items[:n-1]
	return x
}
