package spreadsheet

import "slices"

// DependencyNode represents a cell in the dependency graph
type DependencyNode struct {
	// address of *THIS* node
	Address CellAddress

	// cell-to-cell dependencies
	CellPrecedents map[CellAddress]*DependencyNode // cells this cell depends on
	CellDependents map[CellAddress]*DependencyNode // cells that depend on this cell

	// range dependencies (only for formula cells that depend on ranges)
	RangePrecedents map[RangeAddress]struct{} // ranges this cell depends on (lazy)

	// formula text, set only for formula cells. other nodes exist because
	// a formula refers to them.
	Formula string
}

// DependencyGraph manages cell dependencies and calculation order. edges
// come from the references found in formula text, so a formula mentioning
// A10 never depends on A1.
type DependencyGraph struct {
	nodes          map[CellAddress]*DependencyNode           // all nodes in the graph
	rangeObservers map[RangeAddress]map[CellAddress]struct{} // range -> cells that depend on it
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[CellAddress]*DependencyNode),
		rangeObservers: make(map[RangeAddress]map[CellAddress]struct{}),
	}
}

// GetOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) GetOrCreateNode(addr CellAddress) *DependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}

	node := &DependencyNode{
		Address:         addr,
		CellPrecedents:  make(map[CellAddress]*DependencyNode),
		CellDependents:  make(map[CellAddress]*DependencyNode),
		RangePrecedents: make(map[RangeAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

// GetNode retrieves a node if it exists
func (dg *DependencyGraph) GetNode(addr CellAddress) (*DependencyNode, bool) {
	node, exists := dg.nodes[addr]
	return node, exists
}

// RemoveNode drops a cell's formula and outgoing edges. cells that still
// depend on it keep their edges, so the node survives as a plain target.
func (dg *DependencyGraph) RemoveNode(addr CellAddress) bool {
	node, exists := dg.nodes[addr]
	if !exists {
		return false
	}
	dg.ClearDependencies(addr)
	node.Formula = ""
	dg.cleanupNodeIfEmpty(addr)
	return true
}

// cleanupNodeIfEmpty removes a node if it has no dependencies or formula
func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}

	// keep node if it has a formula or any dependencies
	if node.Formula != "" ||
		len(node.CellPrecedents) > 0 ||
		len(node.CellDependents) > 0 ||
		len(node.RangePrecedents) > 0 {
		return
	}

	delete(dg.nodes, addr)
}

// AddCellDependency adds a cell-to-cell dependency (from depends on to)
func (dg *DependencyGraph) AddCellDependency(from, to CellAddress) {
	fromNode := dg.GetOrCreateNode(from)
	toNode := dg.GetOrCreateNode(to)

	fromNode.CellPrecedents[to] = toNode
	toNode.CellDependents[from] = fromNode
}

// RemoveCellDependency removes a cell-to-cell dependency
func (dg *DependencyGraph) RemoveCellDependency(from, to CellAddress) bool {
	fromNode, fromExists := dg.nodes[from]
	toNode, toExists := dg.nodes[to]

	if !fromExists || !toExists {
		return false
	}

	delete(fromNode.CellPrecedents, to)
	delete(toNode.CellDependents, from)

	// clean up empty nodes
	dg.cleanupNodeIfEmpty(from)
	dg.cleanupNodeIfEmpty(to)

	return true
}

// AddRangeDependency adds a cell-to-range dependency (from depends on range)
func (dg *DependencyGraph) AddRangeDependency(from CellAddress, rangeAddr RangeAddress) {
	node := dg.GetOrCreateNode(from)

	node.RangePrecedents[rangeAddr] = struct{}{}

	if dg.rangeObservers[rangeAddr] == nil {
		dg.rangeObservers[rangeAddr] = make(map[CellAddress]struct{})
	}
	dg.rangeObservers[rangeAddr][from] = struct{}{}
}

// RemoveRangeDependency removes a cell-to-range dependency
func (dg *DependencyGraph) RemoveRangeDependency(from CellAddress, rangeAddr RangeAddress) bool {
	node, exists := dg.nodes[from]
	if !exists {
		return false
	}

	delete(node.RangePrecedents, rangeAddr)

	if observers, exists := dg.rangeObservers[rangeAddr]; exists {
		delete(observers, from)
		if len(observers) == 0 {
			delete(dg.rangeObservers, rangeAddr)
		}
	}

	dg.cleanupNodeIfEmpty(from)

	return true
}

// ClearDependencies clears all outgoing dependencies of a cell
func (dg *DependencyGraph) ClearDependencies(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}

	for precedentAddr := range node.CellPrecedents {
		dg.RemoveCellDependency(addr, precedentAddr)
	}

	for rangeAddr := range node.RangePrecedents {
		dg.RemoveRangeDependency(addr, rangeAddr)
	}
}

// SetFormula replaces a cell's formula and its outgoing edges
func (dg *DependencyGraph) SetFormula(addr CellAddress, formula string, references []CellAddress, ranges []RangeAddress) {
	dg.ClearDependencies(addr)
	node := dg.GetOrCreateNode(addr)
	node.Formula = formula
	for _, ref := range references {
		dg.AddCellDependency(addr, ref)
	}
	for _, r := range ranges {
		dg.AddRangeDependency(addr, r)
	}
}

// GetFormula retrieves the formula for a cell
func (dg *DependencyGraph) GetFormula(addr CellAddress) (string, bool) {
	if node, exists := dg.nodes[addr]; exists && node.Formula != "" {
		return node.Formula, true
	}
	return "", false
}

// IsInRange checks if a cell is within a range
func (dg *DependencyGraph) IsInRange(cell CellAddress, r RangeAddress) bool {
	return r.Contains(cell)
}

// GetDirectDependents returns cells directly depending on this cell,
// including formulas observing a range that covers it
func (dg *DependencyGraph) GetDirectDependents(addr CellAddress) []CellAddress {
	var result []CellAddress
	dg.forEachDependent(addr, func(dep CellAddress) {
		result = append(result, dep)
	})
	return result
}

func (dg *DependencyGraph) forEachDependent(addr CellAddress, fn func(CellAddress)) {
	if node, exists := dg.nodes[addr]; exists {
		for dependentAddr := range node.CellDependents {
			fn(dependentAddr)
		}
	}
	for rangeAddr, observers := range dg.rangeObservers {
		if !rangeAddr.Contains(addr) {
			continue
		}
		for observerAddr := range observers {
			fn(observerAddr)
		}
	}
}

// GetAllDependents returns all cells affected by this cell (transitive
// closure). the cell itself is included only when it depends on itself.
func (dg *DependencyGraph) GetAllDependents(addr CellAddress) []CellAddress {
	visited := make(map[CellAddress]struct{})
	var result []CellAddress

	queue := []CellAddress{addr}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		dg.forEachDependent(current, func(dep CellAddress) {
			if _, seen := visited[dep]; seen {
				return
			}
			visited[dep] = struct{}{}
			result = append(result, dep)
			queue = append(queue, dep)
		})
	}
	return result
}

// GetDirectPrecedents returns cells this cell directly depends on
func (dg *DependencyGraph) GetDirectPrecedents(addr CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}

	result := make([]CellAddress, 0, len(node.CellPrecedents))
	for precedentAddr := range node.CellPrecedents {
		result = append(result, precedentAddr)
	}
	return result
}

// GetRangePrecedents returns ranges this cell depends on
func (dg *DependencyGraph) GetRangePrecedents(addr CellAddress) []RangeAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}

	result := make([]RangeAddress, 0, len(node.RangePrecedents))
	for rangeAddr := range node.RangePrecedents {
		result = append(result, rangeAddr)
	}
	return result
}

// GetAffectedCells returns the changed cell followed by every cell that
// needs recalculation because of it
func (dg *DependencyGraph) GetAffectedCells(addr CellAddress) []CellAddress {
	result := []CellAddress{addr}
	for _, dep := range dg.GetAllDependents(addr) {
		if dep != addr {
			result = append(result, dep)
		}
	}
	return result
}

// FormulaCells returns every cell holding a formula
func (dg *DependencyGraph) FormulaCells() []CellAddress {
	result := make([]CellAddress, 0, len(dg.nodes))
	for addr, node := range dg.nodes {
		if node.Formula != "" {
			result = append(result, addr)
		}
	}
	return result
}

// GetCalculationOrder orders the given cells so that every cell comes after
// the cells it depends on, considering only dependencies inside the set.
// it is a strongly connected components pass (tarjan): a component of more
// than one cell, or a cell depending on itself, is a cycle. cells in a
// cycle are returned in the cyclic set and still appear in the order.
func (dg *DependencyGraph) GetCalculationOrder(cells []CellAddress) (order []CellAddress, cyclic map[CellAddress]struct{}) {
	// sorted input keeps the order deterministic between runs
	members := make(map[CellAddress]struct{}, len(cells))
	sorted := make([]CellAddress, 0, len(cells))
	for _, addr := range cells {
		if _, dup := members[addr]; dup {
			continue
		}
		members[addr] = struct{}{}
		sorted = append(sorted, addr)
	}
	slices.SortFunc(sorted, compareAddresses)

	cyclic = make(map[CellAddress]struct{})
	order = make([]CellAddress, 0, len(sorted))

	index := 0
	indexes := make(map[CellAddress]int, len(sorted))
	lowlinks := make(map[CellAddress]int, len(sorted))
	onStack := make(map[CellAddress]bool, len(sorted))
	var stack []CellAddress

	var visit func(addr CellAddress)
	visit = func(addr CellAddress) {
		indexes[addr] = index
		lowlinks[addr] = index
		index++
		stack = append(stack, addr)
		onStack[addr] = true

		for _, precedent := range dg.precedentsWithin(addr, members, sorted) {
			if precedent == addr {
				cyclic[addr] = struct{}{}
				continue
			}
			if _, visited := indexes[precedent]; !visited {
				visit(precedent)
				lowlinks[addr] = min(lowlinks[addr], lowlinks[precedent])
			} else if onStack[precedent] {
				lowlinks[addr] = min(lowlinks[addr], indexes[precedent])
			}
		}

		if lowlinks[addr] != indexes[addr] {
			return
		}

		// addr is the root of a component: pop it
		var component []CellAddress
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == addr {
				break
			}
		}
		if len(component) > 1 {
			for _, member := range component {
				cyclic[member] = struct{}{}
			}
			slices.SortFunc(component, compareAddresses)
		}
		order = append(order, component...)
	}

	for _, addr := range sorted {
		if _, visited := indexes[addr]; !visited {
			visit(addr)
		}
	}

	return order, cyclic
}

// precedentsWithin lists the precedents of addr that are members of the
// set, in sorted order
func (dg *DependencyGraph) precedentsWithin(addr CellAddress, members map[CellAddress]struct{}, sorted []CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}

	var result []CellAddress
	for precedentAddr := range node.CellPrecedents {
		if _, ok := members[precedentAddr]; ok {
			result = append(result, precedentAddr)
		}
	}
	if len(node.RangePrecedents) > 0 {
		for _, member := range sorted {
			if _, dup := node.CellPrecedents[member]; dup {
				continue
			}
			for rangeAddr := range node.RangePrecedents {
				if rangeAddr.Contains(member) {
					result = append(result, member)
					break
				}
			}
		}
	}
	slices.SortFunc(result, compareAddresses)
	return result
}

// HasCycle checks if there are circular dependencies anywhere
func (dg *DependencyGraph) HasCycle() bool {
	_, cyclic := dg.GetCalculationOrder(dg.FormulaCells())
	return len(cyclic) > 0
}

// NodeCount returns the number of nodes in the graph
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}

// RangeObserverCount returns the number of observed ranges
func (dg *DependencyGraph) RangeObserverCount() int {
	return len(dg.rangeObservers)
}

// Clear removes all nodes and dependencies from the graph
func (dg *DependencyGraph) Clear() {
	dg.nodes = make(map[CellAddress]*DependencyNode)
	dg.rangeObservers = make(map[RangeAddress]map[CellAddress]struct{})
}

// compareAddresses orders addresses row-major
func compareAddresses(a, b CellAddress) int {
	if a.Row != b.Row {
		return a.Row - b.Row
	}
	return a.Column - b.Column
}
