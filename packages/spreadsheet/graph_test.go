package spreadsheet

import (
	"reflect"
	"slices"
	"testing"
)

func addr(t *testing.T, address string) CellAddress {
	t.Helper()
	a, err := ParseAddress(address)
	if err != nil {
		t.Fatalf("ParseAddress(%q) failed: %v", address, err)
	}
	return a
}

func addrs(t *testing.T, addresses ...string) []CellAddress {
	t.Helper()
	result := make([]CellAddress, len(addresses))
	for i, address := range addresses {
		result[i] = addr(t, address)
	}
	return result
}

func names(list []CellAddress) []string {
	result := make([]string, len(list))
	for i, a := range list {
		result[i] = a.String()
	}
	return result
}

func TestDependencyGraphEdges(t *testing.T) {
	dg := NewDependencyGraph()
	dg.SetFormula(addr(t, "C1"), "=A1+B1", addrs(t, "A1", "B1"), nil)

	precedents := names(dg.GetDirectPrecedents(addr(t, "C1")))
	slices.Sort(precedents)
	if !reflect.DeepEqual(precedents, []string{"A1", "B1"}) {
		t.Errorf("GetDirectPrecedents(C1) = %v", precedents)
	}
	if got := names(dg.GetDirectDependents(addr(t, "A1"))); !reflect.DeepEqual(got, []string{"C1"}) {
		t.Errorf("GetDirectDependents(A1) = %v", got)
	}
	if formula, ok := dg.GetFormula(addr(t, "C1")); !ok || formula != "=A1+B1" {
		t.Errorf("GetFormula(C1) = %q, %v", formula, ok)
	}
	if _, ok := dg.GetFormula(addr(t, "A1")); ok {
		t.Error("A1 has no formula")
	}
	if dg.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", dg.NodeCount())
	}

	// replacing the formula drops the old edges and their empty nodes
	dg.SetFormula(addr(t, "C1"), "=B1", addrs(t, "B1"), nil)
	if _, exists := dg.GetNode(addr(t, "A1")); exists {
		t.Error("A1 node survived after its only dependent dropped it")
	}

	dg.RemoveNode(addr(t, "C1"))
	if dg.NodeCount() != 0 {
		t.Errorf("NodeCount() after RemoveNode = %d, want 0", dg.NodeCount())
	}
}

func TestDependencyGraphRanges(t *testing.T) {
	dg := NewDependencyGraph()
	bounds, _ := ParseRange("A1:A10")
	dg.SetFormula(addr(t, "B1"), "=SUM(A1:A10)", nil, []RangeAddress{bounds})

	if dg.RangeObserverCount() != 1 {
		t.Errorf("RangeObserverCount() = %d, want 1", dg.RangeObserverCount())
	}
	if got := names(dg.GetDirectDependents(addr(t, "A7"))); !reflect.DeepEqual(got, []string{"B1"}) {
		t.Errorf("GetDirectDependents(A7) = %v", got)
	}
	if got := dg.GetDirectDependents(addr(t, "A11")); len(got) != 0 {
		t.Errorf("GetDirectDependents(A11) = %v, want none", names(got))
	}
	if !dg.IsInRange(addr(t, "A10"), bounds) || dg.IsInRange(addr(t, "B10"), bounds) {
		t.Error("IsInRange reports wrong membership")
	}
	if got := dg.GetRangePrecedents(addr(t, "B1")); !reflect.DeepEqual(got, []RangeAddress{bounds}) {
		t.Errorf("GetRangePrecedents(B1) = %v", got)
	}

	dg.ClearDependencies(addr(t, "B1"))
	if dg.RangeObserverCount() != 0 {
		t.Errorf("RangeObserverCount() after clear = %d, want 0", dg.RangeObserverCount())
	}
}

func TestDependencyGraphAffectedCells(t *testing.T) {
	dg := NewDependencyGraph()
	dg.SetFormula(addr(t, "B1"), "=A1", addrs(t, "A1"), nil)
	dg.SetFormula(addr(t, "C1"), "=B1", addrs(t, "B1"), nil)
	dg.SetFormula(addr(t, "D1"), "=B1+C1", addrs(t, "B1", "C1"), nil)
	dg.SetFormula(addr(t, "E1"), "=A10", addrs(t, "A10"), nil)

	affected := names(dg.GetAffectedCells(addr(t, "A1")))
	if affected[0] != "A1" {
		t.Errorf("GetAffectedCells starts with %s, want A1", affected[0])
	}
	rest := slices.Clone(affected[1:])
	slices.Sort(rest)
	if !reflect.DeepEqual(rest, []string{"B1", "C1", "D1"}) {
		t.Errorf("GetAffectedCells(A1) = %v", affected)
	}

	// each dependent is reported once even through the diamond
	if got := dg.GetAllDependents(addr(t, "B1")); len(got) != 2 {
		t.Errorf("GetAllDependents(B1) = %v, want 2 cells", names(got))
	}
}

func TestCalculationOrder(t *testing.T) {
	dg := NewDependencyGraph()
	dg.SetFormula(addr(t, "A3"), "=A2+1", addrs(t, "A2"), nil)
	dg.SetFormula(addr(t, "A2"), "=A1+1", addrs(t, "A1"), nil)
	dg.SetFormula(addr(t, "B1"), "=A3*A1", addrs(t, "A3", "A1"), nil)

	order, cyclic := dg.GetCalculationOrder(addrs(t, "B1", "A3", "A2", "A1"))
	if len(cyclic) != 0 {
		t.Errorf("cyclic = %v, want none", cyclic)
	}
	got := names(order)
	position := func(name string) int { return slices.Index(got, name) }
	if position("A1") > position("A2") || position("A2") > position("A3") || position("A3") > position("B1") {
		t.Errorf("GetCalculationOrder = %v, precedents must come first", got)
	}
	if len(got) != 4 {
		t.Errorf("GetCalculationOrder = %v, want each cell once", got)
	}

	// repeated calls agree
	again, _ := dg.GetCalculationOrder(addrs(t, "A1", "A2", "A3", "B1"))
	if !reflect.DeepEqual(names(again), got) {
		t.Errorf("order changed between calls: %v then %v", got, names(again))
	}
}

func TestCalculationOrderCycles(t *testing.T) {
	dg := NewDependencyGraph()
	dg.SetFormula(addr(t, "A1"), "=B1", addrs(t, "B1"), nil)
	dg.SetFormula(addr(t, "B1"), "=C1", addrs(t, "C1"), nil)
	dg.SetFormula(addr(t, "C1"), "=A1", addrs(t, "A1"), nil)
	dg.SetFormula(addr(t, "D1"), "=A1", addrs(t, "A1"), nil)
	dg.SetFormula(addr(t, "E1"), "=E1", addrs(t, "E1"), nil)

	order, cyclic := dg.GetCalculationOrder(dg.FormulaCells())
	for _, name := range []string{"A1", "B1", "C1", "E1"} {
		if _, ok := cyclic[addr(t, name)]; !ok {
			t.Errorf("%s not reported as cyclic", name)
		}
	}
	if _, ok := cyclic[addr(t, "D1")]; ok {
		t.Error("D1 depends on a cycle but is not part of one")
	}
	got := names(order)
	if slices.Index(got, "D1") < slices.Index(got, "A1") {
		t.Errorf("order = %v, D1 must follow the cycle it reads", got)
	}
	if !dg.HasCycle() {
		t.Error("HasCycle() = false")
	}

	dg.RemoveNode(addr(t, "C1"))
	dg.RemoveNode(addr(t, "E1"))
	if dg.HasCycle() {
		t.Error("HasCycle() = true after breaking every cycle")
	}
}

func TestCalculationOrderRangeCycle(t *testing.T) {
	dg := NewDependencyGraph()
	bounds, _ := ParseRange("A1:A5")
	dg.SetFormula(addr(t, "A5"), "=SUM(A1:A5)", nil, []RangeAddress{bounds})
	dg.SetFormula(addr(t, "A2"), "=1", nil, nil)

	order, cyclic := dg.GetCalculationOrder(dg.FormulaCells())
	if _, ok := cyclic[addr(t, "A5")]; !ok {
		t.Error("a range containing its own cell is a cycle")
	}
	if _, ok := cyclic[addr(t, "A2")]; ok {
		t.Error("A2 is not in a cycle")
	}
	if !reflect.DeepEqual(names(order), []string{"A2", "A5"}) {
		t.Errorf("order = %v, want [A2 A5]", names(order))
	}
}
