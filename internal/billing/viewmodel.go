package billing

import "strings"

// FilterGroups returns the subset of groups matching term. A group matches
// when the customer name or any bill's meter number contains the term,
// case-insensitively; matching groups are kept wholesale, including bills
// whose meter number did not match. An empty or blank term returns groups
// unchanged.
func FilterGroups(groups []CustomerBillGroup, term string) []CustomerBillGroup {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return groups
	}
	var out []CustomerBillGroup
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g.Customer), needle) {
			out = append(out, g)
			continue
		}
		for _, b := range g.Bills {
			if strings.Contains(strings.ToLower(b.MeterNumber), needle) {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// Expansion tracks which customer's billing history is open. At most one
// customer is expanded at a time; expanding another collapses the first.
type Expansion struct {
	current int64
	open    bool
}

// Toggle expands customerID, or collapses it when it is already expanded.
func (e *Expansion) Toggle(customerID int64) {
	if e.open && e.current == customerID {
		e.open = false
		e.current = 0
		return
	}
	e.current = customerID
	e.open = true
}

// Expanded reports whether customerID's history is open.
func (e *Expansion) Expanded(customerID int64) bool {
	return e.open && e.current == customerID
}

// Current returns the expanded customer id, or 0 when collapsed.
func (e *Expansion) Current() int64 {
	if !e.open {
		return 0
	}
	return e.current
}

// PaidOnly keeps only paid bills in each group, recomputes the group total
// as the sum of the retained amounts, and drops groups left empty. The
// input is not modified.
func PaidOnly(groups []CustomerBillGroup) []CustomerBillGroup {
	var out []CustomerBillGroup
	for _, g := range groups {
		var paid []Bill
		var total float64
		for _, b := range g.Bills {
			if b.Status != BillPaid {
				continue
			}
			paid = append(paid, b)
			total += b.AmountDue
		}
		if len(paid) == 0 {
			continue
		}
		kept := g
		kept.Bills = paid
		kept.TotalAmountDue = total
		out = append(out, kept)
	}
	return out
}
