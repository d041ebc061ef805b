package service

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/psds-microservice/ticket-desk/internal/model"
)

// Search loads the store and returns a lazy sequence of tickets whose customer,
// description or solution contains query, ignoring case. An empty query
// matches everything.
func (s *TicketService) Search(ctx context.Context, query string) (iter.Seq[model.Ticket], error) {
	tickets, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(tickets, query), nil
}

func Filter(tickets []model.Ticket, query string) iter.Seq[model.Ticket] {
	needle := strings.ToLower(query)
	return func(yield func(model.Ticket) bool) {
		for _, t := range tickets {
			if needle != "" && !Matches(&t, needle) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Matches expects needle already lower-cased.
func Matches(t *model.Ticket, needle string) bool {
	return strings.Contains(strings.ToLower(t.Customer), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) ||
		strings.Contains(strings.ToLower(t.Solution), needle)
}

// ClassifyForDisplay picks the row colour: resolved wins over priority.
func ClassifyForDisplay(t *model.Ticket) model.DisplayTag {
	switch {
	case t.Status == model.TicketStatusResolved:
		return model.DisplayResolved
	case t.Priority == model.PriorityUrgent:
		return model.DisplayUrgentOpen
	case t.Priority == model.PriorityHigh:
		return model.DisplayHighOpen
	default:
		return model.DisplayNormal
	}
}

// Sort keys accepted by SortTickets.
const (
	SortID        = "id"
	SortCreatedAt = "created_at"
	SortCustomer  = "customer"
	SortCategory  = "category"
	SortPriority  = "priority"
	SortStatus    = "status"
	SortCost      = "cost"
)

var SortKeys = []string{SortID, SortCreatedAt, SortCustomer, SortCategory, SortPriority, SortStatus, SortCost}

// SortTickets sorts in place; ties fall back to id so the order is stable.
// Unknown keys sort by id.
func SortTickets(tickets []model.Ticket, key string, desc bool) {
	by := compareFor(key)
	slices.SortStableFunc(tickets, func(a, b model.Ticket) int {
		c := by(&a, &b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}

func compareFor(key string) func(a, b *model.Ticket) int {
	switch key {
	case SortCreatedAt:
		return func(a, b *model.Ticket) int { return compareCreatedAt(a.CreatedAt, b.CreatedAt) }
	case SortCustomer:
		return func(a, b *model.Ticket) int {
			return cmp.Compare(strings.ToLower(a.Customer), strings.ToLower(b.Customer))
		}
	case SortCategory:
		return func(a, b *model.Ticket) int { return cmp.Compare(a.Category, b.Category) }
	case SortPriority:
		return func(a, b *model.Ticket) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
	case SortStatus:
		return func(a, b *model.Ticket) int { return cmp.Compare(a.Status, b.Status) }
	case SortCost:
		return func(a, b *model.Ticket) int { return cmp.Compare(a.Cost, b.Cost) }
	default:
		return func(a, b *model.Ticket) int { return cmp.Compare(a.ID, b.ID) }
	}
}

type Stats struct {
	Total    int     `json:"total"`
	Open     int     `json:"open"`
	Resolved int     `json:"resolved"`
	Revenue  float64 `json:"revenue"`
}

// ComputeStats counts tickets and sums the cost of resolved ones.
func ComputeStats(tickets []model.Ticket) Stats {
	st := Stats{Total: len(tickets)}
	for i := range tickets {
		if tickets[i].IsOpen() {
			st.Open++
			continue
		}
		st.Resolved++
		st.Revenue += tickets[i].Cost
	}
	return st
}

// OpenTickets returns the tickets that can still be resolved.
func OpenTickets(tickets []model.Ticket) []model.Ticket {
	out := make([]model.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	return out
}

// compareCreatedAt orders by parsed timestamp; unparseable values sort as text after valid ones.
func compareCreatedAt(a, b string) int {
	ta, errA := time.Parse(model.CreatedAtLayout, a)
	tb, errB := time.Parse(model.CreatedAtLayout, b)
	switch {
	case errA == nil && errB == nil:
		return ta.Compare(tb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
