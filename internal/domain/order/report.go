package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates a set of orders for reporting.
type Summary struct {
	TotalOrders int
	Delivered   int
	// Revenue sums the total price of delivered orders only.
	Revenue  decimal.Decimal
	ByStatus map[Status]int
}

// Summarize computes a Summary over the given orders.
func Summarize(orders []Order) Summary {
	s := Summary{
		TotalOrders: len(orders),
		Revenue:     decimal.Zero,
		ByStatus:    make(map[Status]int, len(Statuses)),
	}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	for _, o := range orders {
		s.ByStatus[o.Status]++
		if o.Status == StatusDelivered {
			s.Delivered++
			s.Revenue = s.Revenue.Add(o.TotalPrice)
		}
	}
	return s
}

// OnDay keeps the orders created on the calendar day of day, evaluated in
// day's location.
func OnDay(orders []Order, day time.Time) []Order {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return createdBetween(orders, start, start.AddDate(0, 0, 1))
}

// InMonth keeps the orders created in the calendar month of month.
func InMonth(orders []Order, month time.Time) []Order {
	y, m, _ := month.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, month.Location())
	return createdBetween(orders, start, start.AddDate(0, 1, 0))
}

func createdBetween(orders []Order, start, end time.Time) []Order {
	var out []Order
	for _, o := range orders {
		if !o.CreatedAt.Before(start) && o.CreatedAt.Before(end) {
			out = append(out, o)
		}
	}
	return out
}
