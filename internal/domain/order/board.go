package order

// Board is a courier's view of the orders in the delivery phase.
type Board struct {
	// Available orders are in preparation and the courier has not applied.
	Available []Order
	// Mine holds orders the courier applied for that are still being
	// prepared, and orders assigned to the courier that are out for delivery.
	Mine []Order
}

// SplitBoard sorts delivery-phase orders into a courier's board. Orders in
// other statuses, or assigned to other couriers, are dropped.
func SplitBoard(orders []Order, courierID string) Board {
	var b Board
	for _, o := range orders {
		switch {
		case o.Status == StatusInProgress && !o.HasApplicant(courierID):
			b.Available = append(b.Available, o)
		case o.Status == StatusInProgress:
			b.Mine = append(b.Mine, o)
		case o.Status == StatusOutForDelivery && o.AssignedCourierID == courierID:
			b.Mine = append(b.Mine, o)
		}
	}
	return b
}
