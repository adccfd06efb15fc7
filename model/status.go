package model

// OrderStatus is the order lifecycle state as the server reports it.
type OrderStatus string

const (
	StatusNew              OrderStatus = "NEW"
	StatusPending          OrderStatus = "PENDING"
	StatusConfirmed        OrderStatus = "CONFIRMED"
	StatusReadyForDelivery OrderStatus = "READY_FOR_DELIVERY"
	StatusAssigned         OrderStatus = "ASSIGNED"
	StatusShipped          OrderStatus = "SHIPPED"
	StatusOutForDelivery   OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered        OrderStatus = "DELIVERED"
	StatusCancelled        OrderStatus = "CANCELLED"
)

// rank orders the forward chain. CANCELLED is not on the chain.
var rank = map[OrderStatus]int{
	StatusNew:              0,
	StatusPending:          0,
	StatusConfirmed:        1,
	StatusReadyForDelivery: 2,
	StatusAssigned:         3,
	StatusShipped:          4,
	StatusOutForDelivery:   5,
	StatusDelivered:        6,
}

func (s OrderStatus) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := rank[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether the lifecycle permits moving from s to
// next: strictly forward along the chain, or CANCELLED from any
// non-terminal state. It ignores who is asking; see AllowedTransition.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if next == StatusCancelled {
		return !s.IsTerminal()
	}
	from, ok1 := rank[s]
	to, ok2 := rank[next]
	return ok1 && ok2 && to > from
}

// roleGates lists, per role and target status, the statuses the order
// must currently be in for that actor to request the transition. The
// entries mirror the buttons each portal shows.
var roleGates = map[Role]map[OrderStatus][]OrderStatus{
	RoleAdmin: {
		StatusConfirmed: {StatusNew, StatusPending},
	},
	RoleVendor: {
		StatusReadyForDelivery: {StatusPending, StatusConfirmed},
	},
	RoleDeliveryAgent: {
		StatusShipped:        {StatusAssigned, StatusConfirmed},
		StatusOutForDelivery: {StatusShipped},
		StatusDelivered:      {StatusOutForDelivery},
	},
}

// AllowedTransition reports whether role may move an order from cur to
// next. Customers (and admins) may cancel any non-terminal order;
// everything else goes through the per-role gate table.
func AllowedTransition(role Role, cur, next OrderStatus) bool {
	if next == StatusCancelled {
		return (role == RoleCustomer || role == RoleAdmin) && !cur.IsTerminal()
	}
	gates, ok := roleGates[role]
	if !ok {
		return false
	}
	froms, ok := gates[next]
	if !ok {
		return false
	}
	for _, f := range froms {
		if f == cur {
			return cur.CanTransition(next)
		}
	}
	return false
}
