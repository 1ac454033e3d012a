package enum

// OrderStatus pending, active, won, lost, error
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusPending
	OrderStatusActive
	OrderStatusWon
	OrderStatusLost
	OrderStatusError
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusWon, OrderStatusLost, OrderStatusError:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusActive:
		return "active"
	case OrderStatusWon:
		return "won"
	case OrderStatusLost:
		return "lost"
	case OrderStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome won, lost, error (true outcome unknown)
type Outcome uint8

const (
	_outcome_beg Outcome = iota
	OutcomeWon
	OutcomeLost
	OutcomeError
	_outcome_end
)

func (o Outcome) IsAvailable() bool {
	return o > _outcome_beg && o < _outcome_end
}

func (o Outcome) String() string {
	switch o {
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}
