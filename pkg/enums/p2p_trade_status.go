package enums

// P2PTradeStatus tracks an escrowed peer-to-peer trade.
type P2PTradeStatus string

const (
	P2PTradeStatusPending   P2PTradeStatus = "PENDING"
	P2PTradeStatusPaid      P2PTradeStatus = "PAID"
	P2PTradeStatusDisputed  P2PTradeStatus = "DISPUTED"
	P2PTradeStatusCompleted P2PTradeStatus = "COMPLETED"
	P2PTradeStatusCancelled P2PTradeStatus = "CANCELLED"
)

var p2pTradeTransitions = map[P2PTradeStatus][]P2PTradeStatus{
	P2PTradeStatusPending:  {P2PTradeStatusPaid, P2PTradeStatusDisputed, P2PTradeStatusCancelled},
	P2PTradeStatusPaid:     {P2PTradeStatusCompleted, P2PTradeStatusDisputed},
	P2PTradeStatusDisputed: {P2PTradeStatusCompleted, P2PTradeStatusCancelled},
}

func (s P2PTradeStatus) IsValid() bool {
	switch s {
	case P2PTradeStatusPending, P2PTradeStatusPaid, P2PTradeStatusDisputed, P2PTradeStatusCompleted, P2PTradeStatusCancelled:
		return true
	}
	return false
}

func (s P2PTradeStatus) IsTerminal() bool {
	return s == P2PTradeStatusCompleted || s == P2PTradeStatusCancelled
}

// CanTransitionTo reports whether the trade lifecycle allows s -> next.
func (s P2PTradeStatus) CanTransitionTo(next P2PTradeStatus) bool {
	for _, candidate := range p2pTradeTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}
