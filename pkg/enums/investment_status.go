package enums

// InvestmentStatus tracks an AI investment plan subscription.
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "ACTIVE"
	InvestmentStatusCompleted InvestmentStatus = "COMPLETED"
	InvestmentStatusCancelled InvestmentStatus = "CANCELLED"
)

func (s InvestmentStatus) IsValid() bool {
	switch s {
	case InvestmentStatusActive, InvestmentStatusCompleted, InvestmentStatusCancelled:
		return true
	}
	return false
}

func (s InvestmentStatus) IsTerminal() bool {
	return s == InvestmentStatusCompleted || s == InvestmentStatusCancelled
}
