package enums

// BinaryOrderSide is the direction the trader bets on.
type BinaryOrderSide string

const (
	BinaryOrderSideRise BinaryOrderSide = "RISE"
	BinaryOrderSideFall BinaryOrderSide = "FALL"
)

var binarySides = newSet("binary order side", true, BinaryOrderSideRise, BinaryOrderSideFall)

func (s BinaryOrderSide) IsValid() bool { return binarySides.has(s) }

// ParseBinaryOrderSide accepts "rise"/"fall" in any casing.
func ParseBinaryOrderSide(value string) (BinaryOrderSide, error) {
	return binarySides.parse(value)
}

// BinaryOrderStatus tracks a binary option until it expires or is cancelled.
type BinaryOrderStatus string

const (
	BinaryOrderStatusPending   BinaryOrderStatus = "PENDING"
	BinaryOrderStatusWin       BinaryOrderStatus = "WIN"
	BinaryOrderStatusLoss      BinaryOrderStatus = "LOSS"
	BinaryOrderStatusDraw      BinaryOrderStatus = "DRAW"
	BinaryOrderStatusCancelled BinaryOrderStatus = "CANCELLED"
)

func (s BinaryOrderStatus) IsValid() bool {
	switch s {
	case BinaryOrderStatusPending, BinaryOrderStatusWin, BinaryOrderStatusLoss, BinaryOrderStatusDraw, BinaryOrderStatusCancelled:
		return true
	}
	return false
}

func (s BinaryOrderStatus) IsTerminal() bool {
	return s.IsValid() && s != BinaryOrderStatusPending
}
