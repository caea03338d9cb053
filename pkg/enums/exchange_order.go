package enums

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

var orderSides = newSet("order side", true, OrderSideBuy, OrderSideSell)

func (s OrderSide) IsValid() bool { return orderSides.has(s) }

func ParseOrderSide(value string) (OrderSide, error) { return orderSides.parse(value) }

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

var orderTypes = newSet("order type", true, OrderTypeLimit, OrderTypeMarket)

func (t OrderType) IsValid() bool { return orderTypes.has(t) }

func ParseOrderType(value string) (OrderType, error) { return orderTypes.parse(value) }

// ExchangeOrderStatus tracks a spot order and its held funds.
type ExchangeOrderStatus string

const (
	ExchangeOrderStatusOpen      ExchangeOrderStatus = "OPEN"
	ExchangeOrderStatusClosed    ExchangeOrderStatus = "CLOSED"
	ExchangeOrderStatusCancelled ExchangeOrderStatus = "CANCELLED"
)

func (s ExchangeOrderStatus) IsValid() bool {
	switch s {
	case ExchangeOrderStatusOpen, ExchangeOrderStatusClosed, ExchangeOrderStatusCancelled:
		return true
	}
	return false
}

func (s ExchangeOrderStatus) IsTerminal() bool {
	return s == ExchangeOrderStatusClosed || s == ExchangeOrderStatusCancelled
}
