package enums

// WalletType partitions a user's balances per currency.
type WalletType string

const (
	WalletTypeFiat    WalletType = "FIAT"
	WalletTypeSpot    WalletType = "SPOT"
	WalletTypeEco     WalletType = "ECO"
	WalletTypeFutures WalletType = "FUTURES"
)

var walletTypes = newSet("wallet type", true, WalletTypeFiat, WalletTypeSpot, WalletTypeEco, WalletTypeFutures)

func (t WalletType) IsValid() bool { return walletTypes.has(t) }

// ParseWalletType is case-insensitive.
func ParseWalletType(value string) (WalletType, error) {
	return walletTypes.parse(value)
}
