package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradeledger-backend/internal/binary"
	"github.com/angelmondragon/tradeledger-backend/internal/exchange"
	"github.com/angelmondragon/tradeledger-backend/internal/investments"
	"github.com/angelmondragon/tradeledger-backend/internal/market"
	"github.com/angelmondragon/tradeledger-backend/internal/p2p"
	"github.com/angelmondragon/tradeledger-backend/internal/settings"
	"github.com/angelmondragon/tradeledger-backend/internal/transactions"
	"github.com/angelmondragon/tradeledger-backend/internal/wallets"
	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	"github.com/angelmondragon/tradeledger-backend/pkg/metrics"
	"github.com/angelmondragon/tradeledger-backend/pkg/outbox"
)

// Operation names, used for idempotency records, logs and metrics.
const (
	OpCreateInvestment    = "create_investment"
	OpCancelInvestment    = "cancel_investment"
	OpCompleteInvestment  = "complete_investment"
	OpDeposit             = "deposit"
	OpRequestWithdrawal   = "request_withdrawal"
	OpApproveWithdrawal   = "approve_withdrawal"
	OpRejectWithdrawal    = "reject_withdrawal"
	OpTransfer            = "transfer"
	OpOpenP2PTrade        = "open_p2p_trade"
	OpMarkP2PTradePaid    = "mark_p2p_trade_paid"
	OpDisputeP2PTrade     = "dispute_p2p_trade"
	OpReleaseP2PTrade     = "release_p2p_trade"
	OpCancelP2PTrade      = "cancel_p2p_trade"
	OpPlaceBinaryOrder    = "place_binary_order"
	OpCancelBinaryOrder   = "cancel_binary_order"
	OpSettleBinaryOrder   = "settle_binary_order"
	OpPlaceExchangeOrder  = "place_exchange_order"
	OpCancelExchangeOrder = "cancel_exchange_order"
	OpFillExchangeOrder   = "fill_exchange_order"
)

// DefaultFeeAccountID owns the platform fee wallets when no account is
// configured.
var DefaultFeeAccountID = uuid.MustParse("00000000-0000-0000-0000-00000000fee0")

// Service is the ledger operation coordinator. Every method that moves
// money runs as one atomic unit: balance change, ledger rows, entity
// transition, idempotency record and outbox event commit together or not
// at all.
type Service interface {
	CreateInvestment(ctx context.Context, input CreateInvestmentInput) (*Result, error)
	CancelInvestment(ctx context.Context, input CancelInvestmentInput) (*Result, error)
	CompleteInvestment(ctx context.Context, investmentID uuid.UUID) (*Result, error)

	Deposit(ctx context.Context, input DepositInput) (*Result, error)
	RequestWithdrawal(ctx context.Context, input WithdrawalInput) (*Result, error)
	ApproveWithdrawal(ctx context.Context, input SettleWithdrawalInput) (*Result, error)
	RejectWithdrawal(ctx context.Context, input SettleWithdrawalInput) (*Result, error)
	Transfer(ctx context.Context, input TransferInput) (*Result, error)

	OpenP2PTrade(ctx context.Context, input OpenP2PTradeInput) (*Result, error)
	MarkP2PTradePaid(ctx context.Context, input P2PTradeActionInput) (*Result, error)
	DisputeP2PTrade(ctx context.Context, input P2PTradeActionInput) (*Result, error)
	ReleaseP2PTrade(ctx context.Context, input P2PTradeActionInput) (*Result, error)
	CancelP2PTrade(ctx context.Context, input P2PTradeActionInput) (*Result, error)

	PlaceBinaryOrder(ctx context.Context, input PlaceBinaryOrderInput) (*Result, error)
	CancelBinaryOrder(ctx context.Context, input EntityActionInput) (*Result, error)
	SettleBinaryOrder(ctx context.Context, orderID uuid.UUID) (*Result, error)

	PlaceExchangeOrder(ctx context.Context, input PlaceExchangeOrderInput) (*Result, error)
	CancelExchangeOrder(ctx context.Context, input EntityActionInput) (*Result, error)
	FillExchangeOrder(ctx context.Context, input FillExchangeOrderInput) (*Result, error)
}

// Result is what a committed (or replayed) operation reports back.
type Result struct {
	TransactionID uuid.UUID       `json:"transactionId"`
	NewBalance    decimal.Decimal `json:"newBalance"`
	EntityID      uuid.UUID       `json:"entityId"`
	EntityStatus  string          `json:"entityStatus"`
	// Replayed is set when the result came from a stored idempotency record
	// or the entity was already in the requested terminal state.
	Replayed bool `json:"replayed"`
}

// TxRunner opens the atomic unit. *db.Client satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Deps collects the coordinator's collaborators.
type Deps struct {
	DB           TxRunner
	Wallets      wallets.Repository
	Transactions transactions.Repository
	Investments  investments.Repository
	Trades       p2p.Repository
	BinaryOrders binary.Repository
	Exchange     exchange.Repository
	Operations   Repository
	Settings     settings.Reader
	Market       market.Gateway
	Outbox       outbox.Emitter
	Metrics      *metrics.LedgerMetrics
	Logger       *logger.Logger
	Config       config.LedgerConfig
	Clock        func() time.Time
}

type service struct {
	db        TxRunner
	wallets   wallets.Repository
	txns      transactions.Repository
	invs      investments.Repository
	trades    p2p.Repository
	binaries  binary.Repository
	exchanges exchange.Repository
	ops       Repository
	settings  settings.Reader
	market    market.Gateway
	outbox    outbox.Emitter
	metrics   *metrics.LedgerMetrics
	logg      *logger.Logger
	timeout   time.Duration
	precision int32
	feeOwner  uuid.UUID
	now       func() time.Time
}

// NewService wires the coordinator. Metrics and Clock are optional.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("db required")
	case deps.Wallets == nil:
		return nil, fmt.Errorf("wallet repository required")
	case deps.Transactions == nil:
		return nil, fmt.Errorf("transaction repository required")
	case deps.Investments == nil:
		return nil, fmt.Errorf("investment repository required")
	case deps.Trades == nil:
		return nil, fmt.Errorf("p2p repository required")
	case deps.BinaryOrders == nil:
		return nil, fmt.Errorf("binary order repository required")
	case deps.Exchange == nil:
		return nil, fmt.Errorf("exchange order repository required")
	case deps.Operations == nil:
		return nil, fmt.Errorf("operation repository required")
	case deps.Settings == nil:
		return nil, fmt.Errorf("settings reader required")
	case deps.Market == nil:
		return nil, fmt.Errorf("market gateway required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case deps.Config.OperationTimeout <= 0:
		return nil, fmt.Errorf("operation timeout must be positive")
	}

	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	precision := deps.Config.DefaultPrecision
	if precision <= 0 {
		precision = 8
	}
	feeOwner := DefaultFeeAccountID
	if raw := strings.TrimSpace(deps.Config.FeeAccountID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return nil, fmt.Errorf("invalid fee account id %q", raw)
		}
		feeOwner = id
	}

	return &service{
		db:        deps.DB,
		wallets:   deps.Wallets,
		txns:      deps.Transactions,
		invs:      deps.Investments,
		trades:    deps.Trades,
		binaries:  deps.BinaryOrders,
		exchanges: deps.Exchange,
		ops:       deps.Operations,
		settings:  deps.Settings,
		market:    deps.Market,
		outbox:    deps.Outbox,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		timeout:   deps.Config.OperationTimeout,
		precision: precision,
		feeOwner:  feeOwner,
		now:       now,
	}, nil
}

// unit is the set of repositories bound to one open transaction.
type unit struct {
	tx        *gorm.DB
	wallets   wallets.Repository
	txns      transactions.Repository
	invs      investments.Repository
	trades    p2p.Repository
	binaries  binary.Repository
	exchanges exchange.Repository
	ops       Repository
	now       time.Time
}

func (s *service) newUnit(tx *gorm.DB) *unit {
	return &unit{
		tx:        tx,
		wallets:   s.wallets.WithTx(tx),
		txns:      s.txns.WithTx(tx),
		invs:      s.invs.WithTx(tx),
		trades:    s.trades.WithTx(tx),
		binaries:  s.binaries.WithTx(tx),
		exchanges: s.exchanges.WithTx(tx),
		ops:       s.ops.WithTx(tx),
		now:       s.now(),
	}
}
