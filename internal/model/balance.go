package model

import (
	"time"

	"optionscalper/internal/money"
)

// BalanceState is the paper wallet's persisted state, singleton per session.
type BalanceState struct {
	Available       money.Money `json:"available"`
	Used            money.Money `json:"used"`
	Total           money.Money `json:"total"`
	RealizedPnL     money.Money `json:"realized_pnl"`
	StartingBalance money.Money `json:"starting_balance"`
	LastUpdated     time.Time   `json:"last_updated"`
}
