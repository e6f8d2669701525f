package contracts

// Signal is a per-date trading decision emitted by a strategy model.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// IsAction reports whether the signal is an actionable order (BUY or SELL).
// Only actions participate in cooldown bookkeeping.
func (s Signal) IsAction() bool {
	return s == SignalBuy || s == SignalSell
}

// Valid reports whether the signal is one of the three known labels.
func (s Signal) Valid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalHold:
		return true
	}
	return false
}
