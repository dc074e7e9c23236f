package domain

import "github.com/shopspring/decimal"

// ExecutionStatus classifies the outcome of one plan decision.
type ExecutionStatus string

const (
	// ExecutionSubmitted means the order was accepted by the venue.
	ExecutionSubmitted ExecutionStatus = "submitted"
	// ExecutionRejected means a risk gate declined the decision before submission.
	ExecutionRejected ExecutionStatus = "rejected"
	// ExecutionError means the venue call failed.
	ExecutionError ExecutionStatus = "error"
)

// ExecutionResult is the per-decision outcome of plan execution. Rejections
// are ordinary values, not errors: a declined buy must never abort the
// remaining decisions.
type ExecutionResult struct {
	Symbol   string
	Action   Action
	Quantity decimal.Decimal
	Price    decimal.Decimal
	OrderID  string
	Status   ExecutionStatus
	Reason   string
}

// Submitted builds a successful execution result.
func Submitted(symbol string, action Action, qty, price decimal.Decimal, orderID string) ExecutionResult {
	return ExecutionResult{Symbol: symbol, Action: action, Quantity: qty, Price: price, OrderID: orderID, Status: ExecutionSubmitted}
}

// Rejected builds a risk-gate rejection result.
func Rejected(symbol string, action Action, qty decimal.Decimal, reason string) ExecutionResult {
	return ExecutionResult{Symbol: symbol, Action: action, Quantity: qty, Status: ExecutionRejected, Reason: reason}
}

// Failed builds a venue-error result.
func Failed(symbol string, action Action, qty decimal.Decimal, reason string) ExecutionResult {
	return ExecutionResult{Symbol: symbol, Action: action, Quantity: qty, Status: ExecutionError, Reason: reason}
}
