// Package reconcile recomputes client balances from their invoices and
// receipts and corrects drift in the stored scalar.
package reconcile

import "time"

// Tolerance is the absolute difference treated as already reconciled.
// Differences at or below it are rounding noise, not drift.
const Tolerance = 0.01

// Result reports one client's reconciliation outcome.
type Result struct {
	ClientID            int64      `json:"client_id"`
	CalculatedBalance   float64    `json:"calculated_balance"`
	DatabaseBalance     float64    `json:"database_balance"`
	Difference          float64    `json:"difference"`
	IsReconciled        bool       `json:"is_reconciled"`
	WasUpdated          bool       `json:"was_updated"`
	TransactionCount    int        `json:"transaction_count"`
	LastTransactionDate *time.Time `json:"last_transaction_date,omitempty"`
	Errors              []string   `json:"errors,omitempty"`
}

// BatchSummary reports a full reconciliation run.
type BatchSummary struct {
	TotalClients      int       `json:"total_clients"`
	ReconciledClients int       `json:"reconciled_clients"`
	UpdatedClients    int       `json:"updated_clients"`
	ErrorClients      int       `json:"error_clients"`
	TotalDifference   float64   `json:"total_difference"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Results           []Result  `json:"results,omitempty"`
}

// CurrencyTotals groups a client's invoiced amounts by currency.
type CurrencyTotals struct {
	Currency        string  `json:"currency"`
	InvoicedRegular float64 `json:"invoiced_regular"`
	InvoicedReturns float64 `json:"invoiced_returns"`
	NetInvoiced     float64 `json:"net_invoiced"`
	InvoiceCount    int     `json:"invoice_count"`
}

// Breakdown is the read-only view behind a reconciliation: what the
// calculated balance is made of.
type Breakdown struct {
	ClientID          int64            `json:"client_id"`
	ClientName        string           `json:"client_name"`
	DatabaseBalance   float64          `json:"database_balance"`
	CalculatedBalance float64          `json:"calculated_balance"`
	Currencies        []CurrencyTotals `json:"currencies"`
	ReceiptsTotal     float64          `json:"receipts_total"`
	ReceiptCount      int              `json:"receipt_count"`
}

// ClientAccount is the slice of the client record the engine needs.
type ClientAccount struct {
	ID      int64
	Name    string
	Balance float64
}

// InvoiceAmount is one invoice's contribution to the calculation.
type InvoiceAmount struct {
	Type      string
	Currency  string
	Total     float64
	CreatedAt time.Time
}

// ReceiptAmount is one receipt's contribution to the calculation.
type ReceiptAmount struct {
	Amount float64
	PaidAt time.Time
}
