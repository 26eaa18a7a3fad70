// Package dedup implements the spreadsheet reconciliation core: content
// fingerprinting, fuzzy text similarity and the insert/update/skip decision
// cascade that keeps re-synced sheet rows from duplicating ledger entries.
//
// The package is pure: it never touches the datastore or the network. The
// sync package feeds it the tenant's current transactions and the parsed
// sheet rows and applies whatever it decides.
package dedup

import "github.com/shopspring/decimal"

// TransactionType classifies a ledger entry. The values are the Portuguese
// tokens used by the source spreadsheets and stored in the database.
type TransactionType string

// Transaction types.
const (
	TypeRevenue TransactionType = "receita"
	TypeExpense TransactionType = "despesa"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

// Transaction statuses.
const (
	StatusPending TransactionStatus = "pendente"
	StatusPaid    TransactionStatus = "pago"
	StatusOverdue TransactionStatus = "vencido"
)

// TransactionData is the canonical shape of one incoming sheet row after
// parsing. Dates are ISO date strings ("2006-01-02") or empty.
type TransactionData struct {
	Description string
	Amount      decimal.Decimal
	Type        TransactionType
	Status      TransactionStatus
	DueDate     string
	PaymentDate string
	CategoryID  string
	MinistryID  string
	Notes       string
}

// ExistingTransaction is a persisted ledger entry loaded for matching.
type ExistingTransaction struct {
	ID         string
	ExternalID string
	ChurchID   string
	TransactionData
}

// AmountTolerance is the maximum difference for two amounts to be treated
// as equal. Currency parsing rounds to two decimals, so one cent absorbs
// representation noise without masking real changes.
var AmountTolerance = decimal.New(1, -2)

// AmountsEqual reports whether two amounts match within one cent.
func AmountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}
