package dedup

import "github.com/shopspring/decimal"

// Index holds the lookup maps built once per sync run from the tenant's
// persisted transactions. It also serves as the live view during a run: the
// sync loop adds pending inserts so that later rows of the same batch match
// earlier ones instead of double-inserting.
type Index struct {
	ByExternalID  map[string]*ExistingTransaction
	ByContentHash map[string]*ExistingTransaction

	// byAmountDate buckets hash-indexed entries by "amount|dueDate|type"
	// so the similarity fallback scans a handful of candidates instead of
	// the whole ledger.
	byAmountDate map[string][]*ExistingTransaction
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		ByExternalID:  make(map[string]*ExistingTransaction),
		ByContentHash: make(map[string]*ExistingTransaction),
		byAmountDate:  make(map[string][]*ExistingTransaction),
	}
}

// BuildIndex indexes the tenant's existing transactions in one linear pass.
// On duplicate content hashes the first occurrence wins, so the oldest
// matching record stays the canonical update target; callers should pass
// records in creation order.
func BuildIndex(existing []*ExistingTransaction) *Index {
	ix := NewIndex()
	for _, t := range existing {
		ix.Add(t)
	}
	return ix
}

// Add indexes one transaction. Existing external-id and hash entries are
// never overwritten (first write wins).
func (ix *Index) Add(t *ExistingTransaction) {
	if t.ExternalID != "" {
		if _, ok := ix.ByExternalID[t.ExternalID]; !ok {
			ix.ByExternalID[t.ExternalID] = t
		}
	}

	hash := ContentHash(t.Description, t.Amount, t.DueDate, t.Type)
	if _, ok := ix.ByContentHash[hash]; ok {
		return
	}
	ix.ByContentHash[hash] = t

	key := amountDateKey(t.Amount, t.DueDate, t.Type)
	ix.byAmountDate[key] = append(ix.byAmountDate[key], t)
}

// candidates returns the hash-indexed entries whose amount is within one
// cent of amount and whose due date and type match exactly. Three buckets
// (one cent below, exact, one cent above) cover the full tolerance.
func (ix *Index) candidates(amount decimal.Decimal, dueDate string, typ TransactionType) []*ExistingTransaction {
	base := amount.Abs().Round(2)
	var out []*ExistingTransaction
	for _, delta := range []decimal.Decimal{AmountTolerance.Neg(), decimal.Zero, AmountTolerance} {
		key := amountDateKey(base.Add(delta), dueDate, typ)
		out = append(out, ix.byAmountDate[key]...)
	}
	return out
}

func amountDateKey(amount decimal.Decimal, dueDate string, typ TransactionType) string {
	return amount.Abs().Round(2).StringFixed(2) + "|" + dueDate + "|" + Normalize(string(typ))
}
