package dedup

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/shopspring/decimal"
)

// contentHashLen keeps external ids short enough for filter expressions
// while leaving ~119 bits of hash, plenty for per-tenant ledgers.
const contentHashLen = 20

// ContentHash returns a stable fingerprint of the fields that define a
// row's identity: normalized description, absolute amount rounded to two
// decimals, due date and normalized type. Rows a human would call "the
// same" (case, accents or whitespace aside) always hash identically;
// residual collisions are resolved by the decider's similarity fallback.
func ContentHash(description string, amount decimal.Decimal, dueDate string, typ TransactionType) string {
	tuple := fmt.Sprintf("%s|%s|%s|%s",
		Normalize(description),
		amount.Abs().Round(2).StringFixed(2),
		dueDate,
		Normalize(string(typ)),
	)

	sum := sha256.Sum256([]byte(tuple))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:contentHashLen]
}

// ExternalID derives the identifier that ties a persisted transaction back
// to a sheet row: "sheet_{first 8 chars of sheet id}_{content hash}". It is
// a function of row content, not row position, so reordering a sheet never
// changes it.
func ExternalID(sheetID, contentHash string) string {
	prefix := sheetID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("sheet_%s_%s", prefix, contentHash)
}
