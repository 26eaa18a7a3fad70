package dedup

import "fmt"

// SimilarityThreshold is the minimum description similarity for the fuzzy
// fallback to treat two rows as the same transaction. Kept at 0.90 for
// compatibility with existing ledgers.
const SimilarityThreshold = 0.90

// Action is the outcome of reconciling one incoming row.
type Action string

// Decision actions.
const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Decision is what the decider resolved for one incoming row. Existing and
// Changes are set for updates; Existing alone for skips that matched a
// record; both are empty for inserts.
type Decision struct {
	Action   Action
	Existing *ExistingTransaction
	Changes  map[string]FieldChange
	Reason   string
}

// Meaningful reports whether an update changes anything a user would see.
// Rewriting only the external_id (migrating a legacy record onto the
// current id scheme) is bookkeeping, not a data change.
func (d Decision) Meaningful() bool {
	if d.Action != ActionUpdate {
		return false
	}
	for field := range d.Changes {
		if field != FieldExternalID {
			return true
		}
	}
	return false
}

// Decide reconciles one incoming row against the index. Priority order,
// first match wins:
//
//  1. exact external-id match: diff and update, or skip when unchanged
//  2. content-hash match: update, rewriting external_id onto the current
//     scheme so the next sync hits case 1
//  3. fuzzy fallback: same amount (within a cent), due date and type, and
//     description similarity >= SimilarityThreshold: skip as near-duplicate
//  4. no match: insert
func Decide(incoming TransactionData, externalID, contentHash string, ix *Index) Decision {
	if existing, ok := ix.ByExternalID[externalID]; ok {
		changes := DetectChanges(incoming, existing)
		if len(changes) == 0 {
			return Decision{
				Action:   ActionSkip,
				Existing: existing,
				Reason:   "already exists with same data",
			}
		}
		return Decision{
			Action:   ActionUpdate,
			Existing: existing,
			Changes:  changes,
			Reason:   "data changed since last sync",
		}
	}

	if existing, ok := ix.ByContentHash[contentHash]; ok {
		changes := DetectChanges(incoming, existing)
		if existing.ExternalID != externalID {
			changes[FieldExternalID] = FieldChange{Old: existing.ExternalID, New: externalID}
		}
		return Decision{
			Action:   ActionUpdate,
			Existing: existing,
			Changes:  changes,
			Reason:   "found by content hash, updating external_id",
		}
	}

	for _, existing := range ix.candidates(incoming.Amount, incoming.DueDate, incoming.Type) {
		similarity := CalculateSimilarity(incoming.Description, existing.Description)
		if similarity >= SimilarityThreshold {
			return Decision{
				Action:   ActionSkip,
				Existing: existing,
				Reason:   fmt.Sprintf("similar to existing transaction (%.0f%% match)", similarity*100),
			}
		}
	}

	return Decision{Action: ActionInsert, Reason: "new transaction"}
}
