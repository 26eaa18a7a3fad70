package dedup

import "strings"

// FieldChange records an old/new value pair for one field of an update.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Change map keys. They match the transaction collection's field names so
// the sync loop can apply a diff directly to a record.
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldDueDate     = "due_date"
	FieldPaymentDate = "payment_date"
	FieldStatus      = "status"
	FieldCategory    = "category"
	FieldMinistry    = "ministry"
	FieldNotes       = "notes"
	FieldExternalID  = "external_id"
)

// DetectChanges computes the field-level diff between an incoming row and
// the persisted record it matched. Descriptions and notes are compared
// case- and accent-insensitively, amounts within one cent, status
// case-insensitively.
//
// Blank incoming values for the optional fields (category, ministry, notes)
// never produce a change: a sheet that omits a column must not erase data
// entered through the application.
func DetectChanges(incoming TransactionData, existing *ExistingTransaction) map[string]FieldChange {
	changes := make(map[string]FieldChange)

	if Normalize(incoming.Description) != Normalize(existing.Description) {
		changes[FieldDescription] = FieldChange{Old: existing.Description, New: incoming.Description}
	}

	if !AmountsEqual(incoming.Amount, existing.Amount) {
		changes[FieldAmount] = FieldChange{
			Old: existing.Amount.StringFixed(2),
			New: incoming.Amount.StringFixed(2),
		}
	}

	if incoming.DueDate != existing.DueDate {
		changes[FieldDueDate] = FieldChange{Old: existing.DueDate, New: incoming.DueDate}
	}

	if incoming.PaymentDate != existing.PaymentDate {
		changes[FieldPaymentDate] = FieldChange{Old: existing.PaymentDate, New: incoming.PaymentDate}
	}

	if !strings.EqualFold(string(incoming.Status), string(existing.Status)) {
		changes[FieldStatus] = FieldChange{Old: string(existing.Status), New: string(incoming.Status)}
	}

	if incoming.CategoryID != "" && incoming.CategoryID != existing.CategoryID {
		changes[FieldCategory] = FieldChange{Old: existing.CategoryID, New: incoming.CategoryID}
	}

	if incoming.MinistryID != "" && incoming.MinistryID != existing.MinistryID {
		changes[FieldMinistry] = FieldChange{Old: existing.MinistryID, New: incoming.MinistryID}
	}

	if incoming.Notes != "" && Normalize(incoming.Notes) != Normalize(existing.Notes) {
		changes[FieldNotes] = FieldChange{Old: existing.Notes, New: incoming.Notes}
	}

	return changes
}
