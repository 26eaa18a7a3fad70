package sync

import (
	"github.com/church/ekklesia/dedup"
	"github.com/church/ekklesia/sheet"
)

// Lookups resolves category and ministry names from sheet cells to record
// ids, keyed by normalized name. Unresolved names stay blank on the
// transaction; the relation is optional.
type Lookups struct {
	Categories map[string]string
	Ministries map[string]string
}

func (l Lookups) category(name string) string {
	return l.Categories[dedup.Normalize(name)]
}

func (l Lookups) ministry(name string) string {
	return l.Ministries[dedup.Normalize(name)]
}

// InsertOp is one pending transaction insert.
type InsertOp struct {
	Data       dedup.TransactionData
	ExternalID string
}

// UpdateOp is one pending update to an existing transaction.
type UpdateOp struct {
	Existing   *dedup.ExistingTransaction
	Changes    map[string]dedup.FieldChange
	Meaningful bool
}

// Plan is the reconciliation outcome for one fetched sheet, computed
// before any database writes.
type Plan struct {
	Inserts []InsertOp
	Updates []UpdateOp
	Stats   Stats
}

// buildPlan walks the table rows in source order, deciding each one
// against the live index. Pending inserts join the index immediately so
// duplicate rows within one sheet collapse to a single insert.
func buildPlan(table *sheet.Table, parser *sheet.Parser, sheetID string, ix *dedup.Index, lookups Lookups) *Plan {
	plan := &Plan{}
	pending := make(map[string]int) // external id -> index into plan.Inserts

	for i := 0; i < table.Len(); i++ {
		rowNum := i + 1

		row, err := parser.ParseRow(table, i)
		if err != nil {
			plan.Stats.Errors++
			plan.Stats.AddDetail(RowDetail{
				Row:         rowNum,
				Action:      "error",
				Description: rawDescription(table, parser.Mapping, i),
				Reason:      err.Error(),
			})
			continue
		}

		data := dedup.TransactionData{
			Description: row.Description,
			Amount:      row.Amount,
			Type:        row.Type,
			Status:      row.Status,
			DueDate:     row.DueDate,
			PaymentDate: row.PaymentDate,
			CategoryID:  lookups.category(row.CategoryName),
			MinistryID:  lookups.ministry(row.MinistryName),
			Notes:       row.Notes,
		}

		hash := dedup.ContentHash(data.Description, data.Amount, data.DueDate, data.Type)
		externalID := dedup.ExternalID(sheetID, hash)
		decision := dedup.Decide(data, externalID, hash, ix)

		switch decision.Action {
		case dedup.ActionInsert:
			plan.Inserts = append(plan.Inserts, InsertOp{Data: data, ExternalID: externalID})
			pending[externalID] = len(plan.Inserts) - 1
			plan.Stats.Inserted++
			plan.Stats.AddDetail(RowDetail{
				Row:         rowNum,
				Action:      string(dedup.ActionInsert),
				Description: data.Description,
				Reason:      decision.Reason,
			})
			ix.Add(&dedup.ExistingTransaction{
				ExternalID:      externalID,
				TransactionData: data,
			})

		case dedup.ActionUpdate:
			// A match against an earlier row of this same run has no
			// record id yet; fold the changes into the pending insert.
			if decision.Existing.ID == "" {
				if idx, ok := pending[decision.Existing.ExternalID]; ok {
					mergeChanges(&plan.Inserts[idx].Data, decision.Changes, data)
					decision.Existing.TransactionData = plan.Inserts[idx].Data
				}
				plan.Stats.Skipped++
				plan.Stats.AddDetail(RowDetail{
					Row:         rowNum,
					Action:      string(dedup.ActionSkip),
					Description: data.Description,
					Reason:      "merged into a row earlier in this sheet",
				})
				continue
			}

			meaningful := decision.Meaningful()
			plan.Updates = append(plan.Updates, UpdateOp{
				Existing:   decision.Existing,
				Changes:    decision.Changes,
				Meaningful: meaningful,
			})
			if meaningful {
				plan.Stats.Updated++
			} else {
				// An external_id-only rewrite keeps the ledger intact;
				// report the row as skipped.
				plan.Stats.Skipped++
			}
			plan.Stats.AddDetail(RowDetail{
				Row:         rowNum,
				Action:      string(dedup.ActionUpdate),
				Description: data.Description,
				Reason:      decision.Reason,
			})

		case dedup.ActionSkip:
			plan.Stats.Skipped++
			plan.Stats.AddDetail(RowDetail{
				Row:         rowNum,
				Action:      string(dedup.ActionSkip),
				Description: data.Description,
				Reason:      decision.Reason,
			})
		}
	}

	return plan
}

// rawDescription pulls the unparsed description cell for error details,
// so users can locate the offending row in their sheet.
func rawDescription(table *sheet.Table, mapping sheet.ColumnMapping, i int) string {
	raw, _ := table.Field(i, mapping[sheet.FieldDescription])
	return sheet.SanitizeText(raw)
}

// mergeChanges applies the changed fields of an incoming row onto pending
// insert data.
func mergeChanges(dst *dedup.TransactionData, changes map[string]dedup.FieldChange, incoming dedup.TransactionData) {
	for field := range changes {
		switch field {
		case dedup.FieldDescription:
			dst.Description = incoming.Description
		case dedup.FieldAmount:
			dst.Amount = incoming.Amount
		case dedup.FieldStatus:
			dst.Status = incoming.Status
		case dedup.FieldDueDate:
			dst.DueDate = incoming.DueDate
		case dedup.FieldPaymentDate:
			dst.PaymentDate = incoming.PaymentDate
		case dedup.FieldCategory:
			dst.CategoryID = incoming.CategoryID
		case dedup.FieldMinistry:
			dst.MinistryID = incoming.MinistryID
		case dedup.FieldNotes:
			dst.Notes = incoming.Notes
		}
	}
}
