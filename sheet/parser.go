package sheet

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/church/ekklesia/dedup"
)

// Mapping field names an integration's column mapping may bind to header
// labels. Description and amount are required; the rest are optional.
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldType        = "type"
	FieldStatus      = "status"
	FieldDueDate     = "due_date"
	FieldPaymentDate = "payment_date"
	FieldCategory    = "category"
	FieldMinistry    = "ministry"
	FieldNotes       = "notes"
)

// maxTextLen caps free-text fields to bound storage and downstream
// rendering.
const maxTextLen = 500

// minDescriptionLen is the shortest description accepted after trimming.
const minDescriptionLen = 2

// ColumnMapping binds canonical field names to the sheet's header labels.
// It comes from tenant configuration on the integration record.
type ColumnMapping map[string]string

// Validate checks that the required fields are mapped and that the mapped
// headers exist in the table.
func (m ColumnMapping) Validate(t *Table) error {
	for _, field := range []string{FieldDescription, FieldAmount} {
		label, ok := m[field]
		if !ok || strings.TrimSpace(label) == "" {
			return fmt.Errorf("column mapping is missing the %q field", field)
		}
		if !t.HasColumn(label) {
			return fmt.Errorf("mapped column %q for field %q not found in sheet", label, field)
		}
	}
	return nil
}

// ParsedRow is one sheet row converted to typed values. Category and
// ministry are still names here; the sync layer resolves them to record ids
// per tenant.
type ParsedRow struct {
	Description  string
	Amount       decimal.Decimal
	Type         dedup.TransactionType
	Status       dedup.TransactionStatus
	DueDate      string
	PaymentDate  string
	CategoryName string
	MinistryName string
	Notes        string
}

// Parser converts table rows to ParsedRows. Today anchors the overdue
// check; injecting it keeps status inference testable.
type Parser struct {
	Mapping ColumnMapping
	Today   time.Time
}

// ParseRow extracts and validates data row i of the table. Validation
// failures (blank description, non-positive amount) return an error; such
// rows are counted by the caller and never reach the decider.
func (p *Parser) ParseRow(t *Table, i int) (*ParsedRow, error) {
	field := func(name string) string {
		label, ok := p.Mapping[name]
		if !ok {
			return ""
		}
		value, _ := t.Field(i, label)
		return value
	}

	description := SanitizeText(field(FieldDescription))
	if len([]rune(description)) < minDescriptionLen {
		return nil, fmt.Errorf("description too short: %q", description)
	}

	amount := ParseAmount(field(FieldAmount))
	if !amount.IsPositive() {
		return nil, fmt.Errorf("invalid amount: %q", field(FieldAmount))
	}

	typ := ParseType(field(FieldType))

	dueDate := ParseDate(field(FieldDueDate))
	if typ == dedup.TypeRevenue {
		// Revenue has no due date; the ledger treats it as settled income.
		dueDate = ""
	}
	paymentDate := ParseDate(field(FieldPaymentDate))

	status := ResolveStatus(typ, paymentDate, field(FieldStatus), dueDate, p.Today)

	return &ParsedRow{
		Description:  description,
		Amount:       amount,
		Type:         typ,
		Status:       status,
		DueDate:      dueDate,
		PaymentDate:  paymentDate,
		CategoryName: strings.TrimSpace(field(FieldCategory)),
		MinistryName: strings.TrimSpace(field(FieldMinistry)),
		Notes:        SanitizeText(field(FieldNotes)),
	}, nil
}

var (
	htmlTagPattern  = regexp.MustCompile(`<[^>]*>`)
	currencyPattern = regexp.MustCompile(`(?i)(r\$|us\$|\$|\s)`)
	thousandsDot    = regexp.MustCompile(`\.\d{3}`)
	gvizDatePattern = regexp.MustCompile(`^Date\((\d{1,4}),\s*(\d{1,2}),\s*(\d{1,2})`)
)

// SanitizeText strips HTML-like tags and angle brackets from free text,
// trims it and caps the length.
func SanitizeText(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > maxTextLen {
		s = strings.TrimSpace(string(runes[:maxTextLen]))
	}
	return s
}

// ParseAmount parses a currency cell in the Brazilian formats the source
// sheets use: "R$ 1.234,56", "1234,56", "1234.56". The sign is dropped
// (direction lives in the type field). Unparseable input yields zero,
// which row validation then rejects.
func ParseAmount(raw string) decimal.Decimal {
	s := currencyPattern.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero
	}

	if strings.Contains(s, ",") {
		if thousandsDot.MatchString(s) {
			// "1.234,56": dots are thousands separators.
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return amount.Abs().Round(2)
}

// ParseDate parses a date cell into an ISO date string. Accepted forms:
// DD/MM/YYYY, ISO dates with or without a time component, and the gviz
// serialized literal Date(year, month0, day) whose month is zero-indexed.
// Anything else yields the empty string.
func ParseDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := gvizDatePattern.FindStringSubmatch(s); m != nil {
		var year, month0, day int
		fmt.Sscanf(m[1], "%d", &year)
		fmt.Sscanf(m[2], "%d", &month0)
		fmt.Sscanf(m[3], "%d", &day)
		t := time.Date(year, time.Month(month0+1), day, 0, 0, 0, 0, time.UTC)
		// Reject nonsense like Date(2024,13,40) that time.Date normalizes.
		if int(t.Month()) != month0+1 || t.Day() != day {
			return ""
		}
		return t.Format("2006-01-02")
	}

	if t, err := time.Parse("02/01/2006", s); err == nil {
		return t.Format("2006-01-02")
	}

	// ISO, optionally with a time component: keep the date part only.
	datePart := s
	if idx := strings.IndexAny(datePart, "T "); idx > 0 {
		datePart = datePart[:idx]
	}
	if t, err := time.Parse("2006-01-02", datePart); err == nil {
		return t.Format("2006-01-02")
	}

	return ""
}

// ParseType maps a type cell to revenue or expense. Anything that is not
// recognizably revenue is an expense, matching how the source sheets label
// the column ("Receita" / "Despesa").
func ParseType(raw string) dedup.TransactionType {
	norm := dedup.Normalize(raw)
	if strings.Contains(norm, "receita") || strings.Contains(norm, "revenue") {
		return dedup.TypeRevenue
	}
	return dedup.TypeExpense
}

// paidSynonyms and overdueSynonyms are the raw status spellings treasurers
// actually type; matched as prefixes on the normalized text.
var (
	paidSynonyms    = []string{"pago", "paga", "quitado", "quitada", "realizado", "realizada", "recebido", "recebida"}
	overdueSynonyms = []string{"vencid", "atrasad"}
)

// ResolveStatus applies the settlement rules to one row:
//
//   - revenue is always paid, regardless of the raw status or dates; the
//     product treats revenue entries as settled on arrival
//   - an expense with a payment date is paid
//   - otherwise the raw status text decides, via paid/overdue synonyms
//   - with no raw status, an expense past its due date is overdue
//   - everything else is pending
func ResolveStatus(
	typ dedup.TransactionType,
	paymentDate string,
	rawStatus string,
	dueDate string,
	today time.Time,
) dedup.TransactionStatus {
	if typ == dedup.TypeRevenue {
		return dedup.StatusPaid
	}

	if paymentDate != "" {
		return dedup.StatusPaid
	}

	norm := dedup.Normalize(rawStatus)
	if norm != "" {
		for _, syn := range paidSynonyms {
			if strings.HasPrefix(norm, syn) {
				return dedup.StatusPaid
			}
		}
		for _, syn := range overdueSynonyms {
			if strings.HasPrefix(norm, syn) {
				return dedup.StatusOverdue
			}
		}
		return dedup.StatusPending
	}

	if dueDate != "" {
		if due, err := time.Parse("2006-01-02", dueDate); err == nil {
			if due.Before(today.UTC().Truncate(24 * time.Hour)) {
				return dedup.StatusOverdue
			}
		}
	}

	return dedup.StatusPending
}
