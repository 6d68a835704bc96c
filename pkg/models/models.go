package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a statement entry
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
)

// ParseTransactionType normalizes a free-form type label. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case TransactionTypeCredit:
		return TransactionTypeCredit, true
	case TransactionTypeDebit:
		return TransactionTypeDebit, true
	}
	return "", false
}

// SourceOfWealth represents the primary source of funds detected on a statement
type SourceOfWealth string

const (
	SourceOfWealthSalary      SourceOfWealth = "Salary"
	SourceOfWealthBusiness    SourceOfWealth = "Business"
	SourceOfWealthInvestments SourceOfWealth = "Investments"
	SourceOfWealthInheritance SourceOfWealth = "Inheritance"
	SourceOfWealthUnknown     SourceOfWealth = "Unknown"
)

var sourcesOfWealth = []SourceOfWealth{
	SourceOfWealthSalary,
	SourceOfWealthBusiness,
	SourceOfWealthInvestments,
	SourceOfWealthInheritance,
	SourceOfWealthUnknown,
}

// ParseSourceOfWealth normalizes a label to one of the known sources.
// An empty label is Unknown.
func ParseSourceOfWealth(s string) (SourceOfWealth, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SourceOfWealthUnknown, true
	}
	for _, sow := range sourcesOfWealth {
		if strings.EqualFold(s, string(sow)) {
			return sow, true
		}
	}
	return SourceOfWealth(s), false
}

// Valid reports whether s is one of the known sources of wealth
func (s SourceOfWealth) Valid() bool {
	for _, sow := range sourcesOfWealth {
		if s == sow {
			return true
		}
	}
	return false
}

// UnmarshalJSON normalizes known labels and keeps unknown ones verbatim so
// that validation can report them.
func (s *SourceOfWealth) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = SourceOfWealthUnknown
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("source_of_wealth: %w", err)
	}
	*s, _ = ParseSourceOfWealth(raw)
	return nil
}

// Amounts outside these exponents are rejected. Comparing a decimal
// rescales it, so an extreme exponent costs time proportional to its size.
const (
	MaxAmountExponent = 15
	MinAmountExponent = -12
)

// AmountInRange reports whether d has an exponent that is safe to compare
func AmountInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp <= MaxAmountExponent && exp >= MinAmountExponent
}

// Transaction is one normalized statement entry
type Transaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`

	// Defect is set when the entry could not be normalized. Defective
	// entries are excluded from scoring.
	Defect string `json:"defect,omitempty"`
}

// Usable reports whether the transaction was normalized cleanly
func (t Transaction) Usable() bool {
	return t.Defect == ""
}

// IsCredit reports whether the transaction is a usable credit
func (t Transaction) IsCredit() bool {
	return t.Usable() && t.Type == TransactionTypeCredit
}

type rawTransaction struct {
	Date        json.RawMessage `json:"date"`
	Description json.RawMessage `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Type        json.RawMessage `json:"type"`
	Defect      string          `json:"defect"`
}

// UnmarshalJSON decodes a transaction leniently: a malformed field marks the
// entry defective instead of failing the record. A recorded defect is kept.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw rawTransaction
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Transaction{}
	var defects []string

	date, ok := parseText(raw.Date)
	if !ok {
		defects = append(defects, fmt.Sprintf("non-text date %s", raw.Date))
	}
	t.Date = date

	description, ok := parseText(raw.Description)
	if !ok {
		defects = append(defects, fmt.Sprintf("non-text description %s", raw.Description))
	}
	t.Description = description

	amount, err := parseAmount(raw.Amount)
	if err != nil {
		defects = append(defects, err.Error())
	} else {
		t.Amount = amount
	}

	var label string
	if len(raw.Type) > 0 {
		if err := json.Unmarshal(raw.Type, &label); err != nil {
			label = string(raw.Type)
		}
	}
	if typ, ok := ParseTransactionType(label); ok {
		t.Type = typ
	} else {
		defects = append(defects, fmt.Sprintf("unrecognized type %q", label))
	}

	t.Defect = strings.Join(defects, "; ")
	if raw.Defect != "" {
		t.Defect = raw.Defect
	}
	return nil
}

// parseText decodes a JSON string. Null or absent is empty; any other JSON
// value is returned as its raw text with ok false.
func parseText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return string(raw), false
	}
	return text, true
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("missing amount")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, fmt.Errorf("unparseable amount %s", raw)
		}
		text = strings.NewReplacer("$", "", ",", "", " ", "").Replace(text)
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", text)
	}
	if !AmountInRange(amount) {
		return decimal.Zero, fmt.Errorf("amount out of range %q", text)
	}
	return amount, nil
}

// FinancialExtraction holds the facts extracted from one bank statement
type FinancialExtraction struct {
	ClientName       string          `json:"client_name"`
	AccountNumber    string          `json:"account_number,omitempty"`
	StatementDate    string          `json:"statement_date,omitempty"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenditure decimal.Decimal `json:"total_expenditure"`
	SourceOfWealth   SourceOfWealth  `json:"source_of_wealth"`
	RiskFlags        []string        `json:"risk_flags"`
	Transactions     []Transaction   `json:"transactions"`
}

// DecodeExtraction decodes a JSON extraction record. Missing sequences
// decode as empty and a missing source of wealth as Unknown.
func DecodeExtraction(data []byte) (*FinancialExtraction, error) {
	var ext FinancialExtraction
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	if !AmountInRange(ext.TotalIncome) {
		return nil, fmt.Errorf("decode extraction: total_income out of range")
	}
	if !AmountInRange(ext.TotalExpenditure) {
		return nil, fmt.Errorf("decode extraction: total_expenditure out of range")
	}
	if ext.SourceOfWealth == "" {
		ext.SourceOfWealth = SourceOfWealthUnknown
	}
	if ext.RiskFlags == nil {
		ext.RiskFlags = []string{}
	}
	if ext.Transactions == nil {
		ext.Transactions = []Transaction{}
	}
	return &ext, nil
}
