/*
Package parcelas implements the contract and installment (parcela) lifecycle engine.

PURPOSE:
  A contract with a total value, a start date and a duration expands into one installment
  per month. Installments are then launched (invoiced), amended, reverted, duplicated or
  deleted; contracts are edited, activated/deactivated, renewed or deleted. This package
  owns those rules and keeps the contract and installment tables consistent.

KEY CONCEPTS IN THIS FILE (types.go):
  - Contract: a row of "contratos"
  - Installment: a row of "parcelas"
  - Status: ABERTO (open) / LANÇADO (launched, i.e. invoiced)
  - Situacao: ATIVO / INATIVO, the contract's in-force flag mirrored on its installments
  - Timestamp: dates as they are persisted (ISO-8601 without zone)

DESIGN NOTES:
  1. Money uses decimal.Decimal, rounded to cents on the way in.
  2. The installment's "contrato" column is a snapshot of the contract name taken at
     generation time. Renaming a contract does not rename its existing installments.
  3. Installments are independent records once generated: editing a contract's value or
     duration never regenerates them.

SEE ALSO:
  - generation.go: contract -> installment schedule
  - lifecycle.go: state transitions
  - filter.go: FilterState
*/
package parcelas

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/table"
)

// =============================================================================
// ENUMS
// =============================================================================

type Status string

const (
	StatusOpen     Status = "ABERTO"
	StatusLaunched Status = "LANÇADO"
)

type Situacao string

const (
	Active   Situacao = "ATIVO"
	Inactive Situacao = "INATIVO"
)

// Toggle returns the opposite situacao.
func (s Situacao) Toggle() Situacao {
	if s == Active {
		return Inactive
	}
	return Active
}

// Valid reports whether s is ATIVO or INATIVO.
func (s Situacao) Valid() bool { return s == Active || s == Inactive }

const (
	// TipoContrato is the default installment classification tag.
	TipoContrato = "CONTRATO"

	// NumeroPedido marks purchase orders instead of numbered contracts.
	NumeroPedido = "PEDIDO"

	// HCompanyPrefix marks contracts reported as a separate revenue stream.
	HCompanyPrefix = "HCOMPANY"
)

// IsHCompany reports whether a contract name belongs to the HCOMPANY stream.
func IsHCompany(name string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(name)), HCompanyPrefix)
}

// =============================================================================
// TIMESTAMP - persisted date/time
// =============================================================================

// Timestamp marshals as "2006-01-02T15:04:05" and accepts the layouts found in
// existing data (RFC3339, date only, dd/mm/yy HH:MM).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	calendar.ISOLayout,
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
	calendar.StampLayout,
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) *Timestamp { return &Timestamp{Time: t} }

// ParseTimestamp accepts any of the persisted layouts.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (ts Timestamp) String() string { return ts.Time.Format(calendar.ISOLayout) }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

func tsValue(ts *Timestamp) any {
	if ts == nil || ts.IsZero() {
		return nil
	}
	return ts.String()
}

// =============================================================================
// CONTRACT
// =============================================================================

// Contract is a recurring service agreement.
type Contract struct {
	ID              int64           `json:"id"`
	Numero          string          `json:"numero"`
	Name            string          `json:"contrato"`
	CNPJ            string          `json:"cnpj"`
	Descricao       string          `json:"descricao"`
	Anexos          string          `json:"anexos"`
	Estabelecimento string          `json:"estabelecimento"`
	Classificacao   string          `json:"classificacao"`
	Conta           string          `json:"conta"`
	CentroCusto     string          `json:"centro_custo"`
	Value           decimal.Decimal `json:"valor_contrato"`
	Start           *Timestamp      `json:"inicio"`
	End             *Timestamp      `json:"termino"`
	Situacao        Situacao        `json:"situacao"`
}

// IsPurchaseOrder reports whether the contract is a purchase order ("PEDIDO").
func (c Contract) IsPurchaseOrder() bool {
	return strings.EqualFold(strings.TrimSpace(c.Numero), NumeroPedido)
}

// Kind classifies the contract for the Contrato/Pedido filter.
func (c Contract) Kind() ContractKind {
	if c.IsPurchaseOrder() {
		return KindPurchaseOrder
	}
	return KindContract
}

// DurationMonths derives the term length from inicio/termino, minimum 1.
func (c Contract) DurationMonths() int {
	if c.Start == nil || c.End == nil || c.Start.IsZero() || c.End.IsZero() {
		return 1
	}
	months := calendar.MonthsBetween(c.Start.Time, calendar.AddDays(c.End.Time, 1))
	if months < 1 {
		return 1
	}
	return months
}

// Expired reports whether termino is strictly before today, comparing calendar dates.
// termino is stored without a zone while today comes from the local clock.
func (c Contract) Expired(today time.Time) bool {
	if c.End == nil || c.End.IsZero() {
		return false
	}
	return calendar.Date(c.End.Time).Before(calendar.Date(today))
}

func (c Contract) row() table.Row {
	r := table.Row{
		"numero":          c.Numero,
		"contrato":        c.Name,
		"cnpj":            c.CNPJ,
		"descricao":       c.Descricao,
		"anexos":          c.Anexos,
		"estabelecimento": c.Estabelecimento,
		"classificacao":   c.Classificacao,
		"conta":           c.Conta,
		"centro_custo":    c.CentroCusto,
		"valor_contrato":  c.Value.InexactFloat64(),
		"inicio":          tsValue(c.Start),
		"termino":         tsValue(c.End),
		"situacao":        string(c.Situacao),
	}
	if c.ID > 0 {
		r["id"] = c.ID
	}
	return r
}

// =============================================================================
// INSTALLMENT
// =============================================================================

// Installment is one billing-period record of a contract.
type Installment struct {
	ID              int64            `json:"id"`
	ContractID      *int64           `json:"contrato_id"`
	Contract        string           `json:"contrato"`
	Year            int              `json:"ano"`
	Month           int              `json:"mes"`
	IssuedAt        *Timestamp       `json:"data_emissao"`
	DueAt           *Timestamp       `json:"data_vencimento"`
	Tipo            string           `json:"tipo"`
	Referente       string           `json:"referente"`
	Classificacao   string           `json:"classificacao"`
	Estabelecimento string           `json:"estabelecimento"`
	Status          Status           `json:"status"`
	Value           *decimal.Decimal `json:"valor"`
	Document        *string          `json:"documento"`
	LaunchedAt      *Timestamp       `json:"data_lancamento"`
	Situacao        Situacao         `json:"situacao"`
}

// Period returns the billing period the installment covers.
func (i Installment) Period() calendar.Period {
	return calendar.Period{Year: i.Year, Month: i.Month}
}

// MonthName returns the pt-BR abbreviation of the installment month.
func (i Installment) MonthName() string { return calendar.MonthLabel(i.Month) }

// Amount returns valor, zero when null.
func (i Installment) Amount() decimal.Decimal {
	if i.Value == nil {
		return decimal.Zero
	}
	return *i.Value
}

func (i Installment) row() table.Row {
	r := table.Row{
		"contrato":        i.Contract,
		"ano":             int64(i.Year),
		"mes":             int64(i.Month),
		"data_emissao":    tsValue(i.IssuedAt),
		"data_vencimento": tsValue(i.DueAt),
		"tipo":            i.Tipo,
		"referente":       i.Referente,
		"classificacao":   i.Classificacao,
		"estabelecimento": i.Estabelecimento,
		"status":          string(i.Status),
		"valor":           nil,
		"documento":       nil,
		"data_lancamento": tsValue(i.LaunchedAt),
		"situacao":        string(i.Situacao),
		"contrato_id":     nil,
	}
	if i.ID > 0 {
		r["id"] = i.ID
	}
	if i.ContractID != nil {
		r["contrato_id"] = *i.ContractID
	}
	if i.Value != nil {
		r["valor"] = i.Value.InexactFloat64()
	}
	if i.Document != nil {
		r["documento"] = *i.Document
	}
	return r
}

// =============================================================================
// ROW DECODING
// =============================================================================

func decodeRow(r table.Row, v any) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func contractFromRow(r table.Row) (Contract, error) {
	var c Contract
	if err := decodeRow(r, &c); err != nil {
		return c, fmt.Errorf("decode contract %d: %w", r.ID(), err)
	}
	return c, nil
}

func installmentFromRow(r table.Row) (Installment, error) {
	var i Installment
	if err := decodeRow(r, &i); err != nil {
		return i, fmt.Errorf("decode installment %d: %w", r.ID(), err)
	}
	return i, nil
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// FormatCode renders account and cost-center codes as decimal strings:
// 12 -> "12.0", 1.5 -> "1.5".
func FormatCode(x float64) string {
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// AttachmentTags are the recognized "anexos" tags.
var AttachmentTags = []string{"NF", "BOL", "FAT"}

// JoinAttachments keeps known tags in canonical order, joined by " / ".
func JoinAttachments(tags []string) string {
	selected := make(map[string]bool, len(tags))
	for _, t := range tags {
		selected[strings.ToUpper(strings.TrimSpace(t))] = true
	}
	var out []string
	for _, t := range AttachmentTags {
		if selected[t] {
			out = append(out, t)
		}
	}
	return strings.Join(out, " / ")
}

// Money rounds a decimal to cents.
func Money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
