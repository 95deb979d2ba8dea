/*
generation.go - Contract -> installment schedule

ALGORITHM:
  Given valor_contrato V, duration D >= 1 and start S (normalized to midnight):

    valor_parcela   = V / D, rounded to cents, remainder not redistributed
    termino         = S + D months - 1 day
    data_emissao_i  = S + i months              i in 0..D-1
    data_vencimento = data_emissao_i + 1 month
    ano, mes        = from data_emissao_i

  Month addition clamps to the end of the target month (Jan 31 + 1 month = Feb 28/29).

PERSISTENCE:
  CreateContract writes the contract then the installment batch as one atomic unit
  (table.Atomically): a transaction when the store has one, otherwise a saga whose
  compensation deletes the contract again.
*/
package parcelas

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/table"
	"go.uber.org/zap"
)

// MinContractValue is the smallest accepted valor_contrato.
var MinContractValue = decimal.NewFromInt(1)

// NewContract is the input of CreateContract.
type NewContract struct {
	Name            string
	Numero          string
	CNPJ            string
	Descricao       string
	Anexos          []string
	Estabelecimento string
	Classificacao   string
	Conta           float64
	CentroCusto     float64
	Value           decimal.Decimal
	DurationMonths  int

	// Start defaults to today when zero.
	Start time.Time
}

// Validate checks required fields before anything is written.
func (n NewContract) Validate() error {
	switch {
	case strings.TrimSpace(n.Name) == "":
		return invalid("contrato", "required")
	case strings.TrimSpace(n.Numero) == "":
		return invalid("numero", "required")
	case strings.TrimSpace(n.Estabelecimento) == "":
		return invalid("estabelecimento", "required")
	case strings.TrimSpace(n.Classificacao) == "":
		return invalid("classificacao", "required")
	case n.Value.LessThan(MinContractValue):
		return invalid("valor_contrato", "must be at least %s", MinContractValue.StringFixed(2))
	}
	return validateDuration(n.DurationMonths)
}

func validateDuration(months int) error {
	if months < 1 {
		return invalid("duracao", "duration must be ≥ 1 month")
	}
	return nil
}

// contract builds the row to insert; start is already normalized.
func (n NewContract) contract(start time.Time) Contract {
	return Contract{
		Numero:          strings.TrimSpace(n.Numero),
		Name:            strings.ToUpper(strings.TrimSpace(n.Name)),
		CNPJ:            strings.TrimSpace(n.CNPJ),
		Descricao:       strings.TrimSpace(n.Descricao),
		Anexos:          JoinAttachments(n.Anexos),
		Estabelecimento: strings.TrimSpace(n.Estabelecimento),
		Classificacao:   strings.TrimSpace(n.Classificacao),
		Conta:           FormatCode(n.Conta),
		CentroCusto:     FormatCode(n.CentroCusto),
		Value:           Money(n.Value),
		Start:           NewTimestamp(start),
		End:             NewTimestamp(TermEnd(start, n.DurationMonths)),
		Situacao:        Active,
	}
}

// TermEnd returns the inclusive last day of a term of months starting at start.
func TermEnd(start time.Time, months int) time.Time {
	return calendar.EndAfterMonths(calendar.Midnight(start), months)
}

// InstallmentValue is the even split of the contract value, rounded to cents.
func InstallmentValue(total decimal.Decimal, months int) decimal.Decimal {
	return Money(total.Div(decimal.NewFromInt(int64(months))))
}

// GenerateInstallments expands c into one ABERTO installment per month starting at start.
// When c has an id the installments reference it through contrato_id.
func GenerateInstallments(c Contract, durationMonths int, start time.Time) ([]Installment, error) {
	if err := validateDuration(durationMonths); err != nil {
		return nil, err
	}
	start = calendar.Midnight(start)
	value := InstallmentValue(c.Value, durationMonths)

	var contractID *int64
	if c.ID > 0 {
		id := c.ID
		contractID = &id
	}

	out := make([]Installment, durationMonths)
	for i := range out {
		issued := calendar.AddMonths(start, i)
		v := value
		out[i] = Installment{
			ContractID:      contractID,
			Contract:        c.Name,
			Year:            issued.Year(),
			Month:           int(issued.Month()),
			IssuedAt:        NewTimestamp(issued),
			DueAt:           NewTimestamp(calendar.AddMonths(issued, 1)),
			Tipo:            TipoContrato,
			Referente:       c.Classificacao,
			Classificacao:   c.Classificacao,
			Estabelecimento: c.Estabelecimento,
			Status:          StatusOpen,
			Value:           &v,
			Situacao:        Active,
		}
	}
	return out, nil
}

// CreateContract validates n, stores the contract and its generated installments.
func (e *Engine) CreateContract(ctx context.Context, n NewContract) (Contract, []Installment, error) {
	if err := n.Validate(); err != nil {
		return Contract{}, nil, e.finish("create_contract", err)
	}
	start := n.Start
	if start.IsZero() {
		start = e.cal.Today()
	}
	start = calendar.Midnight(start)
	draft := n.contract(start)
	planned, err := GenerateInstallments(draft, n.DurationMonths, start)
	if err != nil {
		return Contract{}, nil, e.finish("create_contract", err)
	}

	var created Contract
	var stored []Installment
	err = table.Atomically(ctx, e.store,
		table.Step{
			Name: "insert contract",
			Action: func(ctx context.Context, s table.Store) error {
				c, err := Contracts(s).Insert(ctx, draft)
				created = c
				return err
			},
			Compensate: func(ctx context.Context, s table.Store) error {
				_, err := Contracts(s).Delete(ctx, table.Filter{"id": created.ID})
				return err
			},
		},
		table.Step{
			Name: "insert installments",
			Action: func(ctx context.Context, s table.Store) error {
				id := created.ID
				for i := range planned {
					planned[i].ContractID = &id
				}
				rows, err := Installments(s).InsertBatch(ctx, planned)
				stored = rows
				return err
			},
		},
	)
	if err = e.finish("create_contract", err,
		zap.String("contrato", draft.Name),
		zap.Int64("contrato_id", created.ID),
		zap.Int("parcelas", len(stored))); err != nil {
		return Contract{}, nil, err
	}
	return created, stored, nil
}
