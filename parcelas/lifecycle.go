/*
lifecycle.go - Installment and contract state transitions

INSTALLMENT STATE MACHINE:

    ABERTO  --Launch(valor, documento)-->  LANÇADO
    LANÇADO --Amend(valor?, documento?)--> LANÇADO
    LANÇADO --Revert()-->                  ABERTO
    ABERTO  --AddInstallments()-->         new ABERTO sibling(s)
    ANY     --DeleteInstallment()-->       removed

CONCURRENCY:
  Launch is a conditional update filtered by (id, status=ABERTO). Of two concurrent
  launches of the same row exactly one updates it; the other sees zero affected rows and
  gets ErrNoOpenInstallment. Nothing is read first.

CONTRACT OPERATIONS:
  SetSituacao, Renew and DeleteContract touch both tables. They run through
  table.Atomically so a failure on the second write rolls back (or compensates) the first.
  Installments are matched to their contract by name ("contrato" column), so installments
  generated under a previous name are not reached by these cascades.

SEE ALSO:
  - generation.go: CreateContract
  - errors.go: the errors returned here
*/
package parcelas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/table"
	"go.uber.org/zap"
)

// =============================================================================
// INSTALLMENT TRANSITIONS
// =============================================================================

// Launch marks an ABERTO installment as invoiced.
func (e *Engine) Launch(ctx context.Context, id int64, valor decimal.Decimal, documento string) (Installment, error) {
	inst, err := e.launch(ctx, id, valor, documento)
	return inst, e.finish("launch", err, zap.Int64("parcela_id", id))
}

func (e *Engine) launch(ctx context.Context, id int64, valor decimal.Decimal, documento string) (Installment, error) {
	documento = strings.TrimSpace(documento)
	// Validated after rounding: the cents are what get stored.
	valor = Money(valor)
	if !valor.IsPositive() {
		return Installment{}, invalid("valor", "must be at least 0.01")
	}
	if documento == "" {
		return Installment{}, invalid("documento", "required")
	}
	updated, err := Installments(e.store).Update(ctx,
		table.Row{
			"status":          string(StatusLaunched),
			"valor":           valor.InexactFloat64(),
			"documento":       documento,
			"data_lancamento": e.cal.Timestamp().Format(calendar.ISOLayout),
		},
		table.Filter{"id": id, "status": string(StatusOpen)},
	)
	if err != nil {
		return Installment{}, err
	}
	if len(updated) == 0 {
		return Installment{}, fmt.Errorf("launch %d: %w", id, ErrNoOpenInstallment)
	}
	return updated[0], nil
}

// Amendment changes the value and/or document of a launched installment.
type Amendment struct {
	Value    *decimal.Decimal
	Document *string
}

// Amend edits a LANÇADO installment without reopening it.
func (e *Engine) Amend(ctx context.Context, id int64, a Amendment) (Installment, error) {
	inst, err := e.amend(ctx, id, a)
	return inst, e.finish("amend", err, zap.Int64("parcela_id", id))
}

func (e *Engine) amend(ctx context.Context, id int64, a Amendment) (Installment, error) {
	patch := table.Row{}
	if a.Value != nil {
		valor := Money(*a.Value)
		if !valor.IsPositive() {
			return Installment{}, invalid("valor", "must be at least 0.01")
		}
		patch["valor"] = valor.InexactFloat64()
	}
	if a.Document != nil {
		doc := strings.TrimSpace(*a.Document)
		if doc == "" {
			return Installment{}, invalid("documento", "required")
		}
		patch["documento"] = doc
	}
	if len(patch) == 0 {
		return Installment{}, invalid("", "nothing to amend")
	}
	updated, err := Installments(e.store).Update(ctx, patch,
		table.Filter{"id": id, "status": string(StatusLaunched)})
	if err != nil {
		return Installment{}, err
	}
	if len(updated) == 0 {
		return Installment{}, fmt.Errorf("amend %d: %w", id, ErrNoLaunchedInstallment)
	}
	return updated[0], nil
}

// Revert returns an installment to ABERTO, clearing valor, documento and
// data_lancamento. Reverting an ABERTO row still writes.
func (e *Engine) Revert(ctx context.Context, id int64) (Installment, error) {
	inst, err := e.revert(ctx, id)
	return inst, e.finish("revert", err, zap.Int64("parcela_id", id))
}

func (e *Engine) revert(ctx context.Context, id int64) (Installment, error) {
	updated, err := Installments(e.store).Update(ctx,
		table.Row{
			"status":          string(StatusOpen),
			"valor":           nil,
			"documento":       nil,
			"data_lancamento": nil,
		},
		table.Filter{"id": id},
	)
	if err != nil {
		return Installment{}, err
	}
	if len(updated) == 0 {
		return Installment{}, fmt.Errorf("revert %d: %w", id, ErrInstallmentNotFound)
	}
	return updated[0], nil
}

// AddRequest describes new installments copied from an existing one.
type AddRequest struct {
	// Contract selects the latest ATIVO installment of that name as template.
	Contract string
	// TemplateID, when set, names the template installment directly.
	TemplateID int64
	// Period defaults to the current month.
	Period   calendar.Period
	Quantity int
}

// AddInstallments inserts Quantity ABERTO copies of a template installment for one period.
// Classification fields and contrato_id are copied; financial state never is.
func (e *Engine) AddInstallments(ctx context.Context, req AddRequest) ([]Installment, error) {
	added, err := e.addInstallments(ctx, req)
	return added, e.finish("add_installments", err,
		zap.String("contrato", req.Contract),
		zap.Int64("template_id", req.TemplateID),
		zap.Int("quantidade", len(added)))
}

func (e *Engine) addInstallments(ctx context.Context, req AddRequest) ([]Installment, error) {
	if req.Quantity < 1 {
		return nil, invalid("quantidade", "must be at least 1")
	}
	period := req.Period
	if period == (calendar.Period{}) {
		period = e.cal.CurrentPeriod()
	}
	if err := period.Validate(); err != nil {
		return nil, invalid("periodo", "%v", err)
	}
	name := strings.ToUpper(strings.TrimSpace(req.Contract))
	if name == "" && req.TemplateID == 0 {
		return nil, invalid("contrato", "required")
	}

	all, err := Installments(e.store).All(ctx)
	if err != nil {
		return nil, err
	}
	var template Installment
	if req.TemplateID > 0 {
		if template, err = FindInstallment(all, req.TemplateID); err != nil {
			return nil, err
		}
	} else {
		var ok bool
		if template, ok = latestActive(all, name); !ok {
			return nil, fmt.Errorf("%w: no active installment for %q", ErrContractNotFound, name)
		}
	}

	batch := make([]Installment, req.Quantity)
	for i := range batch {
		batch[i] = duplicate(template, period)
	}
	return Installments(e.store).InsertBatch(ctx, batch)
}

func duplicate(src Installment, p calendar.Period) Installment {
	issued := p.Start()
	return Installment{
		ContractID:      src.ContractID,
		Contract:        src.Contract,
		Year:            p.Year,
		Month:           p.Month,
		IssuedAt:        NewTimestamp(issued),
		DueAt:           NewTimestamp(calendar.AddMonths(issued, 1)),
		Tipo:            src.Tipo,
		Referente:       src.Referente,
		Classificacao:   src.Classificacao,
		Estabelecimento: src.Estabelecimento,
		Status:          StatusOpen,
		Situacao:        Active,
	}
}

// DeleteInstallment removes one installment.
func (e *Engine) DeleteInstallment(ctx context.Context, id int64) (Installment, error) {
	inst, err := e.deleteInstallment(ctx, id)
	return inst, e.finish("delete_installment", err, zap.Int64("parcela_id", id))
}

func (e *Engine) deleteInstallment(ctx context.Context, id int64) (Installment, error) {
	removed, err := Installments(e.store).Delete(ctx, table.Filter{"id": id})
	if err != nil {
		return Installment{}, err
	}
	if len(removed) == 0 {
		return Installment{}, fmt.Errorf("delete %d: %w", id, ErrInstallmentNotFound)
	}
	return removed[0], nil
}

// =============================================================================
// CONTRACT TRANSITIONS
// =============================================================================

// SituacaoChange reports a contract situacao update.
type SituacaoChange struct {
	Contract     Contract
	Installments int
}

// SetSituacao sets situacao on every contract with the target's name and on every
// installment carrying that name.
func (e *Engine) SetSituacao(ctx context.Context, id int64, s Situacao) (SituacaoChange, error) {
	change, err := e.setSituacao(ctx, id, &s)
	return change, e.finish("set_situacao", err,
		zap.Int64("contrato_id", id), zap.String("situacao", string(s)))
}

// ToggleSituacao flips ATIVO <-> INATIVO.
func (e *Engine) ToggleSituacao(ctx context.Context, id int64) (SituacaoChange, error) {
	change, err := e.setSituacao(ctx, id, nil)
	return change, e.finish("toggle_situacao", err,
		zap.Int64("contrato_id", id), zap.String("situacao", string(change.Contract.Situacao)))
}

func (e *Engine) setSituacao(ctx context.Context, id int64, target *Situacao) (SituacaoChange, error) {
	if target != nil && !target.Valid() {
		return SituacaoChange{}, invalid("situacao", "must be %s or %s", Active, Inactive)
	}
	all, err := Contracts(e.store).All(ctx)
	if err != nil {
		return SituacaoChange{}, err
	}
	c, err := FindContract(all, id)
	if err != nil {
		return SituacaoChange{}, err
	}
	next := c.Situacao.Toggle()
	if target != nil {
		next = *target
	}

	// Previous situacao of every contract sharing the name, for compensation.
	previous := map[int64]Situacao{}
	for _, other := range all {
		if other.Name == c.Name {
			previous[other.ID] = other.Situacao
		}
	}

	byName := table.Filter{"contrato": c.Name}
	var change SituacaoChange
	err = table.Atomically(ctx, e.store,
		table.Step{
			Name: "update contract situacao",
			Action: func(ctx context.Context, s table.Store) error {
				updated, err := Contracts(s).Update(ctx, table.Row{"situacao": string(next)}, byName)
				if err != nil {
					return err
				}
				for _, u := range updated {
					if u.ID == id {
						change.Contract = u
					}
				}
				if change.Contract.ID == 0 {
					return fmt.Errorf("contract %d: %w", id, ErrContractNotFound)
				}
				return nil
			},
			Compensate: func(ctx context.Context, s table.Store) error {
				for cid, prev := range previous {
					if _, err := Contracts(s).Update(ctx,
						table.Row{"situacao": string(prev)}, table.Filter{"id": cid}); err != nil {
						return err
					}
				}
				return nil
			},
		},
		table.Step{
			Name: "update installment situacao",
			Action: func(ctx context.Context, s table.Store) error {
				updated, err := Installments(s).Update(ctx, table.Row{"situacao": string(next)}, byName)
				change.Installments = len(updated)
				return err
			},
		},
	)
	if err != nil {
		return SituacaoChange{}, err
	}
	return change, nil
}

// Renewal defaults.
const (
	MinRenewalDays     = 30
	DefaultRenewalDays = 30
)

// Renew extends an expired contract to today + days and reactivates it together with
// its installments. Installment dates are left as they are.
func (e *Engine) Renew(ctx context.Context, id int64, days int) (Contract, error) {
	c, err := e.renew(ctx, id, days)
	return c, e.finish("renew", err, zap.Int64("contrato_id", id), zap.Int("dias", days))
}

func (e *Engine) renew(ctx context.Context, id int64, days int) (Contract, error) {
	if days == 0 {
		days = DefaultRenewalDays
	}
	if days < MinRenewalDays {
		return Contract{}, invalid("dias", "must be at least %d", MinRenewalDays)
	}
	c, err := Contracts(e.store).Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	today := e.cal.Today()
	if !c.Expired(today) {
		return Contract{}, fmt.Errorf("renew %d: %w", id, ErrNotRenewable)
	}

	var renewed Contract
	err = table.Atomically(ctx, e.store,
		table.Step{
			Name: "extend contract",
			Action: func(ctx context.Context, s table.Store) error {
				updated, err := Contracts(s).Update(ctx, table.Row{
					"termino":  calendar.AddDays(today, days).Format(calendar.ISOLayout),
					"situacao": string(Active),
				}, table.Filter{"id": id})
				if err != nil {
					return err
				}
				if len(updated) == 0 {
					return fmt.Errorf("contract %d: %w", id, ErrContractNotFound)
				}
				renewed = updated[0]
				return nil
			},
			Compensate: func(ctx context.Context, s table.Store) error {
				_, err := Contracts(s).Update(ctx, table.Row{
					"termino":  tsValue(c.End),
					"situacao": string(c.Situacao),
				}, table.Filter{"id": id})
				return err
			},
		},
		table.Step{
			Name: "reactivate installments",
			Action: func(ctx context.Context, s table.Store) error {
				_, err := Installments(s).Update(ctx,
					table.Row{"situacao": string(Active)}, table.Filter{"contrato": c.Name})
				return err
			},
		},
	)
	if err != nil {
		return Contract{}, err
	}
	return renewed, nil
}

// ContractEdit is a partial contract update; nil fields are left unchanged.
type ContractEdit struct {
	Name            *string
	Numero          *string
	CNPJ            *string
	Descricao       *string
	Anexos          *[]string
	Estabelecimento *string
	Classificacao   *string
	Conta           *float64
	CentroCusto     *float64
	Value           *decimal.Decimal
	Start           *time.Time
	DurationMonths  *int
}

// EditContract applies edit to the contract. When the start or duration changes,
// termino is recomputed; a missing duration is derived from the stored term.
// Existing installments are not touched.
func (e *Engine) EditContract(ctx context.Context, id int64, edit ContractEdit) (Contract, error) {
	c, err := e.editContract(ctx, id, edit)
	return c, e.finish("edit_contract", err, zap.Int64("contrato_id", id))
}

func (e *Engine) editContract(ctx context.Context, id int64, edit ContractEdit) (Contract, error) {
	patch := table.Row{}
	text := func(col string, v *string, required bool) error {
		if v == nil {
			return nil
		}
		s := strings.TrimSpace(*v)
		if required && s == "" {
			return invalid(col, "required")
		}
		patch[col] = s
		return nil
	}
	if edit.Name != nil {
		name := strings.ToUpper(strings.TrimSpace(*edit.Name))
		edit.Name = &name
	}
	for _, f := range []struct {
		col      string
		v        *string
		required bool
	}{
		{"contrato", edit.Name, true},
		{"numero", edit.Numero, true},
		{"cnpj", edit.CNPJ, false},
		{"descricao", edit.Descricao, false},
		{"estabelecimento", edit.Estabelecimento, true},
		{"classificacao", edit.Classificacao, true},
	} {
		if err := text(f.col, f.v, f.required); err != nil {
			return Contract{}, err
		}
	}
	if edit.Anexos != nil {
		patch["anexos"] = JoinAttachments(*edit.Anexos)
	}
	if edit.Conta != nil {
		patch["conta"] = FormatCode(*edit.Conta)
	}
	if edit.CentroCusto != nil {
		patch["centro_custo"] = FormatCode(*edit.CentroCusto)
	}
	if edit.Value != nil {
		if edit.Value.LessThan(MinContractValue) {
			return Contract{}, invalid("valor_contrato", "must be at least %s", MinContractValue.StringFixed(2))
		}
		patch["valor_contrato"] = Money(*edit.Value).InexactFloat64()
	}
	if edit.DurationMonths != nil {
		if err := validateDuration(*edit.DurationMonths); err != nil {
			return Contract{}, err
		}
	}

	current, err := Contracts(e.store).Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	if edit.Start != nil || edit.DurationMonths != nil {
		var start time.Time
		switch {
		case edit.Start != nil:
			start = calendar.Midnight(*edit.Start)
			patch["inicio"] = start.Format(calendar.ISOLayout)
		case current.Start != nil && !current.Start.IsZero():
			start = current.Start.Time
		}
		if !start.IsZero() {
			months := current.DurationMonths()
			if edit.DurationMonths != nil {
				months = *edit.DurationMonths
			}
			patch["termino"] = TermEnd(start, months).Format(calendar.ISOLayout)
		}
	}
	if len(patch) == 0 {
		return current, nil
	}

	updated, err := Contracts(e.store).Update(ctx, patch, table.Filter{"id": id})
	if err != nil {
		return Contract{}, err
	}
	if len(updated) == 0 {
		return Contract{}, fmt.Errorf("edit %d: %w", id, ErrContractNotFound)
	}
	return updated[0], nil
}

// ContractDeletion reports what DeleteContract removed.
type ContractDeletion struct {
	Contract     Contract
	Installments int
}

// DeleteContract removes the contract and every installment carrying its name.
func (e *Engine) DeleteContract(ctx context.Context, id int64) (ContractDeletion, error) {
	d, err := e.deleteContract(ctx, id)
	return d, e.finish("delete_contract", err,
		zap.Int64("contrato_id", id), zap.Int("parcelas", d.Installments))
}

func (e *Engine) deleteContract(ctx context.Context, id int64) (ContractDeletion, error) {
	c, err := Contracts(e.store).Get(ctx, id)
	if err != nil {
		return ContractDeletion{}, err
	}

	var removed []table.Row
	d := ContractDeletion{Contract: c}
	err = table.Atomically(ctx, e.store,
		table.Step{
			Name: "delete contract",
			Action: func(ctx context.Context, s table.Store) error {
				rows, err := Contracts(s).Delete(ctx, table.Filter{"id": id})
				if err != nil {
					return err
				}
				if len(rows) == 0 {
					return fmt.Errorf("contract %d: %w", id, ErrContractNotFound)
				}
				removed = rows
				return nil
			},
			Compensate: func(ctx context.Context, s table.Store) error {
				return Contracts(s).Restore(ctx, removed)
			},
		},
		table.Step{
			Name: "delete installments",
			Action: func(ctx context.Context, s table.Store) error {
				rows, err := Installments(s).Delete(ctx, table.Filter{"contrato": c.Name})
				d.Installments = len(rows)
				return err
			},
		},
	)
	if err != nil {
		return ContractDeletion{}, err
	}
	return d, nil
}
