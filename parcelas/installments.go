package parcelas

import (
	"context"
	"fmt"

	"github.com/warp/parcelas/table"
)

// InstallmentStore reads and writes the "parcelas" table.
type InstallmentStore struct {
	s table.Store
}

func Installments(s table.Store) InstallmentStore { return InstallmentStore{s: s} }

func (is InstallmentStore) All(ctx context.Context) ([]Installment, error) {
	rows, err := table.LoadAll(ctx, is.s, table.Installments)
	if err != nil {
		return nil, err
	}
	return InstallmentsFromRows(rows)
}

// InsertBatch stores every installment in one call.
func (is InstallmentStore) InsertBatch(ctx context.Context, batch []Installment) ([]Installment, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	rows := make([]table.Row, len(batch))
	for i, inst := range batch {
		rows[i] = inst.row()
	}
	stored, err := is.s.Insert(ctx, table.Installments, rows)
	if err != nil {
		return nil, err
	}
	return InstallmentsFromRows(stored)
}

func (is InstallmentStore) Update(ctx context.Context, patch table.Row, f table.Filter) ([]Installment, error) {
	rows, err := is.s.Update(ctx, table.Installments, patch, f)
	if err != nil {
		return nil, err
	}
	return InstallmentsFromRows(rows)
}

func (is InstallmentStore) Delete(ctx context.Context, f table.Filter) ([]Installment, error) {
	rows, err := is.s.Delete(ctx, table.Installments, f)
	if err != nil {
		return nil, err
	}
	return InstallmentsFromRows(rows)
}

// InstallmentsFromRows decodes store rows.
func InstallmentsFromRows(rows []table.Row) ([]Installment, error) {
	out := make([]Installment, 0, len(rows))
	for _, r := range rows {
		inst, err := installmentFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// FindInstallment returns the installment with id.
func FindInstallment(all []Installment, id int64) (Installment, error) {
	for _, inst := range all {
		if inst.ID == id {
			return inst, nil
		}
	}
	return Installment{}, fmt.Errorf("%w: id %d", ErrInstallmentNotFound, id)
}

// latestActive returns the highest-id ATIVO installment of the named contract.
func latestActive(all []Installment, name string) (Installment, bool) {
	var best Installment
	found := false
	for _, inst := range all {
		if inst.Contract != name || inst.Situacao != Active {
			continue
		}
		if !found || inst.ID > best.ID {
			best, found = inst, true
		}
	}
	return best, found
}
