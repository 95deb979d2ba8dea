package parcelas

import (
	"context"
	"fmt"

	"github.com/warp/parcelas/table"
)

// ContractStore reads and writes the "contratos" table through a table.Store.
// It is bound to whatever Store it is built from, so a ContractStore created from a
// transaction view writes inside that transaction.
type ContractStore struct {
	s table.Store
}

func Contracts(s table.Store) ContractStore { return ContractStore{s: s} }

// All pages through the whole table.
func (cs ContractStore) All(ctx context.Context) ([]Contract, error) {
	rows, err := table.LoadAll(ctx, cs.s, table.Contracts)
	if err != nil {
		return nil, err
	}
	return ContractsFromRows(rows)
}

// Get scans for id.
func (cs ContractStore) Get(ctx context.Context, id int64) (Contract, error) {
	all, err := cs.All(ctx)
	if err != nil {
		return Contract{}, err
	}
	return FindContract(all, id)
}

// Insert stores c and returns it with its assigned id.
func (cs ContractStore) Insert(ctx context.Context, c Contract) (Contract, error) {
	rows, err := cs.s.Insert(ctx, table.Contracts, []table.Row{c.row()})
	if err != nil {
		return Contract{}, err
	}
	if len(rows) != 1 {
		return Contract{}, fmt.Errorf("insert contract: store returned %d rows", len(rows))
	}
	return contractFromRow(rows[0])
}

// Restore re-inserts previously deleted rows with their original ids.
func (cs ContractStore) Restore(ctx context.Context, rows []table.Row) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := cs.s.Insert(ctx, table.Contracts, rows)
	return err
}

func (cs ContractStore) Update(ctx context.Context, patch table.Row, f table.Filter) ([]Contract, error) {
	rows, err := cs.s.Update(ctx, table.Contracts, patch, f)
	if err != nil {
		return nil, err
	}
	return ContractsFromRows(rows)
}

// Delete returns the raw removed rows so they can be restored.
func (cs ContractStore) Delete(ctx context.Context, f table.Filter) ([]table.Row, error) {
	return cs.s.Delete(ctx, table.Contracts, f)
}

// ContractsFromRows decodes store rows.
func ContractsFromRows(rows []table.Row) ([]Contract, error) {
	out := make([]Contract, 0, len(rows))
	for _, r := range rows {
		c, err := contractFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// FindContract returns the contract with id.
func FindContract(all []Contract, id int64) (Contract, error) {
	for _, c := range all {
		if c.ID == id {
			return c, nil
		}
	}
	return Contract{}, fmt.Errorf("%w: id %d", ErrContractNotFound, id)
}
