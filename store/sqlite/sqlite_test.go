package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/parcelas"
	"github.com/warp/parcelas/store/sqlite"
	"github.com/warp/parcelas/table"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTripsRows(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	inserted, err := s.Insert(ctx, table.Installments, []table.Row{
		{"contrato": "ACME", "ano": 2025, "mes": 1, "status": "ABERTO", "valor": 100.5, "data_emissao": "2025-01-01T00:00:00"},
		{"contrato": "ACME", "ano": 2025, "mes": 2, "status": "ABERTO", "valor": nil},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.Equal(t, int64(1), inserted[0].ID())
	assert.Equal(t, "ACME", inserted[0]["contrato"])
	assert.Equal(t, int64(2025), inserted[0]["ano"])
	assert.Equal(t, 100.5, inserted[0]["valor"])
	assert.Equal(t, "2025-01-01T00:00:00", inserted[0]["data_emissao"])
	assert.Nil(t, inserted[1]["valor"])
	assert.Equal(t, "ATIVO", inserted[1]["situacao"], "schema default")

	page, err := s.Select(ctx, table.Installments, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].ID())
}

func TestStore_ConditionalUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.Insert(ctx, table.Installments, []table.Row{{"contrato": "ACME", "status": "ABERTO"}})
	require.NoError(t, err)

	updated, err := s.Update(ctx, table.Installments, table.Row{"status": "LANÇADO"}, table.Filter{"id": 1, "status": "ABERTO"})
	require.NoError(t, err)
	assert.Len(t, updated, 1)

	updated, err = s.Update(ctx, table.Installments, table.Row{"status": "LANÇADO"}, table.Filter{"id": 1, "status": "ABERTO"})
	require.NoError(t, err)
	assert.Empty(t, updated)

	removed, err := s.Delete(ctx, table.Installments, table.Filter{"contrato": "ACME"})
	require.NoError(t, err)
	assert.Len(t, removed, 1)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.WithTx(ctx, func(tx table.Store) error {
		if _, err := tx.Insert(ctx, table.Contracts, []table.Row{{"contrato": "ACME"}}); err != nil {
			return err
		}
		rows, err := tx.Select(ctx, table.Contracts, 0, 10)
		require.NoError(t, err)
		assert.Len(t, rows, 1, "reads inside the transaction see its writes")
		return errors.New("abort")
	})
	require.Error(t, err)

	rows, err := table.LoadAll(ctx, s, table.Contracts)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_StoreErrorsCarryOperation(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Close())

	_, err := s.Select(context.Background(), table.Contracts, 0, 10)
	var storeErr *table.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "select", storeErr.Op)
	assert.Equal(t, table.Contracts, storeErr.Table)
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestEngine_ExampleScenarioOnSQLite(t *testing.T) {
	// GIVEN: ACME, 1200.00 over 12 months from 2025-01-01, stored in SQLite
	// WHEN: launching #1 twice
	// THEN: 12 installments of 100.00; the second launch reports no open installment
	ctx := context.Background()
	now := time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)
	e := parcelas.NewEngine(newStore(t), parcelas.Options{Calendar: calendar.Fixed(now)})

	c, insts, err := e.CreateContract(ctx, parcelas.NewContract{
		Name: "ACME", Numero: "1", Estabelecimento: "MATRIZ", Classificacao: "LINK",
		Value: decimal.RequireFromString("1200.00"), DurationMonths: 12,
		Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31", c.End.Format("2006-01-02"))
	require.Len(t, insts, 12)
	for _, inst := range insts {
		assert.Equal(t, "100.00", inst.Amount().StringFixed(2))
		assert.Equal(t, c.ID, *inst.ContractID)
	}

	_, err = e.Launch(ctx, insts[0].ID, decimal.RequireFromString("100.00"), "NF123")
	require.NoError(t, err)
	_, err = e.Launch(ctx, insts[0].ID, decimal.RequireFromString("90.00"), "NF999")
	assert.ErrorIs(t, err, parcelas.ErrNoOpenInstallment)

	all, err := e.Installments(ctx)
	require.NoError(t, err)
	assert.Equal(t, parcelas.StatusLaunched, all[0].Status)
	assert.Equal(t, "NF123", *all[0].Document)
	assert.Equal(t, "2025-06-15T09:00:00", all[0].LaunchedAt.String())
}

func TestEngine_ConcurrentLaunchOnSQLite(t *testing.T) {
	ctx := context.Background()
	e := parcelas.NewEngine(newStore(t), parcelas.Options{})
	_, insts, err := e.CreateContract(ctx, parcelas.NewContract{
		Name: "ACME", Numero: "1", Estabelecimento: "MATRIZ", Classificacao: "LINK",
		Value: decimal.NewFromInt(300), DurationMonths: 3,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Launch(ctx, insts[0].ID, decimal.NewFromInt(100), "NF")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, parcelas.ErrNoOpenInstallment)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestEngine_DeleteContractInTransaction(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := parcelas.NewEngine(s, parcelas.Options{})
	c, _, err := e.CreateContract(ctx, parcelas.NewContract{
		Name: "ACME", Numero: "1", Estabelecimento: "MATRIZ", Classificacao: "LINK",
		Value: decimal.NewFromInt(300), DurationMonths: 3,
	})
	require.NoError(t, err)

	d, err := e.DeleteContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Installments)

	rows, err := table.LoadAll(ctx, s, table.Installments)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
