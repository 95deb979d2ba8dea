package parcelas_test

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
	"github.com/warp/parcelas/table"
	"github.com/warp/parcelas/table/memory"
)

func installmentByID(t *testing.T, e *parcelas.Engine, id int64) parcelas.Installment {
	t.Helper()
	all, err := e.Installments(context.Background())
	require.NoError(t, err)
	inst, err := parcelas.FindInstallment(all, id)
	require.NoError(t, err)
	return inst
}

func installmentsOf(t *testing.T, e *parcelas.Engine, name string) []parcelas.Installment {
	t.Helper()
	all, err := e.Installments(context.Background())
	require.NoError(t, err)
	return parcelas.FilterState{Contracts: []string{name}}.Apply(all)
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// LAUNCH
// =============================================================================

func TestLaunch_ExampleScenario(t *testing.T) {
	// GIVEN: ACME with 12 open installments
	// WHEN: launching #1 and then launching it again with other values
	// THEN: the first succeeds, the second affects nothing and reports no open installment
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	_, insts := createContract(t, e, acme())
	first := insts[0]

	// Warm the cache so the assertion below proves invalidation.
	_, err := e.Installments(ctx)
	require.NoError(t, err)

	launched, err := e.Launch(ctx, first.ID, money("100.00"), " NF123 ")
	require.NoError(t, err)
	assert.Equal(t, parcelas.StatusLaunched, launched.Status)
	require.NotNil(t, launched.Document)
	assert.Equal(t, "NF123", *launched.Document)
	require.NotNil(t, launched.LaunchedAt)
	assert.True(t, testNow.Equal(launched.LaunchedAt.Time))

	_, err = e.Launch(ctx, first.ID, money("150.00"), "NF999")
	require.ErrorIs(t, err, parcelas.ErrNoOpenInstallment)
	assert.True(t, parcelas.IsConflict(err))

	current := installmentByID(t, e, first.ID)
	assert.Equal(t, parcelas.StatusLaunched, current.Status)
	assert.Equal(t, "100.00", current.Amount().StringFixed(2))
	assert.Equal(t, "NF123", *current.Document)
}

func TestLaunch_Validation(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewTxMemory()
	e := newTestEngine(mem)
	_, insts := createContract(t, e, acme())

	_, err := e.Launch(ctx, insts[0].ID, decimal.Zero, "NF1")
	assert.ErrorIs(t, err, parcelas.ErrValidation)

	_, err = e.Launch(ctx, insts[0].ID, money("-5"), "NF1")
	assert.ErrorIs(t, err, parcelas.ErrValidation)

	_, err = e.Launch(ctx, insts[0].ID, money("10"), "   ")
	assert.ErrorIs(t, err, parcelas.ErrValidation)

	assert.Equal(t, parcelas.StatusOpen, installmentByID(t, e, insts[0].ID).Status)
}

func TestLaunch_ValueRoundingToZeroIsRejected(t *testing.T) {
	// GIVEN: an open installment and a launched one
	// WHEN: launching or amending with a value under half a cent
	// THEN: validation fails and neither row changes
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	_, insts := createContract(t, e, acme())

	_, err := e.Launch(ctx, insts[0].ID, money("0.004"), "NF1")
	require.ErrorIs(t, err, parcelas.ErrValidation)
	open := installmentByID(t, e, insts[0].ID)
	assert.Equal(t, parcelas.StatusOpen, open.Status)
	assert.Nil(t, open.Document)

	_, err = e.Launch(ctx, insts[1].ID, money("0.005"), "NF2")
	require.NoError(t, err)
	assert.Equal(t, "0.01", installmentByID(t, e, insts[1].ID).Amount().StringFixed(2))

	_, err = e.Amend(ctx, insts[1].ID, parcelas.Amendment{Value: ptr(money("0.004"))})
	require.ErrorIs(t, err, parcelas.ErrValidation)
	assert.Equal(t, "0.01", installmentByID(t, e, insts[1].ID).Amount().StringFixed(2))
}

func TestLaunch_UnknownInstallment(t *testing.T) {
	e := newTestEngine(memory.NewTxMemory())
	_, err := e.Launch(context.Background(), 404, money("1"), "NF")
	assert.ErrorIs(t, err, parcelas.ErrNoOpenInstallment)
}

func TestLaunch_ConcurrentLaunchesPostOnce(t *testing.T) {
	// GIVEN: one open installment
	// WHEN: two callers launch it at the same time
	// THEN: exactly one succeeds; the other gets ErrNoOpenInstallment
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	_, insts := createContract(t, e, acme())
	id := insts[3].ID

	for round := 0; round < 20; round++ {
		_, err := e.Revert(ctx, id)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = e.Launch(ctx, id, money("100"), "NF-"+string(rune('A'+i)))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, parcelas.ErrNoOpenInstallment)
		}
		assert.Equal(t, 1, succeeded)
	}
}

// =============================================================================
// AMEND / REVERT
// =============================================================================

func TestAmend_OnlyLaunchedRows(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	_, insts := createContract(t, e, acme())
	id := insts[0].ID

	_, err := e.Amend(ctx, id, parcelas.Amendment{Document: ptr("NF2")})
	require.ErrorIs(t, err, parcelas.ErrNoLaunchedInstallment)

	_, err = e.Launch(ctx, id, money("100"), "NF1")
	require.NoError(t, err)

	amended, err := e.Amend(ctx, id, parcelas.Amendment{Value: ptr(money("99.5")), Document: ptr("NF2")})
	require.NoError(t, err)
	assert.Equal(t, parcelas.StatusLaunched, amended.Status)
	assert.Equal(t, "99.50", amended.Amount().StringFixed(2))
	assert.Equal(t, "NF2", *amended.Document)
	assert.NotNil(t, amended.LaunchedAt)

	_, err = e.Amend(ctx, id, parcelas.Amendment{})
	assert.ErrorIs(t, err, parcelas.ErrValidation)
	_, err = e.Amend(ctx, id, parcelas.Amendment{Document: ptr(" ")})
	assert.ErrorIs(t, err, parcelas.ErrValidation)
}

func TestRevert_IsInverseOfLaunch(t *testing.T) {
	// GIVEN: installments launched with arbitrary values and documents
	// WHEN: reverting
	// THEN: valor, documento, data_lancamento are null and status is ABERTO
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	_, insts := createContract(t, e, acme())

	launches := []struct {
		valor string
		doc   string
	}{
		{"100.00", "NF123"},
		{"0.01", "X"},
		{"98765.43", "BOLETO 55/2025"},
	}
	for i, l := range launches {
		id := insts[i].ID
		_, err := e.Launch(ctx, id, money(l.valor), l.doc)
		require.NoError(t, err)

		reverted, err := e.Revert(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, parcelas.StatusOpen, reverted.Status)
		assert.Nil(t, reverted.Value)
		assert.Nil(t, reverted.Document)
		assert.Nil(t, reverted.LaunchedAt)

		// Other columns survive.
		assert.Equal(t, insts[i].Year, reverted.Year)
		assert.Equal(t, insts[i].Month, reverted.Month)
		assert.Equal(t, day(insts[i].IssuedAt), day(reverted.IssuedAt))
	}
}

func TestRevert_OpenRowStillWritesAndUnknownFails(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	_, insts := createContract(t, e, acme())

	reverted, err := e.Revert(ctx, insts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, parcelas.StatusOpen, reverted.Status)
	assert.Nil(t, reverted.Value, "the planned value is cleared too")

	_, err = e.Revert(ctx, 9999)
	assert.ErrorIs(t, err, parcelas.ErrInstallmentNotFound)
	assert.True(t, parcelas.IsNotFound(err))
}

// =============================================================================
// ADD / DUPLICATE
// =============================================================================

func TestAddInstallments_NeverCopiesFinancialState(t *testing.T) {
	// GIVEN: a contract whose latest installment is launched
	// WHEN: adding 3 installments for the current month
	// THEN: 3 ABERTO rows with null valor/documento/data_lancamento and copied classification
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c, insts := createContract(t, e, acme())
	last := insts[len(insts)-1]
	_, err := e.Launch(ctx, last.ID, money("100"), "NF12")
	require.NoError(t, err)

	added, err := e.AddInstallments(ctx, parcelas.AddRequest{Contract: "acme", Quantity: 3})
	require.NoError(t, err)
	require.Len(t, added, 3)
	for _, inst := range added {
		assert.Greater(t, inst.ID, last.ID)
		assert.Equal(t, parcelas.StatusOpen, inst.Status)
		assert.Nil(t, inst.Value)
		assert.Nil(t, inst.Document)
		assert.Nil(t, inst.LaunchedAt)
		assert.Equal(t, parcelas.Active, inst.Situacao)
		assert.Equal(t, "ACME", inst.Contract)
		assert.Equal(t, "LINK", inst.Classificacao)
		assert.Equal(t, "LINK", inst.Referente)
		assert.Equal(t, "MATRIZ", inst.Estabelecimento)
		assert.Equal(t, parcelas.TipoContrato, inst.Tipo)
		require.NotNil(t, inst.ContractID)
		assert.Equal(t, c.ID, *inst.ContractID)
		assert.Equal(t, 2025, inst.Year)
		assert.Equal(t, 6, inst.Month)
		assert.Equal(t, "2025-06-01", day(inst.IssuedAt))
		assert.Equal(t, "2025-07-01", day(inst.DueAt))
	}
	assert.Len(t, installmentsOf(t, e, "ACME"), 15)
}

func TestAddInstallments_FromTemplateForPeriod(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	_, insts := createContract(t, e, acme())
	_, err := e.Launch(ctx, insts[2].ID, money("100"), "NF3")
	require.NoError(t, err)

	added, err := e.AddInstallments(ctx, parcelas.AddRequest{
		TemplateID: insts[2].ID,
		Period:     calendar.Period{Year: 2026, Month: 12},
		Quantity:   1,
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "2026-12-01", day(added[0].IssuedAt))
	assert.Equal(t, "2027-01-01", day(added[0].DueAt))
	assert.Nil(t, added[0].Value)
}

func TestAddInstallments_Errors(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	createContract(t, e, acme())

	_, err := e.AddInstallments(ctx, parcelas.AddRequest{Contract: "ACME", Quantity: 0})
	assert.ErrorIs(t, err, parcelas.ErrValidation)

	_, err = e.AddInstallments(ctx, parcelas.AddRequest{Contract: "ACME", Quantity: 1, Period: calendar.Period{Year: 2025, Month: 13}})
	assert.ErrorIs(t, err, parcelas.ErrValidation)

	_, err = e.AddInstallments(ctx, parcelas.AddRequest{Contract: "NOBODY", Quantity: 1})
	assert.ErrorIs(t, err, parcelas.ErrContractNotFound)

	_, err = e.AddInstallments(ctx, parcelas.AddRequest{TemplateID: 777, Quantity: 1})
	assert.ErrorIs(t, err, parcelas.ErrInstallmentNotFound)
}

func TestAddInstallments_InactiveContractHasNoTemplate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c, _ := createContract(t, e, acme())
	_, err := e.SetSituacao(ctx, c.ID, parcelas.Inactive)
	require.NoError(t, err)

	_, err = e.AddInstallments(ctx, parcelas.AddRequest{Contract: "ACME", Quantity: 1})
	assert.ErrorIs(t, err, parcelas.ErrContractNotFound)
}

func TestDeleteInstallment(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewTxMemory()
	e := newTestEngine(mem)
	_, insts := createContract(t, e, acme())

	removed, err := e.DeleteInstallment(ctx, insts[5].ID)
	require.NoError(t, err)
	assert.Equal(t, insts[5].ID, removed.ID)
	assert.Equal(t, 11, mem.Len(table.Installments))

	_, err = e.DeleteInstallment(ctx, insts[5].ID)
	assert.ErrorIs(t, err, parcelas.ErrInstallmentNotFound)
}

// =============================================================================
// CONTRACT SITUACAO
// =============================================================================

func TestSetSituacao_RoundTrip(t *testing.T) {
	// GIVEN: contracts X and Y with installments
	// WHEN: deactivating then reactivating X
	// THEN: X and its installments flip together, Y is untouched, nothing else changes
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	x := acme()
	x.Name = "X"
	y := acme()
	y.Name = "Y"
	cx, _ := createContract(t, e, x)
	createContract(t, e, y)

	before, err := e.Contract(ctx, cx.ID)
	require.NoError(t, err)
	instsBefore := installmentsOf(t, e, "X")

	change, err := e.SetSituacao(ctx, cx.ID, parcelas.Inactive)
	require.NoError(t, err)
	assert.Equal(t, parcelas.Inactive, change.Contract.Situacao)
	assert.Equal(t, 12, change.Installments)
	for _, inst := range installmentsOf(t, e, "X") {
		assert.Equal(t, parcelas.Inactive, inst.Situacao)
	}
	for _, inst := range installmentsOf(t, e, "Y") {
		assert.Equal(t, parcelas.Active, inst.Situacao)
	}

	change, err = e.ToggleSituacao(ctx, cx.ID)
	require.NoError(t, err)
	assert.Equal(t, parcelas.Active, change.Contract.Situacao)

	after, err := e.Contract(ctx, cx.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, instsBefore, installmentsOf(t, e, "X"))
}

func TestSetSituacao_RejectsUnknownValues(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c, _ := createContract(t, e, acme())

	_, err := e.SetSituacao(ctx, c.ID, parcelas.Situacao("SUSPENSO"))
	assert.ErrorIs(t, err, parcelas.ErrValidation)

	_, err = e.SetSituacao(ctx, 999, parcelas.Inactive)
	assert.ErrorIs(t, err, parcelas.ErrContractNotFound)
}

func TestSetSituacao_SagaRestoresContract(t *testing.T) {
	// GIVEN: a store without transactions whose installment update fails
	// WHEN: deactivating a contract
	// THEN: the contract situacao is restored
	ctx := context.Background()
	mem := memory.NewMemory()
	e := newTestEngine(mem)
	c, _ := createContract(t, e, acme())

	mem.Fail = func(op string, tn table.Name) error {
		if op == "update" && tn == table.Installments {
			return errors.New("503 service unavailable")
		}
		return nil
	}
	_, err := e.SetSituacao(ctx, c.ID, parcelas.Inactive)
	var sagaErr *table.SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.True(t, sagaErr.Compensated())

	mem.Fail = nil
	current, err := e.Contract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, parcelas.Active, current.Situacao)
}

// =============================================================================
// RENEW
// =============================================================================

func expiredContract(t *testing.T, e *parcelas.Engine) parcelas.Contract {
	t.Helper()
	n := acme()
	n.Name = "EXPIRED"
	n.Start = date(2024, time.January, 1)
	c, _ := createContract(t, e, n)
	require.Equal(t, "2024-12-31", day(c.End))
	return c
}

func TestRenew_ExtendsAndReactivates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c := expiredContract(t, e)
	_, err := e.SetSituacao(ctx, c.ID, parcelas.Inactive)
	require.NoError(t, err)
	instsBefore := installmentsOf(t, e, "EXPIRED")

	renewed, err := e.Renew(ctx, c.ID, 45)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-30", day(renewed.End))
	assert.Equal(t, parcelas.Active, renewed.Situacao)
	assert.Equal(t, "2024-01-01", day(renewed.Start))

	after := installmentsOf(t, e, "EXPIRED")
	require.Len(t, after, len(instsBefore))
	for i, inst := range after {
		assert.Equal(t, parcelas.Active, inst.Situacao)
		assert.Equal(t, day(instsBefore[i].IssuedAt), day(inst.IssuedAt), "dates are untouched")
	}
}

func TestRenew_DefaultsAndPreconditions(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c := expiredContract(t, e)
	current, _ := createContract(t, e, acme())

	_, err := e.Renew(ctx, c.ID, 10)
	assert.ErrorIs(t, err, parcelas.ErrValidation)

	_, err = e.Renew(ctx, current.ID, 30)
	assert.ErrorIs(t, err, parcelas.ErrNotRenewable)

	renewed, err := e.Renew(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-15", day(renewed.End))

	_, err = e.Renew(ctx, c.ID, 30)
	assert.ErrorIs(t, err, parcelas.ErrNotRenewable, "no longer expired")
}

func TestRenew_ComparesCalendarDatesInLocalZone(t *testing.T) {
	// GIVEN: a clock in Brazil (UTC-3) on 2026-10-18, a contract ending that same day
	//        and one that ended the day before
	// WHEN: checking expiry, renewal candidates and renewing
	// THEN: the contract ending today is still current; only yesterday's is one day overdue
	ctx := context.Background()
	brt := time.FixedZone("BRT", -3*60*60)
	for _, clock := range []time.Time{
		time.Date(2026, time.October, 18, 0, 30, 0, 0, brt),
		time.Date(2026, time.October, 18, 10, 0, 0, 0, brt),
		time.Date(2026, time.October, 18, 23, 30, 0, 0, brt),
	} {
		e := parcelas.NewEngine(memory.NewTxMemory(), parcelas.Options{Calendar: calendar.Fixed(clock)})

		endsToday := acme()
		endsToday.Name = "ENDS TODAY"
		endsToday.Start = date(2025, time.October, 19)
		current, _ := createContract(t, e, endsToday)
		require.Equal(t, "2026-10-18", day(current.End))

		endedYesterday := acme()
		endedYesterday.Name = "ENDED YESTERDAY"
		endedYesterday.Start = date(2025, time.October, 18)
		overdue, _ := createContract(t, e, endedYesterday)
		require.Equal(t, "2026-10-17", day(overdue.End))

		today := e.Calendar().Today()
		assert.False(t, current.Expired(today), clock.String())
		assert.True(t, overdue.Expired(today), clock.String())

		candidates, err := e.RenewalCandidates(ctx)
		require.NoError(t, err)
		require.Len(t, candidates, 1, clock.String())
		assert.Equal(t, overdue.ID, candidates[0].Contract.ID)
		assert.Equal(t, 1, candidates[0].DaysOverdue, clock.String())

		_, err = e.Renew(ctx, current.ID, 30)
		assert.ErrorIs(t, err, parcelas.ErrNotRenewable, clock.String())

		renewed, err := e.Renew(ctx, overdue.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, "2026-11-17", day(renewed.End), clock.String())
	}
}

func TestRenewalCandidates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c := expiredContract(t, e)
	createContract(t, e, acme())

	candidates, err := e.RenewalCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, c.ID, candidates[0].Contract.ID)
	assert.Equal(t, 166, candidates[0].DaysOverdue)
}

// =============================================================================
// EDIT
// =============================================================================

func TestEditContract_RecomputesTermino(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c, _ := createContract(t, e, acme())
	instsBefore := installmentsOf(t, e, "ACME")

	// New start keeps the stored 12-month duration.
	edited, err := e.EditContract(ctx, c.ID, parcelas.ContractEdit{Start: ptr(date(2025, time.March, 1))})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", day(edited.Start))
	assert.Equal(t, "2026-02-28", day(edited.End))

	// New duration with the stored start.
	edited, err = e.EditContract(ctx, c.ID, parcelas.ContractEdit{DurationMonths: ptr(6)})
	require.NoError(t, err)
	assert.Equal(t, "2025-08-31", day(edited.End))

	// Plain field edits leave dates alone.
	edited, err = e.EditContract(ctx, c.ID, parcelas.ContractEdit{
		Name:  ptr(" acme telecom "),
		Value: ptr(money("2400")),
		Conta: ptr(7.0),
	})
	require.NoError(t, err)
	assert.Equal(t, "ACME TELECOM", edited.Name)
	assert.Equal(t, "2400.00", edited.Value.StringFixed(2))
	assert.Equal(t, "7.0", edited.Conta)
	assert.Equal(t, "2025-08-31", day(edited.End))

	// Installments are untouched, including their name snapshot.
	assert.Equal(t, instsBefore, installmentsOf(t, e, "ACME"))
	assert.Empty(t, installmentsOf(t, e, "ACME TELECOM"))
}

func TestEditContract_Validation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c, _ := createContract(t, e, acme())

	_, err := e.EditContract(ctx, c.ID, parcelas.ContractEdit{Value: ptr(money("0.5"))})
	assert.ErrorIs(t, err, parcelas.ErrValidation)
	_, err = e.EditContract(ctx, c.ID, parcelas.ContractEdit{DurationMonths: ptr(0)})
	assert.ErrorIs(t, err, parcelas.ErrValidation)
	_, err = e.EditContract(ctx, c.ID, parcelas.ContractEdit{Name: ptr("  ")})
	assert.ErrorIs(t, err, parcelas.ErrValidation)
	_, err = e.EditContract(ctx, 999, parcelas.ContractEdit{Numero: ptr("X")})
	assert.ErrorIs(t, err, parcelas.ErrContractNotFound)
}

// =============================================================================
// DELETE CONTRACT
// =============================================================================

func TestDeleteContract_CascadesByName(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewTxMemory()
	e := newTestEngine(mem)
	c, _ := createContract(t, e, acme())
	other := acme()
	other.Name = "OTHER"
	createContract(t, e, other)

	d, err := e.DeleteContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, d.Installments)
	assert.Equal(t, "ACME", d.Contract.Name)
	assert.Equal(t, 1, mem.Len(table.Contracts))
	assert.Len(t, installmentsOf(t, e, "OTHER"), 12)

	_, err = e.DeleteContract(ctx, c.ID)
	assert.ErrorIs(t, err, parcelas.ErrContractNotFound)
}

func TestDeleteContract_RenamedContractOrphansOldInstallments(t *testing.T) {
	// GIVEN: a contract renamed after its installments were generated
	// WHEN: deleting it
	// THEN: installments still carrying the old name are left behind
	ctx := context.Background()
	e := newTestEngine(memory.NewTxMemory())
	c, _ := createContract(t, e, acme())
	_, err := e.EditContract(ctx, c.ID, parcelas.ContractEdit{Name: ptr("NEW NAME")})
	require.NoError(t, err)

	d, err := e.DeleteContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Installments)
	assert.Len(t, installmentsOf(t, e, "ACME"), 12)
}

func TestDeleteContract_SagaRestoresContract(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewMemory()
	e := newTestEngine(mem)
	c, _ := createContract(t, e, acme())

	mem.Fail = func(op string, tn table.Name) error {
		if op == "delete" && tn == table.Installments {
			return errors.New("timeout")
		}
		return nil
	}
	_, err := e.DeleteContract(ctx, c.ID)
	require.Error(t, err)

	mem.Fail = nil
	restored, err := e.Contract(ctx, c.ID)
	require.NoError(t, err, "the contract is re-inserted with its id")
	assert.Equal(t, c, restored)
	assert.Equal(t, 12, mem.Len(table.Installments))
}

// =============================================================================
// RECORDING
// =============================================================================

type recorded struct {
	mu   sync.Mutex
	seen map[string][]string
}

func (r *recorded) ObserveOperation(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[string][]string{}
	}
	r.seen[op] = append(r.seen[op], outcome)
}

func TestEngine_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	rec := &recorded{}
	e := parcelas.NewEngine(memory.NewTxMemory(), parcelas.Options{Calendar: calendar.Fixed(testNow), Recorder: rec})
	_, insts := createContract(t, e, acme())

	_, _ = e.Launch(ctx, insts[0].ID, money("1"), "NF")
	_, _ = e.Launch(ctx, insts[0].ID, money("1"), "NF")
	_, _ = e.Launch(ctx, insts[0].ID, money("1"), "")

	assert.Equal(t, []string{parcelas.OutcomeOK}, rec.seen["create_contract"])
	assert.Equal(t, []string{parcelas.OutcomeOK, parcelas.OutcomeClientError, parcelas.OutcomeClientError}, rec.seen["launch"])
}
