package parcelas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/parcelas"
)

func sampleInstallments() []parcelas.Installment {
	return []parcelas.Installment{
		{ID: 1, Contract: "ACME", Year: 2025, Month: 6, Tipo: "CONTRATO", Status: parcelas.StatusLaunched, Situacao: parcelas.Active, Classificacao: "LINK"},
		{ID: 2, Contract: "ACME", Year: 2025, Month: 6, Tipo: "CONTRATO", Status: parcelas.StatusOpen, Situacao: parcelas.Active, Classificacao: "LINK"},
		{ID: 3, Contract: "HCOMPANY SUL", Year: 2025, Month: 6, Tipo: "CONTRATO", Status: parcelas.StatusLaunched, Situacao: parcelas.Active},
		{ID: 4, Contract: "TOTVS", Year: 2025, Month: 5, Tipo: "CONTRATO", Status: parcelas.StatusLaunched, Situacao: parcelas.Active},
		{ID: 5, Contract: "CLARO", Year: 2024, Month: 6, Tipo: "AVULSO", Status: parcelas.StatusOpen, Situacao: parcelas.Inactive},
	}
}

func ids(insts []parcelas.Installment) []int64 {
	out := make([]int64, len(insts))
	for i, inst := range insts {
		out[i] = inst.ID
	}
	return out
}

func TestFilterState_EmptyMatchesEverything(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(parcelas.FilterState{}.Apply(sampleInstallments())))
}

func TestFilterState_DashboardDefaults(t *testing.T) {
	f := parcelas.DefaultDashboardFilter(calendar.Fixed(testNow))
	assert.Equal(t, []int{2025}, f.Years)
	assert.Equal(t, []int{6}, f.Months)
	assert.True(t, f.ExcludeHCompany)
	assert.Equal(t, []int64{1}, ids(f.Apply(sampleInstallments())))

	// The monthly series ignores the month selection; HCOMPANY revenue drops the exclusion.
	assert.Equal(t, []int64{1, 4}, ids(f.WithMonths().Apply(sampleInstallments())))
	assert.Equal(t, []int64{1, 3}, ids(f.IncludingHCompany().Apply(sampleInstallments())))
}

func TestFilterState_InstallmentsDefaults(t *testing.T) {
	f := parcelas.DefaultInstallmentsFilter(calendar.Fixed(testNow))
	assert.Equal(t, []int64{2}, ids(f.Apply(sampleInstallments())))
}

func TestFilterState_WithReturnsCopies(t *testing.T) {
	base := parcelas.FilterState{Years: []int{2025}}
	years := []int{2024}
	changed := base.WithYears(years...)
	years[0] = 1999

	assert.Equal(t, []int{2025}, base.Years)
	assert.Equal(t, []int{2024}, changed.Years)
	assert.Equal(t, []int64{5}, ids(changed.Apply(sampleInstallments())))
}

func TestFilterState_MultipleDimensions(t *testing.T) {
	f := parcelas.FilterState{}.
		WithStatuses(parcelas.StatusLaunched).
		WithContracts("ACME", "TOTVS").
		WithClassificacoes("LINK")
	assert.Equal(t, []int64{1}, ids(f.Apply(sampleInstallments())))

	f = parcelas.FilterState{}.WithSituacoes(parcelas.Inactive)
	assert.Equal(t, []int64{5}, ids(f.Apply(sampleInstallments())))
}

func TestIsHCompany(t *testing.T) {
	assert.True(t, parcelas.IsHCompany("HCOMPANY"))
	assert.True(t, parcelas.IsHCompany(" hcompany norte"))
	assert.False(t, parcelas.IsHCompany("ACME HCOMPANY"))
}

// =============================================================================
// CONTRACT FILTER
// =============================================================================

func sampleContracts() []parcelas.Contract {
	return []parcelas.Contract{
		{ID: 1, Name: "ACME", Numero: "CT-1", Estabelecimento: "MATRIZ", Classificacao: "LINK", Situacao: parcelas.Active, Value: money("1200.00")},
		{ID: 2, Name: "TOTVS", Numero: "PEDIDO", Estabelecimento: "MATRIZ", Classificacao: "ERP", Situacao: parcelas.Active, Value: money("300.10")},
		{ID: 3, Name: "CLARO", Numero: " pedido ", Estabelecimento: "FILIAL", Classificacao: "LINK", Situacao: parcelas.Inactive, Value: money("50.00")},
		{ID: 4, Name: "OI", Numero: "CT-4", Estabelecimento: "FILIAL", Classificacao: "LINK", Situacao: parcelas.Inactive, Value: money("10.005")},
	}
}

func contractIDs(cs []parcelas.Contract) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestContractFilter_DefaultsHidePurchaseOrdersAndInactive(t *testing.T) {
	f := parcelas.DefaultContractFilter()
	assert.Equal(t, []int64{1}, contractIDs(f.Apply(sampleContracts())))
	assert.Equal(t, []int64{1, 2, 3, 4}, contractIDs(parcelas.ContractFilter{}.Apply(sampleContracts())))
}

func TestContractFilter_Kinds(t *testing.T) {
	all := sampleContracts()
	assert.Equal(t, parcelas.KindPurchaseOrder, all[2].Kind(), "numero is compared trimmed and case-insensitive")

	orders := parcelas.ContractFilter{}.WithKinds(parcelas.KindPurchaseOrder)
	assert.Equal(t, []int64{2, 3}, contractIDs(orders.Apply(all)))

	both := parcelas.ContractFilter{}.WithKinds(parcelas.KindContract, parcelas.KindPurchaseOrder)
	assert.Equal(t, []int64{1, 2, 3, 4}, contractIDs(both.Apply(all)))
}

func TestContractFilter_WithReturnsCopies(t *testing.T) {
	base := parcelas.DefaultContractFilter()
	inactive := base.WithSituacoes(parcelas.Inactive)
	assert.Equal(t, []parcelas.Situacao{parcelas.Active}, base.Situacoes)
	assert.Equal(t, []int64{4}, contractIDs(inactive.Apply(sampleContracts())))

	f := parcelas.ContractFilter{Estabelecimentos: []string{"FILIAL"}, Classificacoes: []string{"LINK"}}
	assert.Equal(t, []int64{3, 4}, contractIDs(f.Apply(sampleContracts())))
}

func TestContractTotals(t *testing.T) {
	count, total := parcelas.ContractTotals(sampleContracts())
	assert.Equal(t, 4, count)
	assert.Equal(t, "1560.11", total.StringFixed(2))

	count, total = parcelas.ContractTotals(nil)
	assert.Zero(t, count)
	assert.True(t, total.IsZero())
}
