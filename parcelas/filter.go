package parcelas

import (
	"slices"

	"github.com/shopspring/decimal"
	"github.com/warp/parcelas/calendar"
)

// =============================================================================
// FILTER STATE
// =============================================================================

// FilterState selects installments for views and reports.
// An empty dimension places no constraint. Values are never mutated in place:
// the With* methods return modified copies.
type FilterState struct {
	Years            []int
	Months           []int
	Contracts        []string
	Tipos            []string
	Estabelecimentos []string
	Statuses         []Status
	Classificacoes   []string
	Situacoes        []Situacao

	// ExcludeHCompany drops installments of HCOMPANY contracts.
	ExcludeHCompany bool
}

// DefaultDashboardFilter is the dashboard's initial selection: launched contract
// installments of the current month, HCOMPANY excluded.
func DefaultDashboardFilter(cal calendar.Calendar) FilterState {
	return FilterState{
		Years:           []int{cal.CurrentYear()},
		Months:          []int{cal.CurrentMonth()},
		Tipos:           []string{TipoContrato},
		Statuses:        []Status{StatusLaunched},
		ExcludeHCompany: true,
	}
}

// DefaultInstallmentsFilter is the installments page's initial selection: open
// installments of active contracts in the current month.
func DefaultInstallmentsFilter(cal calendar.Calendar) FilterState {
	return FilterState{
		Years:     []int{cal.CurrentYear()},
		Months:    []int{cal.CurrentMonth()},
		Statuses:  []Status{StatusOpen},
		Situacoes: []Situacao{Active},
	}
}

func (f FilterState) WithYears(years ...int) FilterState {
	f.Years = slices.Clone(years)
	return f
}

func (f FilterState) WithMonths(months ...int) FilterState {
	f.Months = slices.Clone(months)
	return f
}

func (f FilterState) WithContracts(names ...string) FilterState {
	f.Contracts = slices.Clone(names)
	return f
}

func (f FilterState) WithStatuses(statuses ...Status) FilterState {
	f.Statuses = slices.Clone(statuses)
	return f
}

func (f FilterState) WithClassificacoes(cls ...string) FilterState {
	f.Classificacoes = slices.Clone(cls)
	return f
}

func (f FilterState) WithSituacoes(s ...Situacao) FilterState {
	f.Situacoes = slices.Clone(s)
	return f
}

// IncludingHCompany clears the HCOMPANY exclusion.
func (f FilterState) IncludingHCompany() FilterState {
	f.ExcludeHCompany = false
	return f
}

// Matches reports whether inst passes every dimension.
func (f FilterState) Matches(inst Installment) bool {
	return allows(f.Years, inst.Year) &&
		allows(f.Months, inst.Month) &&
		allows(f.Contracts, inst.Contract) &&
		allows(f.Tipos, inst.Tipo) &&
		allows(f.Estabelecimentos, inst.Estabelecimento) &&
		allows(f.Statuses, inst.Status) &&
		allows(f.Classificacoes, inst.Classificacao) &&
		allows(f.Situacoes, inst.Situacao) &&
		!(f.ExcludeHCompany && IsHCompany(inst.Contract))
}

// Apply returns the matching installments in their original order.
func (f FilterState) Apply(all []Installment) []Installment {
	out := make([]Installment, 0, len(all))
	for _, inst := range all {
		if f.Matches(inst) {
			out = append(out, inst)
		}
	}
	return out
}

func allows[T comparable](set []T, v T) bool {
	return len(set) == 0 || slices.Contains(set, v)
}

// =============================================================================
// CONTRACT FILTER
// =============================================================================

// ContractKind tells numbered contracts apart from purchase orders (numero "PEDIDO").
type ContractKind string

const (
	KindContract      ContractKind = "CONTRATO"
	KindPurchaseOrder ContractKind = "PEDIDO"
)

// Valid reports whether k is one of the known kinds.
func (k ContractKind) Valid() bool { return k == KindContract || k == KindPurchaseOrder }

// ContractFilter selects contracts for the contracts list. Like FilterState, an empty
// dimension places no constraint and the With* methods return copies.
type ContractFilter struct {
	Situacoes        []Situacao
	Contracts        []string
	Estabelecimentos []string
	Classificacoes   []string
	Kinds            []ContractKind
}

// DefaultContractFilter is the contracts page's initial selection: active numbered
// contracts, purchase orders hidden.
func DefaultContractFilter() ContractFilter {
	return ContractFilter{
		Situacoes: []Situacao{Active},
		Kinds:     []ContractKind{KindContract},
	}
}

func (f ContractFilter) WithSituacoes(s ...Situacao) ContractFilter {
	f.Situacoes = slices.Clone(s)
	return f
}

func (f ContractFilter) WithKinds(kinds ...ContractKind) ContractFilter {
	f.Kinds = slices.Clone(kinds)
	return f
}

// Matches reports whether c passes every dimension.
func (f ContractFilter) Matches(c Contract) bool {
	return allows(f.Situacoes, c.Situacao) &&
		allows(f.Contracts, c.Name) &&
		allows(f.Estabelecimentos, c.Estabelecimento) &&
		allows(f.Classificacoes, c.Classificacao) &&
		allows(f.Kinds, c.Kind())
}

// Apply returns the matching contracts in their original order.
func (f ContractFilter) Apply(all []Contract) []Contract {
	out := make([]Contract, 0, len(all))
	for _, c := range all {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// ContractTotals sums valor_contrato over contracts.
func ContractTotals(contracts []Contract) (count int, total decimal.Decimal) {
	total = decimal.Zero
	for _, c := range contracts {
		total = total.Add(c.Value)
	}
	return len(contracts), Money(total)
}
