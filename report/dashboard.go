package report

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/parcelas"
)

// TopContractsLimit caps the top-contracts series.
const TopContractsLimit = 10

// Point is one labelled value of a series.
type Point struct {
	Label string          `json:"rotulo"`
	Value decimal.Decimal `json:"valor"`
}

// MonthTotal is one month of a monthly series.
type MonthTotal struct {
	Month int             `json:"mes"`
	Name  string          `json:"mes_nome"`
	Value decimal.Decimal `json:"valor"`
}

// Dashboard holds every series of the dashboard page.
type Dashboard struct {
	Filter parcelas.FilterState `json:"-"`

	// Total sums the filtered installments.
	Total decimal.Decimal `json:"total"`

	// Monthly ignores the month selection so the whole year is charted.
	Monthly []MonthTotal `json:"mensal"`

	// ByEstabelecimento is ordered by ascending value.
	ByEstabelecimento []Point `json:"por_estabelecimento"`

	// ByClassificacao is ordered by label.
	ByClassificacao []Point `json:"por_classificacao"`

	// TopContracts holds the largest contracts by value, descending.
	TopContracts []Point `json:"top_contratos"`

	// HCompany covers all twelve months of launched HCOMPANY installments, zero-filled.
	HCompany []MonthTotal `json:"hcompany"`
}

// BuildDashboard computes the dashboard for f over every installment.
func BuildDashboard(all []parcelas.Installment, f parcelas.FilterState) Dashboard {
	filtered := f.Apply(all)
	d := Dashboard{Filter: f}

	for _, inst := range filtered {
		d.Total = d.Total.Add(inst.Amount())
	}
	d.Monthly = monthly(f.WithMonths().Apply(all), false)
	d.ByEstabelecimento = sumBy(filtered, func(i parcelas.Installment) string { return i.Estabelecimento })
	sort.SliceStable(d.ByEstabelecimento, func(i, j int) bool {
		return d.ByEstabelecimento[i].Value.LessThan(d.ByEstabelecimento[j].Value)
	})
	d.ByClassificacao = sumBy(filtered, func(i parcelas.Installment) string { return i.Classificacao })

	top := sumBy(filtered, func(i parcelas.Installment) string { return i.Contract })
	sort.SliceStable(top, func(i, j int) bool { return top[i].Value.GreaterThan(top[j].Value) })
	if len(top) > TopContractsLimit {
		top = top[:TopContractsLimit]
	}
	d.TopContracts = top

	hc := f.WithMonths().WithClassificacoes().IncludingHCompany().Apply(all)
	var launched []parcelas.Installment
	for _, inst := range hc {
		if parcelas.IsHCompany(inst.Contract) && inst.Status == parcelas.StatusLaunched {
			launched = append(launched, inst)
		}
	}
	d.HCompany = monthly(launched, true)
	return d
}

// monthly sums by month, chronologically; fill adds zero entries for missing months.
func monthly(insts []parcelas.Installment, fill bool) []MonthTotal {
	sums := map[int]decimal.Decimal{}
	for _, inst := range insts {
		sums[inst.Month] = sums[inst.Month].Add(inst.Amount())
	}
	if fill {
		for m := 1; m <= 12; m++ {
			if _, ok := sums[m]; !ok {
				sums[m] = decimal.Zero
			}
		}
	}
	months := make([]int, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	sort.Ints(months)

	out := make([]MonthTotal, len(months))
	for i, m := range months {
		out[i] = MonthTotal{Month: m, Name: calendar.MonthLabel(m), Value: sums[m]}
	}
	return out
}

// sumBy groups by key, skipping blank keys, ordered by label.
func sumBy(insts []parcelas.Installment, key func(parcelas.Installment) string) []Point {
	sums := map[string]decimal.Decimal{}
	for _, inst := range insts {
		k := key(inst)
		if k == "" {
			continue
		}
		sums[k] = sums[k].Add(inst.Amount())
	}
	out := make([]Point, 0, len(sums))
	for k, v := range sums {
		out = append(out, Point{Label: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
