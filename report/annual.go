/*
Package report aggregates installments into the annual report and dashboard series.

ANNUAL REPORT:
  Launched installments of one year, pivoted by canonical contract name (rows) and month
  (columns), with a Total column and a final "[TOTAL R$]:" row.

  Canonical name, applied to each installment's contrato:
    1. trim, strip a trailing " <digits>" suffix ("ACME 2" -> "ACME")
    2. uppercase-trimmed prefix aliases, in table order, last match wins
    3. "VELOMAX" anywhere in the name overrides the alias
    4. blank -> "Sem Contrato"
  Canonical names starting with HCOMPANY are dropped; that revenue is reported on the
  dashboard instead.

SEE ALSO:
  - dashboard.go: dashboard aggregates
  - format.go: pt-BR currency formatting
*/
package report

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/parcelas"
)

const (
	// NoContract labels installments without a contract name.
	NoContract = "Sem Contrato"

	// TotalLabel names the summary row.
	TotalLabel = "[TOTAL R$]:"
)

type alias struct {
	prefix    string
	canonical string
}

// aliases fold spelling variants of the same supplier. Order matters: later entries win.
var aliases = []alias{
	{"INGR", "INGRAM"},
	{"INGRAM", "INGRAM"},
	{"TOTVS", "TOTVS"},
	{"ALGAR", "ALGAR"},
	{"CLARO", "CLARO"},
	{"HCOMPANY", "HCOMPANY"},
	{"UNE", "UNE TELECOM"},
	{"SAP", "SAP"},
	{"PRODUTIVE", "PRODUTIVE"},
	{"OI", "OI TELECOM"},
	{"NEOMIND", "NEOMIND"},
	{"LUCAS", "LUCAS BICALHO"},
	{"JETTELECOM", "JETTELECOM"},
	{"ILOC3", "ILOC3 LOCAÇÕES"},
	{"HPFS", "HPFS - LOCAÇÃO"},
	{"GRENKE", "GRENKE"},
	{"GLOBO", "GLOBO SOLUÇÕES"},
	{"COMPEX", "COMPEX"},
}

var numberSuffix = regexp.MustCompile(`\s+\d+$`)

// CanonicalName folds a contract name into its report row label.
func CanonicalName(name string) string {
	match := strings.ToUpper(strings.TrimSpace(name))
	canonical := numberSuffix.ReplaceAllString(name, "")

	for _, a := range aliases {
		if strings.HasPrefix(match, a.prefix) {
			canonical = a.canonical
		}
	}
	if strings.Contains(match, "VELOMAX") {
		canonical = "VELOMAX"
	}
	if strings.TrimSpace(canonical) == "" {
		return NoContract
	}
	return strings.TrimSpace(canonical)
}

// AnnualRow is one contract line of the report; Months aligns with AnnualReport.Months.
type AnnualRow struct {
	Contract string            `json:"contrato"`
	Months   []decimal.Decimal `json:"meses"`
	Total    decimal.Decimal   `json:"total"`
}

// AnnualReport is the year pivot.
type AnnualReport struct {
	Year int `json:"ano"`
	// Months holds the month numbers present, chronologically.
	Months []int       `json:"meses"`
	Rows   []AnnualRow `json:"linhas"`
	Totals AnnualRow   `json:"totais"`
}

// MonthNames returns the column labels (pt-BR abbreviations).
func (r AnnualReport) MonthNames() []string {
	out := make([]string, len(r.Months))
	for i, m := range r.Months {
		out[i] = calendar.MonthLabel(m)
	}
	return out
}

// Annual builds the report for year from every installment.
func Annual(all []parcelas.Installment, year int) AnnualReport {
	sums := map[string]map[int]decimal.Decimal{}
	present := map[int]bool{}

	for _, inst := range all {
		if inst.Year != year || inst.Status != parcelas.StatusLaunched {
			continue
		}
		name := CanonicalName(inst.Contract)
		present[inst.Month] = true
		if strings.HasPrefix(name, parcelas.HCompanyPrefix) {
			continue
		}
		if sums[name] == nil {
			sums[name] = map[int]decimal.Decimal{}
		}
		sums[name][inst.Month] = sums[name][inst.Month].Add(inst.Amount())
	}

	months := make([]int, 0, len(present))
	for m := range present {
		months = append(months, m)
	}
	sort.Ints(months)

	names := make([]string, 0, len(sums))
	for n := range sums {
		names = append(names, n)
	}
	sort.Strings(names)

	report := AnnualReport{Year: year, Months: months}
	totals := AnnualRow{Contract: TotalLabel, Months: zeros(len(months))}
	for _, n := range names {
		row := AnnualRow{Contract: n, Months: zeros(len(months))}
		for i, m := range months {
			v := sums[n][m]
			row.Months[i] = v
			row.Total = row.Total.Add(v)
			totals.Months[i] = totals.Months[i].Add(v)
		}
		totals.Total = totals.Total.Add(row.Total)
		report.Rows = append(report.Rows, row)
	}
	report.Totals = totals
	return report
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}

// FormattedReport is the report as display strings.
type FormattedReport struct {
	Header []string   `json:"cabecalho"`
	Rows   [][]string `json:"linhas"`
}

// Formatted renders every currency cell as pt-BR money, the total row last.
func (r AnnualReport) Formatted() FormattedReport {
	header := append([]string{"Contrato"}, r.MonthNames()...)
	header = append(header, "Total")

	out := FormattedReport{Header: header}
	for _, row := range append(append([]AnnualRow{}, r.Rows...), r.Totals) {
		line := []string{row.Contract}
		for _, v := range row.Months {
			line = append(line, BRL(v))
		}
		line = append(line, BRL(row.Total))
		out.Rows = append(out.Rows, line)
	}
	return out
}
