/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Request bodies are decoded into these types and translated into engine inputs.
  Contracts, installments and report structures already carry column-named JSON tags
  and are returned as-is; the types here only wrap composite results.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Composite response wrappers

MONEY:
  Amounts are decimal.Decimal and travel as JSON strings ("1200.00"). Numbers are
  accepted on input too.

DATES:
  "inicio" accepts YYYY-MM-DD or a full ISO-8601 timestamp.

SEE ALSO:
  - handlers.go: Uses these types
  - parcelas/types.go: Contract / Installment JSON shape
*/
package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/parcelas"
	"github.com/warp/parcelas/report"
)

// =============================================================================
// CONTRACTS
// =============================================================================

// CreateContractRequest is the body of POST /api/contratos.
type CreateContractRequest struct {
	Contrato        string          `json:"contrato"`
	Numero          string          `json:"numero"`
	CNPJ            string          `json:"cnpj"`
	Descricao       string          `json:"descricao"`
	Anexos          []string        `json:"anexos"`
	Estabelecimento string          `json:"estabelecimento"`
	Classificacao   string          `json:"classificacao"`
	Conta           float64         `json:"conta"`
	CentroCusto     float64         `json:"centro_custo"`
	ValorContrato   decimal.Decimal `json:"valor_contrato"`
	DuracaoMeses    int             `json:"duracao_meses"`
	Inicio          string          `json:"inicio"`
}

func (req CreateContractRequest) toNewContract() (parcelas.NewContract, error) {
	start, err := parseDate("inicio", req.Inicio)
	if err != nil {
		return parcelas.NewContract{}, err
	}
	n := parcelas.NewContract{
		Name:            req.Contrato,
		Numero:          req.Numero,
		CNPJ:            req.CNPJ,
		Descricao:       req.Descricao,
		Anexos:          req.Anexos,
		Estabelecimento: req.Estabelecimento,
		Classificacao:   req.Classificacao,
		Conta:           req.Conta,
		CentroCusto:     req.CentroCusto,
		Value:           req.ValorContrato,
		DurationMonths:  req.DuracaoMeses,
	}
	if start != nil {
		n.Start = *start
	}
	return n, nil
}

// CreateContractResponse returns the stored contract and its generated schedule.
type CreateContractResponse struct {
	Contrato parcelas.Contract      `json:"contrato"`
	Parcelas []parcelas.Installment `json:"parcelas"`
}

// EditContractRequest is the body of PUT /api/contratos/{id}. Absent fields are kept.
type EditContractRequest struct {
	Contrato        *string          `json:"contrato"`
	Numero          *string          `json:"numero"`
	CNPJ            *string          `json:"cnpj"`
	Descricao       *string          `json:"descricao"`
	Anexos          *[]string        `json:"anexos"`
	Estabelecimento *string          `json:"estabelecimento"`
	Classificacao   *string          `json:"classificacao"`
	Conta           *float64         `json:"conta"`
	CentroCusto     *float64         `json:"centro_custo"`
	ValorContrato   *decimal.Decimal `json:"valor_contrato"`
	DuracaoMeses    *int             `json:"duracao_meses"`
	Inicio          *string          `json:"inicio"`
}

func (req EditContractRequest) toEdit() (parcelas.ContractEdit, error) {
	edit := parcelas.ContractEdit{
		Name:            req.Contrato,
		Numero:          req.Numero,
		CNPJ:            req.CNPJ,
		Descricao:       req.Descricao,
		Anexos:          req.Anexos,
		Estabelecimento: req.Estabelecimento,
		Classificacao:   req.Classificacao,
		Conta:           req.Conta,
		CentroCusto:     req.CentroCusto,
		Value:           req.ValorContrato,
		DurationMonths:  req.DuracaoMeses,
	}
	if req.Inicio != nil {
		start, err := parseDate("inicio", *req.Inicio)
		if err != nil {
			return parcelas.ContractEdit{}, err
		}
		edit.Start = start
	}
	return edit, nil
}

// SituacaoRequest is the body of POST /api/contratos/{id}/situacao.
// An empty situacao toggles the current value.
type SituacaoRequest struct {
	Situacao string `json:"situacao"`
}

// SituacaoResponse reports the contract after the change and the installments touched.
type SituacaoResponse struct {
	Contrato parcelas.Contract `json:"contrato"`
	Parcelas int               `json:"parcelas_atualizadas"`
}

// RenewRequest is the body of POST /api/contratos/{id}/renovar.
type RenewRequest struct {
	Dias int `json:"dias"`
}

// DeleteContractResponse reports what DELETE /api/contratos/{id} removed.
type DeleteContractResponse struct {
	Contrato parcelas.Contract `json:"contrato"`
	Parcelas int               `json:"parcelas_removidas"`
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

// LaunchRequest is the body of POST /api/parcelas/{id}/lancar.
type LaunchRequest struct {
	Valor     decimal.Decimal `json:"valor"`
	Documento string          `json:"documento"`
}

// AmendRequest is the body of PUT /api/parcelas/{id}/lancamento.
type AmendRequest struct {
	Valor     *decimal.Decimal `json:"valor"`
	Documento *string          `json:"documento"`
}

// AddInstallmentsRequest is the body of POST /api/parcelas.
// Either contrato or parcela_id selects the template; ano/mes default to the current month.
type AddInstallmentsRequest struct {
	Contrato   string `json:"contrato"`
	ParcelaID  int64  `json:"parcela_id"`
	Ano        int    `json:"ano"`
	Mes        int    `json:"mes"`
	Quantidade int    `json:"quantidade"`
}

func (req AddInstallmentsRequest) toAddRequest(cal calendar.Calendar) parcelas.AddRequest {
	period := cal.CurrentPeriod()
	if req.Ano != 0 {
		period.Year = req.Ano
	}
	if req.Mes != 0 {
		period.Month = req.Mes
	}
	qty := req.Quantidade
	if qty == 0 {
		qty = 1
	}
	return parcelas.AddRequest{
		Contract:   req.Contrato,
		TemplateID: req.ParcelaID,
		Period:     period,
		Quantity:   qty,
	}
}

// ContractsResponse is a filtered contract list with its count and valor_contrato total.
type ContractsResponse struct {
	Contratos      []parcelas.Contract `json:"contratos"`
	Contagem       int                 `json:"contagem"`
	Total          decimal.Decimal     `json:"total"`
	TotalFormatado string              `json:"total_formatado"`
}

// InstallmentsResponse is a filtered installment list with its total.
type InstallmentsResponse struct {
	Parcelas       []parcelas.Installment `json:"parcelas"`
	Total          decimal.Decimal        `json:"total"`
	TotalFormatado string                 `json:"total_formatado"`
}

// =============================================================================
// REPORTS
// =============================================================================

// AnnualReportResponse carries the numeric pivot and its display rendering.
type AnnualReportResponse struct {
	report.AnnualReport
	NomesMeses []string               `json:"nomes_meses"`
	Formatado  report.FormattedReport `json:"formatado"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// parseDate accepts "" (nil), YYYY-MM-DD or an ISO-8601 timestamp.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	ts, err := parcelas.ParseTimestamp(s)
	if err != nil {
		return nil, &parcelas.ValidationError{Field: field, Message: "invalid date " + s}
	}
	t := ts.Time
	return &t, nil
}
