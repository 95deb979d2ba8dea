/*
handlers.go - HTTP API handlers for contracts, installments and reports

PURPOSE:
  Exposes the installment engine via REST API. Handles HTTP request/response and JSON
  serialization, and delegates every rule to parcelas.Engine.

ENDPOINTS:
  Contracts:
    GET    /api/contratos                   List all contracts
    POST   /api/contratos                   Create contract + installment schedule
    GET    /api/contratos/opcoes            Distinct estabelecimento / classificacao / names
    GET    /api/contratos/renovaveis        Expired contracts, oldest first
    GET    /api/contratos/{id}              Get contract
    PUT    /api/contratos/{id}              Edit contract
    DELETE /api/contratos/{id}              Delete contract and its installments
    POST   /api/contratos/{id}/situacao     Set or toggle ATIVO/INATIVO
    POST   /api/contratos/{id}/renovar      Extend termino

  Installments:
    GET    /api/parcelas                    Filtered list (see query.go)
    POST   /api/parcelas                    Add copies of a template installment
    POST   /api/parcelas/{id}/lancar        Launch
    PUT    /api/parcelas/{id}/lancamento    Amend a launch
    POST   /api/parcelas/{id}/reverter      Revert to ABERTO
    DELETE /api/parcelas/{id}               Delete

  Reports:
    GET    /api/relatorios/anual?ano=YYYY   Annual pivot
    GET    /api/dashboard                   Dashboard series

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Contract or installment not found
  - 409: Installment not in the required status, contract not renewable
  - 502: Store failures (details carry the backend message verbatim)

SECURITY NOTE:
  No authentication or authorization. Put the server behind a trusted proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - query.go: Filter query parameters
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/parcelas/logger"
	"github.com/warp/parcelas/parcelas"
	"github.com/warp/parcelas/report"
	"github.com/warp/parcelas/table"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *parcelas.Engine
}

// NewHandler creates a new handler over engine.
func NewHandler(engine *parcelas.Engine) *Handler {
	return &Handler{Engine: engine}
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Engine.Store().Select(r.Context(), table.Contracts, 0, 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns the contracts selected by the query filter with their count and
// total value. Without parameters it shows active contracts, purchase orders hidden.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	f, err := parseContractFilter(r.URL.Query(), parcelas.DefaultContractFilter())
	if err != nil {
		writeEngineError(w, r, "Invalid filter", err)
		return
	}
	contracts, err := h.Engine.QueryContracts(r.Context(), f)
	if err != nil {
		writeEngineError(w, r, "Failed to list contracts", err)
		return
	}
	count, total := parcelas.ContractTotals(contracts)
	writeJSON(w, http.StatusOK, ContractsResponse{
		Contratos:      contracts,
		Contagem:       count,
		Total:          total,
		TotalFormatado: report.Currency(total),
	})
}

// GetContract returns one contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.Engine.Contract(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateContract stores a contract and generates its installments.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := req.toNewContract()
	if err != nil {
		writeEngineError(w, r, "Invalid contract", err)
		return
	}
	c, insts, err := h.Engine.CreateContract(r.Context(), n)
	if err != nil {
		writeEngineError(w, r, "Failed to create contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateContractResponse{Contrato: c, Parcelas: insts})
}

// EditContract applies a partial update.
func (h *Handler) EditContract(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req EditContractRequest
	if !decodeBody(w, r, &req) {
		return
	}
	edit, err := req.toEdit()
	if err != nil {
		writeEngineError(w, r, "Invalid contract", err)
		return
	}
	c, err := h.Engine.EditContract(r.Context(), id, edit)
	if err != nil {
		writeEngineError(w, r, "Failed to edit contract", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteContract removes a contract and the installments carrying its name.
func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.Engine.DeleteContract(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, "Failed to delete contract", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteContractResponse{Contrato: d.Contract, Parcelas: d.Installments})
}

// SetSituacao sets or, with an empty body value, toggles the contract's situacao.
func (h *Handler) SetSituacao(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SituacaoRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	var (
		change parcelas.SituacaoChange
		err    error
	)
	if s := strings.TrimSpace(req.Situacao); s == "" {
		change, err = h.Engine.ToggleSituacao(r.Context(), id)
	} else {
		change, err = h.Engine.SetSituacao(r.Context(), id, parcelas.Situacao(strings.ToUpper(s)))
	}
	if err != nil {
		writeEngineError(w, r, "Failed to change situacao", err)
		return
	}
	writeJSON(w, http.StatusOK, SituacaoResponse{Contrato: change.Contract, Parcelas: change.Installments})
}

// RenewContract extends an expired contract.
func (h *Handler) RenewContract(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req RenewRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	c, err := h.Engine.Renew(r.Context(), id, req.Dias)
	if err != nil {
		writeEngineError(w, r, "Failed to renew contract", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ContractChoices lists the values offered by the contract form.
func (h *Handler) ContractChoices(w http.ResponseWriter, r *http.Request) {
	choices, err := h.Engine.ContractChoices(r.Context())
	if err != nil {
		writeEngineError(w, r, "Failed to list choices", err)
		return
	}
	writeJSON(w, http.StatusOK, choices)
}

// RenewalCandidates lists expired contracts.
func (h *Handler) RenewalCandidates(w http.ResponseWriter, r *http.Request) {
	renewals, err := h.Engine.RenewalCandidates(r.Context())
	if err != nil {
		writeEngineError(w, r, "Failed to list renewals", err)
		return
	}
	writeJSON(w, http.StatusOK, renewals)
}

// =============================================================================
// INSTALLMENT HANDLERS
// =============================================================================

// ListInstallments returns the installments selected by the query filter.
// Without parameters it shows open installments of active contracts this month.
func (h *Handler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query(), parcelas.DefaultInstallmentsFilter(h.Engine.Calendar()))
	if err != nil {
		writeEngineError(w, r, "Invalid filter", err)
		return
	}
	insts, err := h.Engine.Query(r.Context(), f)
	if err != nil {
		writeEngineError(w, r, "Failed to list installments", err)
		return
	}
	total := decimal.Zero
	for _, inst := range insts {
		total = total.Add(inst.Amount())
	}
	writeJSON(w, http.StatusOK, InstallmentsResponse{Parcelas: insts, Total: total, TotalFormatado: report.Currency(total)})
}

// AddInstallments duplicates a template installment into a period.
func (h *Handler) AddInstallments(w http.ResponseWriter, r *http.Request) {
	var req AddInstallmentsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	insts, err := h.Engine.AddInstallments(r.Context(), req.toAddRequest(h.Engine.Calendar()))
	if err != nil {
		writeEngineError(w, r, "Failed to add installments", err)
		return
	}
	writeJSON(w, http.StatusCreated, insts)
}

// LaunchInstallment records the invoice of an open installment.
func (h *Handler) LaunchInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req LaunchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	inst, err := h.Engine.Launch(r.Context(), id, req.Valor, req.Documento)
	if err != nil {
		writeEngineError(w, r, "Failed to launch installment", err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// AmendLaunch edits the value or document of a launched installment.
func (h *Handler) AmendLaunch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AmendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	inst, err := h.Engine.Amend(r.Context(), id, parcelas.Amendment{Value: req.Valor, Document: req.Documento})
	if err != nil {
		writeEngineError(w, r, "Failed to amend launch", err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// RevertInstallment reopens a launched installment.
func (h *Handler) RevertInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inst, err := h.Engine.Revert(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, "Failed to revert installment", err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// DeleteInstallment removes one installment.
func (h *Handler) DeleteInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inst, err := h.Engine.DeleteInstallment(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, "Failed to delete installment", err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// AnnualReport pivots launched values of one year by canonical contract and month.
func (h *Handler) AnnualReport(w http.ResponseWriter, r *http.Request) {
	year := h.Engine.Calendar().CurrentYear()
	if s := r.URL.Query().Get(paramYear); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid ano", err)
			return
		}
		year = n
	}
	all, err := h.Engine.Installments(r.Context())
	if err != nil {
		writeEngineError(w, r, "Failed to build report", err)
		return
	}
	rep := report.Annual(all, year)
	writeJSON(w, http.StatusOK, AnnualReportResponse{
		AnnualReport: rep,
		NomesMeses:   rep.MonthNames(),
		Formatado:    rep.Formatted(),
	})
}

// Dashboard computes the dashboard series for the query filter.
// Without parameters it shows launched contract installments of this month.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query(), parcelas.DefaultDashboardFilter(h.Engine.Calendar()))
	if err != nil {
		writeEngineError(w, r, "Invalid filter", err)
		return
	}
	all, err := h.Engine.Installments(r.Context())
	if err != nil {
		writeEngineError(w, r, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, report.BuildDashboard(all, f))
}

// =============================================================================
// HELPERS
// =============================================================================

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, parcelas.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	case parcelas.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case parcelas.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		logger.FromContext(r.Context()).Error(message, zap.Error(err))
		writeError(w, http.StatusBadGateway, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
