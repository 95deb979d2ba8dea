package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/warp/parcelas/parcelas"
)

// Filter query parameters. Each accepts repeated keys or comma-separated values:
//
//	?ano=2025&mes=1,2,3&status=LANÇADO&sem_hcompany=true
//
// A parameter that is absent keeps the page default; a parameter present with an empty
// value clears that dimension.
const (
	paramYear            = "ano"
	paramMonth           = "mes"
	paramContract        = "contrato"
	paramTipo            = "tipo"
	paramEstabelecimento = "estabelecimento"
	paramStatus          = "status"
	paramClassificacao   = "classificacao"
	paramSituacao        = "situacao"
	paramExcludeHCompany = "sem_hcompany"
	paramKind            = "pedido"
)

// parseFilter overlays the query on base.
func parseFilter(q url.Values, base parcelas.FilterState) (parcelas.FilterState, error) {
	f := base
	var err error
	if vals, ok := list(q, paramYear); ok {
		if f.Years, err = ints(paramYear, vals, 1, 9999); err != nil {
			return f, err
		}
	}
	if vals, ok := list(q, paramMonth); ok {
		if f.Months, err = ints(paramMonth, vals, 1, 12); err != nil {
			return f, err
		}
	}
	if vals, ok := list(q, paramContract); ok {
		f.Contracts = vals
	}
	if vals, ok := list(q, paramTipo); ok {
		f.Tipos = vals
	}
	if vals, ok := list(q, paramEstabelecimento); ok {
		f.Estabelecimentos = vals
	}
	if vals, ok := list(q, paramClassificacao); ok {
		f.Classificacoes = vals
	}
	if vals, ok := list(q, paramStatus); ok {
		f.Statuses = nil
		for _, v := range vals {
			s := parcelas.Status(strings.ToUpper(v))
			if s != parcelas.StatusOpen && s != parcelas.StatusLaunched {
				return f, &parcelas.ValidationError{Field: paramStatus, Message: "unknown status " + v}
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	if vals, ok := list(q, paramSituacao); ok {
		if f.Situacoes, err = situacoes(vals); err != nil {
			return f, err
		}
	}
	if q.Has(paramExcludeHCompany) {
		b, err := strconv.ParseBool(q.Get(paramExcludeHCompany))
		if err != nil {
			return f, &parcelas.ValidationError{Field: paramExcludeHCompany, Message: "must be true or false"}
		}
		f.ExcludeHCompany = b
	}
	return f, nil
}

// parseContractFilter overlays the contracts-list query on base:
//
//	?situacao=ATIVO,INATIVO&estabelecimento=MATRIZ&pedido=contrato,pedido
//
// pedido takes CONTRATO and/or PEDIDO; selecting both, or clearing it, shows every kind.
func parseContractFilter(q url.Values, base parcelas.ContractFilter) (parcelas.ContractFilter, error) {
	f := base
	var err error
	if vals, ok := list(q, paramSituacao); ok {
		if f.Situacoes, err = situacoes(vals); err != nil {
			return f, err
		}
	}
	if vals, ok := list(q, paramContract); ok {
		f.Contracts = vals
	}
	if vals, ok := list(q, paramEstabelecimento); ok {
		f.Estabelecimentos = vals
	}
	if vals, ok := list(q, paramClassificacao); ok {
		f.Classificacoes = vals
	}
	if vals, ok := list(q, paramKind); ok {
		f.Kinds = nil
		for _, v := range vals {
			k := parcelas.ContractKind(strings.ToUpper(v))
			if !k.Valid() {
				return f, &parcelas.ValidationError{Field: paramKind, Message: "must be CONTRATO or PEDIDO, got " + v}
			}
			f.Kinds = append(f.Kinds, k)
		}
	}
	return f, nil
}

func situacoes(vals []string) ([]parcelas.Situacao, error) {
	var out []parcelas.Situacao
	for _, v := range vals {
		s := parcelas.Situacao(strings.ToUpper(v))
		if !s.Valid() {
			return nil, &parcelas.ValidationError{Field: paramSituacao, Message: "unknown situacao " + v}
		}
		out = append(out, s)
	}
	return out, nil
}

// list splits every value of key on commas. ok is false when key is absent.
func list(q url.Values, key string) ([]string, bool) {
	raw, ok := q[key]
	if !ok {
		return nil, false
	}
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out, true
}

func ints(field string, vals []string, lo, hi int) ([]int, error) {
	var out []int
	for _, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil || n < lo || n > hi {
			return nil, &parcelas.ValidationError{Field: field, Message: "invalid value " + v}
		}
		out = append(out, n)
	}
	return out, nil
}
