/*
Package table defines the persistence boundary of the installment engine.

PURPOSE:
  The engine talks to a generic key-column relational store: two tables, scalar columns,
  equality filters. Backends (in-memory, SQLite, Postgres, PostgREST over HTTP) implement
  the same small interface so the domain layer never sees SQL or HTTP.

KEY INTERFACES:
  Store:   Select / Insert / Update / Delete over named tables
  TxStore: Store plus WithTx for atomic multi-table writes

ROW SHAPE:
  A Row maps column name to a scalar: string, int64, float64, bool or nil. Dates travel as
  ISO-8601 strings. Backends normalize what they read back to those types.

RETURNED ROWS:
  Insert, Update and Delete return the rows they touched. An Update or Delete returning
  zero rows is how callers detect "not found / no longer matches" without a pre-read.

SEE ALSO:
  - load.go: paginated LoadAll
  - saga.go: compensation for stores without transactions
  - cache.go: TTL read cache
  - memory/memory.go: in-memory implementation
*/
package table

import "context"

// Name identifies a table in the store.
type Name string

const (
	Contracts    Name = "contratos"
	Installments Name = "parcelas"
)

// Row is one record, column -> scalar value.
type Row map[string]any

// Filter is a conjunction of column = value predicates.
type Filter map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the row's "id" column as int64, or 0 when absent.
func (r Row) ID() int64 {
	id, _ := AsInt64(r["id"])
	return id
}

// Matches reports whether every filter column equals the row's value.
func (r Row) Matches(f Filter) bool {
	for col, want := range f {
		if !ValuesEqual(r[col], want) {
			return false
		}
	}
	return true
}

// =============================================================================
// STORE
// =============================================================================

// Store is the request/response contract every backend implements.
type Store interface {
	// Select returns up to limit rows starting at offset, ordered by id.
	Select(ctx context.Context, table Name, offset, limit int) ([]Row, error)

	// Insert writes rows and returns them as stored (ids assigned).
	Insert(ctx context.Context, table Name, rows []Row) ([]Row, error)

	// Update applies patch to every row matching filter and returns the updated rows.
	Update(ctx context.Context, table Name, patch Row, filter Filter) ([]Row, error)

	// Delete removes every row matching filter and returns the removed rows.
	Delete(ctx context.Context, table Name, filter Filter) ([]Row, error)
}

// TxStore wraps Store with transaction support.
// If fn returns an error the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Columns lists the persisted columns of each table, id first.
var Columns = map[Name][]string{
	Contracts: {
		"id", "numero", "contrato", "cnpj", "descricao", "anexos",
		"estabelecimento", "classificacao", "conta", "centro_custo",
		"valor_contrato", "inicio", "termino", "situacao",
	},
	Installments: {
		"id", "contrato_id", "contrato", "ano", "mes", "data_emissao",
		"data_vencimento", "tipo", "referente", "classificacao", "estabelecimento",
		"status", "valor", "documento", "data_lancamento", "situacao",
	},
}

// HasColumn reports whether col belongs to table.
func HasColumn(table Name, col string) bool {
	for _, c := range Columns[table] {
		if c == col {
			return true
		}
	}
	return false
}
