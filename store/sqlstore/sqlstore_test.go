package sqlstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/parcelas/store/sqlstore"
	"github.com/warp/parcelas/table"
)

var pg = sqlstore.Builder{Placeholder: sqlstore.Dollar}

func TestBuilder_Select(t *testing.T) {
	q, err := pg.Select(table.Contracts, 1000, 1000)
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "FROM contratos ORDER BY id LIMIT $1 OFFSET $2")
	assert.Equal(t, []any{1000, 1000}, q.Args)
}

func TestBuilder_InsertUsesSchemaOrderAndReturning(t *testing.T) {
	q, err := pg.Insert(table.Installments, []table.Row{
		{"status": "ABERTO", "contrato": "ACME", "ano": 2025},
		{"contrato": "ACME", "ano": 2025},
	})
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "INSERT INTO parcelas (contrato, ano, status) VALUES ($1, $2, $3), ($4, $5, $6) RETURNING id,")
	assert.Equal(t, []any{"ACME", int64(2025), "ABERTO", "ACME", int64(2025), nil}, q.Args)
}

func TestBuilder_UpdateWithNullFilterAndIgnoredID(t *testing.T) {
	q, err := pg.Update(table.Installments,
		table.Row{"id": 9, "status": "LANÇADO", "valor": 100.0},
		table.Filter{"id": 1, "status": "ABERTO", "documento": nil})
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "UPDATE parcelas SET status = $1, valor = $2 WHERE id = $3 AND status = $4 AND documento IS NULL RETURNING")
	assert.Equal(t, []any{"LANÇADO", 100.0, int64(1), "ABERTO"}, q.Args)
}

func TestBuilder_DeleteWithoutFilter(t *testing.T) {
	q, err := sqlstore.Builder{Placeholder: sqlstore.Question}.Delete(table.Contracts, nil)
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "DELETE FROM contratos RETURNING id,")
	assert.Empty(t, q.Args)
}

func TestBuilder_RejectsUnknownNames(t *testing.T) {
	_, err := pg.Update(table.Contracts, table.Row{"situacao; DROP TABLE contratos": "x"}, nil)
	assert.ErrorIs(t, err, table.ErrUnknownColumn)

	_, err = pg.Select("pg_user", 0, 10)
	assert.ErrorIs(t, err, table.ErrUnknownTable)

	_, err = pg.Update(table.Contracts, table.Row{}, table.Filter{"id": 1})
	assert.Error(t, err, "empty patch")
}
