/*
Package sqlite provides a SQLite-backed table.TxStore.

PURPOSE:
  The default backend: a single file holding "contratos" and "parcelas". Statements
  come from sqlstore.Builder; this package owns the connection and the schema.

COLUMN TYPES:
  Dates are TEXT (ISO-8601). Declaring them DATE/TIMESTAMP would make the driver return
  time.Time values instead of the strings the rest of the engine expects.
  Money columns are REAL.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./parcelas.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := parcelas.NewEngine(store, parcelas.Options{})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/sqlstore: statement builder and database/sql execution
  - table/store.go: interface definitions
*/
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/parcelas/store/sqlstore"
)

// Store is a sqlstore.Store bound to a SQLite database.
type Store struct {
	*sqlstore.Store
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{Store: sqlstore.New(db, sqlstore.Builder{Placeholder: sqlstore.Question})}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contratos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		numero TEXT,
		contrato TEXT NOT NULL,
		cnpj TEXT,
		descricao TEXT,
		anexos TEXT,
		estabelecimento TEXT,
		classificacao TEXT,
		conta TEXT,
		centro_custo TEXT,
		valor_contrato REAL,
		inicio TEXT,
		termino TEXT,
		situacao TEXT NOT NULL DEFAULT 'ATIVO'
	);

	CREATE INDEX IF NOT EXISTS idx_contratos_contrato
		ON contratos(contrato);

	-- contrato_id is a weak reference: no foreign key, installments may outlive
	-- their contract row when names diverge.
	CREATE TABLE IF NOT EXISTS parcelas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contrato_id INTEGER,
		contrato TEXT,
		ano INTEGER,
		mes INTEGER,
		data_emissao TEXT,
		data_vencimento TEXT,
		tipo TEXT,
		referente TEXT,
		classificacao TEXT,
		estabelecimento TEXT,
		status TEXT NOT NULL DEFAULT 'ABERTO',
		valor REAL,
		documento TEXT,
		data_lancamento TEXT,
		situacao TEXT NOT NULL DEFAULT 'ATIVO'
	);

	-- Cascades (situacao, delete) match by name.
	CREATE INDEX IF NOT EXISTS idx_parcelas_contrato
		ON parcelas(contrato);

	-- Period filters of the views.
	CREATE INDEX IF NOT EXISTS idx_parcelas_ano_mes
		ON parcelas(ano, mes);
	`
	_, err := s.DB().Exec(schema)
	return err
}
