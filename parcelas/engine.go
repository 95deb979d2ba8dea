package parcelas

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/warp/parcelas/calendar"
	"github.com/warp/parcelas/table"
	"go.uber.org/zap"
)

// =============================================================================
// ENGINE
// =============================================================================

// Outcomes reported to a Recorder.
const (
	OutcomeOK          = "ok"
	OutcomeClientError = "client_error"
	OutcomeStoreError  = "store_error"
)

// Outcome classifies an operation result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsClientError(err):
		return OutcomeClientError
	default:
		return OutcomeStoreError
	}
}

// Recorder receives one call per write operation.
type Recorder interface {
	ObserveOperation(op, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string) {}

// Options configures an Engine. Zero values pick defaults.
type Options struct {
	CacheTTL     time.Duration
	Calendar     calendar.Calendar
	Logger       *zap.Logger
	Recorder     Recorder
	OnCacheEvent func(t table.Name, event string)
}

// Engine runs generation and lifecycle operations against a store.
// Reads go through a TTL cache that every write invalidates.
type Engine struct {
	store table.Store
	cache *table.Cache
	cal   calendar.Calendar
	log   *zap.Logger
	rec   Recorder
}

func NewEngine(s table.Store, opts Options) *Engine {
	cache := table.NewCache(s, opts.CacheTTL)
	cache.OnEvent = opts.OnCacheEvent
	e := &Engine{
		store: s,
		cache: cache,
		cal:   opts.Calendar,
		log:   opts.Logger,
		rec:   opts.Recorder,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.rec == nil {
		e.rec = nopRecorder{}
	}
	return e
}

// Calendar returns the engine's clock.
func (e *Engine) Calendar() calendar.Calendar { return e.cal }

// Store returns the underlying store.
func (e *Engine) Store() table.Store { return e.store }

// finish records, logs and invalidates the cache after a write.
// The cache is dropped on store failures too since a saga may have left partial writes.
func (e *Engine) finish(op string, err error, fields ...zap.Field) error {
	e.rec.ObserveOperation(op, Outcome(err))
	if !errors.Is(err, ErrValidation) {
		e.cache.Invalidate()
	}
	if err != nil {
		e.log.Warn(op+" failed", append(fields, zap.Error(err))...)
		return err
	}
	e.log.Info(op, fields...)
	return nil
}

// =============================================================================
// READS (cached)
// =============================================================================

// Contracts returns every contract ordered by id.
func (e *Engine) Contracts(ctx context.Context) ([]Contract, error) {
	rows, err := e.cache.All(ctx, table.Contracts)
	if err != nil {
		return nil, err
	}
	return ContractsFromRows(rows)
}

func (e *Engine) Contract(ctx context.Context, id int64) (Contract, error) {
	all, err := e.Contracts(ctx)
	if err != nil {
		return Contract{}, err
	}
	return FindContract(all, id)
}

// Installments returns every installment ordered by id.
func (e *Engine) Installments(ctx context.Context) ([]Installment, error) {
	rows, err := e.cache.All(ctx, table.Installments)
	if err != nil {
		return nil, err
	}
	return InstallmentsFromRows(rows)
}

// Query returns the installments f matches.
func (e *Engine) Query(ctx context.Context, f FilterState) ([]Installment, error) {
	all, err := e.Installments(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(all), nil
}

// QueryContracts returns the contracts selected by f, ordered by id.
func (e *Engine) QueryContracts(ctx context.Context, f ContractFilter) ([]Contract, error) {
	all, err := e.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(all), nil
}

// Choices lists the distinct values users pick from when creating contracts.
type Choices struct {
	Estabelecimentos []string `json:"estabelecimentos"`
	Classificacoes   []string `json:"classificacoes"`
	Contratos        []string `json:"contratos"`
}

// ContractChoices collects the distinct non-blank estabelecimento, classificacao and
// contract names currently in use, sorted.
func (e *Engine) ContractChoices(ctx context.Context) (Choices, error) {
	all, err := e.Contracts(ctx)
	if err != nil {
		return Choices{}, err
	}
	est, cls, names := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, c := range all {
		est[c.Estabelecimento] = true
		cls[c.Classificacao] = true
		names[c.Name] = true
	}
	return Choices{
		Estabelecimentos: sortedKeys(est),
		Classificacoes:   sortedKeys(cls),
		Contratos:        sortedKeys(names),
	}, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Renewal is an expired contract offered for renewal.
type Renewal struct {
	Contract    Contract `json:"contrato"`
	DaysOverdue int      `json:"dias_vencido"`
}

// RenewalCandidates lists contracts whose termino is before today, oldest first.
func (e *Engine) RenewalCandidates(ctx context.Context) ([]Renewal, error) {
	all, err := e.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	today := e.cal.Today()
	var out []Renewal
	for _, c := range all {
		if !c.Expired(today) {
			continue
		}
		out = append(out, Renewal{
			Contract:    c,
			DaysOverdue: calendar.DaysBetween(c.End.Time, today),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Contract.End.Before(out[j].Contract.End.Time)
	})
	return out, nil
}
