/*
saga.go - Atomic multi-write execution

PURPOSE:
  Several engine operations write to both tables (create contract + its installments,
  contract situacao + installment situacao, contract delete + installment delete).
  Atomically runs those writes as one unit:

    - TxStore backends: all steps inside WithTx, rolled back on the first error.
    - Plain Store backends (PostgREST): steps run in order; on failure the completed
      steps are compensated in reverse order.

STEP CONTRACT:
  Action and Compensate receive the Store to write through (the transaction view when
  one exists). Steps share results through closure variables.

SEE ALSO:
  - errors.go: SagaError
  - parcelas/lifecycle.go: the callers
*/
package table

import "context"

// Step is one write in an atomic unit.
type Step struct {
	Name       string
	Action     func(ctx context.Context, s Store) error
	Compensate func(ctx context.Context, s Store) error
}

// Atomically runs steps as a transaction when s supports it, otherwise as a saga.
func Atomically(ctx context.Context, s Store, steps ...Step) error {
	if txs, ok := s.(TxStore); ok {
		return txs.WithTx(ctx, func(tx Store) error {
			for _, step := range steps {
				if err := step.Action(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return runSaga(ctx, s, steps)
}

func runSaga(ctx context.Context, s Store, steps []Step) error {
	for i, step := range steps {
		err := step.Action(ctx, s)
		if err == nil {
			continue
		}
		sagaErr := &SagaError{Step: step.Name, Err: err}
		for j := i - 1; j >= 0; j-- {
			if steps[j].Compensate == nil {
				continue
			}
			// Compensation must run even if the caller's context is already done.
			if cerr := steps[j].Compensate(context.WithoutCancel(ctx), s); cerr != nil {
				sagaErr.Compensations = append(sagaErr.Compensations, cerr)
			}
		}
		return sagaErr
	}
	return nil
}
