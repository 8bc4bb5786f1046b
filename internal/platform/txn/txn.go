package txn

import (
	"context"

	"dog-adoption-service/internal/platform/logger"
)

// Hook es una acción de compensación contra el almacenamiento externo.
// Su error nunca se propaga: el resultado de la transacción ya es definitivo.
type Hook func(ctx context.Context) error

// Hooks acumula callbacks ligados a la unidad de trabajo en curso.
// OnCommit difiere borrados externos hasta después del COMMIT;
// OnRollback compensa assets ya subidos si la unidad aborta.
type Hooks struct {
	commit   []Hook
	rollback []Hook
}

func (h *Hooks) OnCommit(fn Hook) {
	h.commit = append(h.commit, fn)
}

func (h *Hooks) OnRollback(fn Hook) {
	h.rollback = append(h.rollback, fn)
}

// RunCommit ejecuta los callbacks post-commit. Fallas se loguean y se tragan.
func (h *Hooks) RunCommit(ctx context.Context, log logger.Logger) {
	run(ctx, h.commit, log, "post-commit cleanup failed")
}

// RunRollback ejecuta los callbacks post-rollback. Fallas se loguean y se tragan.
func (h *Hooks) RunRollback(ctx context.Context, log logger.Logger) {
	run(ctx, h.rollback, log, "post-rollback cleanup failed")
}

func run(ctx context.Context, hooks []Hook, log logger.Logger, msg string) {
	// El request pudo haberse cancelado; la compensación corre igual.
	ctx = context.WithoutCancel(ctx)
	for _, fn := range hooks {
		if err := fn(ctx); err != nil && log != nil {
			log.Warn(msg, map[string]any{"error": err.Error()})
		}
	}
}

// Runner delimita una unidad de trabajo atómica contra el store relacional.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, h *Hooks) error) error
}

// Passthrough es el fallback síncrono: sin transacción activa, el cuerpo
// corre directo y los callbacks se ejecutan inmediatamente según el resultado.
// Es también el runner del wiring in-memory.
type Passthrough struct {
	Log logger.Logger
}

func (p Passthrough) InTx(ctx context.Context, fn func(ctx context.Context, h *Hooks) error) error {
	h := &Hooks{}
	if err := fn(ctx, h); err != nil {
		h.RunRollback(ctx, p.Log)
		return err
	}
	h.RunCommit(ctx, p.Log)
	return nil
}
