package txn

import (
	"context"
	"errors"
	"testing"
)

func TestPassthrough_RunsCommitHooksOnSuccess(t *testing.T) {
	var committed, rolledBack int

	err := Passthrough{}.InTx(context.Background(), func(ctx context.Context, h *Hooks) error {
		h.OnCommit(func(ctx context.Context) error { committed++; return nil })
		h.OnRollback(func(ctx context.Context) error { rolledBack++; return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("InTx error: %v", err)
	}
	if committed != 1 || rolledBack != 0 {
		t.Fatalf("expected commit hooks only, got commit=%d rollback=%d", committed, rolledBack)
	}
}

func TestPassthrough_RunsRollbackHooksOnError(t *testing.T) {
	var committed, rolledBack int
	boom := errors.New("boom")

	err := Passthrough{}.InTx(context.Background(), func(ctx context.Context, h *Hooks) error {
		h.OnCommit(func(ctx context.Context) error { committed++; return nil })
		h.OnRollback(func(ctx context.Context) error { rolledBack++; return nil })
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if committed != 0 || rolledBack != 1 {
		t.Fatalf("expected rollback hooks only, got commit=%d rollback=%d", committed, rolledBack)
	}
}

func TestHooks_SwallowHookErrors(t *testing.T) {
	err := Passthrough{}.InTx(context.Background(), func(ctx context.Context, h *Hooks) error {
		h.OnCommit(func(ctx context.Context) error { return errors.New("cleanup failed") })
		return nil
	})
	if err != nil {
		t.Fatalf("hook errors must not propagate, got %v", err)
	}
}

func TestHooks_RunEvenWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	err := Passthrough{}.InTx(ctx, func(ctx context.Context, h *Hooks) error {
		h.OnCommit(func(ctx context.Context) error {
			if ctx.Err() != nil {
				t.Fatalf("hook context must survive cancellation")
			}
			ran = true
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("InTx error: %v", err)
	}
	if !ran {
		t.Fatalf("expected hook to run")
	}
}
