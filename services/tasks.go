package services

import (
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// TaskRunner führt Fire-and-Forget-Arbeit in einem begrenzten Workerpool aus.
// Submit kehrt immer sofort zurück: ist der Pool voll, wird die Einheit
// verworfen und geloggt statt den Aufrufer zu blockieren. Zustellgarantien
// über einen Prozess-Crash hinaus gibt es nicht.
type TaskRunner struct {
	pool   *ants.Pool
	Logger *zap.Logger
}

// NewTaskRunner erstellt einen TaskRunner mit size Workern.
func NewTaskRunner(size int, logger *zap.Logger) (*TaskRunner, error) {
	// Nonblocking: bei vollem Pool liefert Submit ErrPoolOverload statt auf
	// einen freien Worker zu warten. HTTP-Handler dürfen hier nie hängen.
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &TaskRunner{pool: pool, Logger: logger}, nil
}

// Submit reiht eine Arbeitseinheit ein und kehrt sofort zurück.
func (t *TaskRunner) Submit(name string, fn func()) {
	err := t.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				t.Logger.Error("Hintergrund-Task ist gepanict", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		fn()
	})
	if err != nil {
		// Voller Pool: Einheit verwerfen. Debatten holt der nächste
		// Leser-Request oder der Batch-Lauf nach.
		t.Logger.Error("Hintergrund-Task konnte nicht eingereiht werden, wird verworfen",
			zap.String("task", name), zap.Error(err))
	}
}

// Release gibt den Workerpool frei.
func (t *TaskRunner) Release() {
	t.pool.Release()
}
