package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// LockManager is an in-process lock manager for deployments without Redis.
// TTLs are ignored; locks live until released.
type LockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLockManager creates an empty in-process lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]bool)}
}

var _ domain.LockManager = (*LockManager)(nil)

// Acquire takes the lock for key or returns domain.ErrLockHeld. The returned
// unlock function is safe to call more than once.
func (lm *LockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.held[key] {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = true

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			lm.mu.Lock()
			delete(lm.held, key)
			lm.mu.Unlock()
		})
	}
	return unlock, nil
}
