package auth

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// ThrottledHasher bounds how many bcrypt computations run at once.
//
// bcrypt is CPU-bound and deliberately slow. Under a burst of logins every
// request would otherwise start its own hash and they would all slow each
// other down; with the semaphore, excess callers queue and the ones that
// are running finish at full speed.
type ThrottledHasher struct {
	next PasswordHasher
	sem  *semaphore.Weighted
}

var _ PasswordHasher = (*ThrottledHasher)(nil)

// NewThrottledHasher wraps next so at most limit Hash/Verify calls run
// concurrently. A limit <= 0 means runtime.NumCPU().
func NewThrottledHasher(next PasswordHasher, limit int) *ThrottledHasher {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return &ThrottledHasher{
		next: next,
		sem:  semaphore.NewWeighted(int64(limit)),
	}
}

func (h *ThrottledHasher) Hash(password string) (string, error) {
	// Acquire only fails when the context is done; Background never is.
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	return h.next.Hash(password)
}

func (h *ThrottledHasher) Verify(password, hash string) bool {
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return h.next.Verify(password, hash)
}
