package points

import (
	"context"
	"sync"
)

type awardKey struct {
	userID uint
	action string
}

// UnitOfWork remembers which (user, action) pairs were already awarded
// during one logical operation, usually one HTTP request.
type UnitOfWork struct {
	mu      sync.Mutex
	awarded map[awardKey]struct{}
}

type unitKey struct{}

// WithUnitOfWork returns a context carrying a fresh unit of work.
func WithUnitOfWork(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitKey{}, &UnitOfWork{awarded: make(map[awardKey]struct{})})
}

// UnitFromContext returns the unit of work carried by ctx, if any.
func UnitFromContext(ctx context.Context) (*UnitOfWork, bool) {
	u, ok := ctx.Value(unitKey{}).(*UnitOfWork)
	return u, ok && u != nil
}

// claim marks (user, action) as awarded. It returns false if it already was.
func (u *UnitOfWork) claim(userID uint, action string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := awardKey{userID: userID, action: action}
	if _, done := u.awarded[key]; done {
		return false
	}
	u.awarded[key] = struct{}{}
	return true
}

func (u *UnitOfWork) release(userID uint, action string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	delete(u.awarded, awardKey{userID: userID, action: action})
}

// Awarded reports whether (user, action) was awarded in this unit.
func (u *UnitOfWork) Awarded(userID uint, action string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	_, done := u.awarded[awardKey{userID: userID, action: action}]
	return done
}
