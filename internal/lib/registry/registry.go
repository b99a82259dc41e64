// Package registry keeps the boardroom allocation table the treasury fans
// seigniorage out over.  It is plain in-memory state behind a lock; the
// treasury only reads it through the AllocationRegistry capability.
package registry

import (
	"sync"

	sdkerrors "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/stableunit/policyd/internal/lib/token"
	"github.com/stableunit/policyd/internal/lib/treasury"
)

const codespace = "registry"

var (
	ErrUnauthorized     = sdkerrors.Register(codespace, 2, "caller is not the registry operator")
	ErrUnknownBoardroom = sdkerrors.Register(codespace, 3, "boardroom not registered")
	ErrDuplicate        = sdkerrors.Register(codespace, 4, "boardroom already registered")
	ErrBadPoints        = sdkerrors.Register(codespace, 5, "allocation points must be non-negative")
	ErrIndexOutOfRange  = sdkerrors.Register(codespace, 6, "boardroom index out of range")
)

type Registry struct {
	mu       sync.RWMutex
	operator token.Address
	entries  []treasury.BoardroomAllocation
	index    map[token.Address]int
}

func New(operator token.Address) *Registry {
	return &Registry{
		operator: operator,
		index:    map[token.Address]int{},
	}
}

// Add registers a boardroom with its allocation weights, active immediately.
func (r *Registry) Add(caller, addr token.Address, target treasury.SeigniorageReceiver, cashPoints, sharePoints math.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	if _, ok := r.index[addr]; ok {
		return sdkerrors.Wrapf(ErrDuplicate, "%s", addr)
	}
	if cashPoints.IsNegative() || sharePoints.IsNegative() {
		return ErrBadPoints
	}
	r.index[addr] = len(r.entries)
	r.entries = append(r.entries, treasury.BoardroomAllocation{
		Addr:        addr,
		Target:      target,
		Active:      true,
		CashPoints:  cashPoints,
		SharePoints: sharePoints,
	})
	return nil
}

// SetActive toggles a boardroom in or out of the fan-out without touching
// its weights.
func (r *Registry) SetActive(caller, addr token.Address, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	i, ok := r.index[addr]
	if !ok {
		return sdkerrors.Wrapf(ErrUnknownBoardroom, "%s", addr)
	}
	r.entries[i].Active = active
	return nil
}

func (r *Registry) SetPoints(caller, addr token.Address, cashPoints, sharePoints math.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.operator {
		return sdkerrors.Wrapf(ErrUnauthorized, "%s", caller)
	}
	i, ok := r.index[addr]
	if !ok {
		return sdkerrors.Wrapf(ErrUnknownBoardroom, "%s", addr)
	}
	if cashPoints.IsNegative() || sharePoints.IsNegative() {
		return ErrBadPoints
	}
	r.entries[i].CashPoints = cashPoints
	r.entries[i].SharePoints = sharePoints
	return nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) Boardroom(i int) (treasury.BoardroomAllocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.entries) {
		return treasury.BoardroomAllocation{}, sdkerrors.Wrapf(ErrIndexOutOfRange, "%d", i)
	}
	return r.entries[i], nil
}

// Point totals run over active entries only, so deactivating a boardroom
// redistributes its weight instead of stranding a share of every epoch.
func (r *Registry) TotalCashAllocationPoints() math.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := math.ZeroInt()
	for _, e := range r.entries {
		if e.Active {
			total = total.Add(e.CashPoints)
		}
	}
	return total
}

func (r *Registry) TotalShareAllocationPoints() math.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := math.ZeroInt()
	for _, e := range r.entries {
		if e.Active {
			total = total.Add(e.SharePoints)
		}
	}
	return total
}
