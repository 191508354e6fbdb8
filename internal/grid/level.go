package grid

import (
	"fmt"
	"time"

	boterrors "gridbot/internal/errors"
)

// Side is the direction of a level's primary order.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Opposite returns the counter-order side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// LevelState is the lifecycle state of a grid level.
type LevelState string

const (
	StateEmpty       LevelState = "EMPTY"
	StateOrderPlaced LevelState = "ORDER_PLACED"
	StateFilled      LevelState = "FILLED"
	StatePairPlaced  LevelState = "PAIR_PLACED"
	StateClosed      LevelState = "CLOSED"
)

// Fill records an observed execution, including slippage against the
// level's nominal price.
type Fill struct {
	OrderID string
	Price   float64
	Qty     float64
	Fee     float64
	Time    time.Time
}

// Level is one rung of the grid ladder. A level holds at most one
// outstanding order at a time; the engine drives it through
// EMPTY -> ORDER_PLACED -> FILLED -> PAIR_PLACED -> CLOSED, or back to
// EMPTY when the outstanding order is cancelled.
type Level struct {
	Index      int
	Generation uint64
	Side       Side
	Price      float64
	Qty        float64
	State      LevelState

	OrderID     string
	PairOrderID string
	Entry       *Fill
	Exit        *Fill
}

func transitionError(l *Level, op string) error {
	return fmt.Errorf("%w: level %d cannot %s from %s",
		boterrors.ErrInvalidTransition, l.Index, op, l.State)
}

// PlaceOrder records the primary order submission. Requires EMPTY so a
// level never carries more than one outstanding order.
func (l *Level) PlaceOrder(orderID string) error {
	if l.State != StateEmpty {
		return transitionError(l, "place order")
	}
	l.OrderID = orderID
	l.State = StateOrderPlaced
	return nil
}

// MarkFilled records the primary fill with its observed execution data.
func (l *Level) MarkFilled(fill Fill) error {
	if l.State != StateOrderPlaced {
		return transitionError(l, "fill")
	}
	f := fill
	l.Entry = &f
	l.State = StateFilled
	return nil
}

// PlacePair records the counter-order submission after a primary fill.
func (l *Level) PlacePair(orderID string) error {
	if l.State != StateFilled {
		return transitionError(l, "place pair order")
	}
	l.PairOrderID = orderID
	l.State = StatePairPlaced
	return nil
}

// Close records the counter-order fill, completing the cycle.
func (l *Level) Close(fill Fill) error {
	if l.State != StatePairPlaced {
		return transitionError(l, "close")
	}
	f := fill
	l.Exit = &f
	l.State = StateClosed
	return nil
}

// Reset returns a non-closed level to EMPTY after its outstanding order
// is cancelled or its submission failed. Closed levels are terminal.
func (l *Level) Reset() error {
	if l.State == StateClosed {
		return transitionError(l, "reset")
	}
	l.State = StateEmpty
	l.OrderID = ""
	l.PairOrderID = ""
	l.Entry = nil
	l.Exit = nil
	return nil
}

// HasOutstandingOrder reports whether an order is resting on the book
// for this level.
func (l *Level) HasOutstandingOrder() bool {
	return l.State == StateOrderPlaced || l.State == StatePairPlaced
}

// OutstandingOrderID returns the ID of the order currently resting on
// the book, or "" when there is none.
func (l *Level) OutstandingOrderID() string {
	switch l.State {
	case StateOrderPlaced:
		return l.OrderID
	case StatePairPlaced:
		return l.PairOrderID
	default:
		return ""
	}
}

// Clone returns a copy for read-only snapshots.
func (l *Level) Clone() Level {
	c := *l
	if l.Entry != nil {
		e := *l.Entry
		c.Entry = &e
	}
	if l.Exit != nil {
		e := *l.Exit
		c.Exit = &e
	}
	return c
}
