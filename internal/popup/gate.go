package popup

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"labsite/internal/flagstore"
)

const (
	DurablePrefix = "popup_hide_"
	SessionPrefix = "popup_closed_"
)

// ExpiryPolicy returns when a durable "don't show again" flag set at now
// stops applying. A zero time means it never expires.
type ExpiryPolicy func(now time.Time) time.Time

// EndOfDay expires durable flags at the next local midnight in loc.
func EndOfDay(loc *time.Location) ExpiryPolicy {
	if loc == nil {
		loc = time.Local
	}
	return func(now time.Time) time.Time {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, loc)
	}
}

type GateOption func(*Gate)

// WithDurableExpiry enables expiring durable flags. The durable store must
// implement flagstore.ExpiringKV; otherwise flags are stored without expiry.
func WithDurableExpiry(policy ExpiryPolicy) GateOption {
	return func(g *Gate) {
		g.expiry = policy
	}
}

func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// Gate decides whether a popup should be shown, from a durable flag and a
// session flag keyed by popup id.
type Gate struct {
	durable flagstore.KV
	session flagstore.KV
	expiry  ExpiryPolicy
	now     func() time.Time
}

func NewGate(durable, session flagstore.KV, opts ...GateOption) *Gate {
	g := &Gate{
		durable: durable,
		session: session,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func durableKey(id int) string { return DurablePrefix + strconv.Itoa(id) }
func sessionKey(id int) string { return SessionPrefix + strconv.Itoa(id) }

// ShouldShow is true iff neither the durable nor the session flag is set.
func (g *Gate) ShouldShow(ctx context.Context, id int) (bool, error) {
	seen, err := g.durable.Get(ctx, durableKey(id))
	if err != nil {
		return false, fmt.Errorf("read durable flag for popup %d: %w", id, err)
	}
	if seen {
		return false, nil
	}
	closed, err := g.session.Get(ctx, sessionKey(id))
	if err != nil {
		return false, fmt.Errorf("read session flag for popup %d: %w", id, err)
	}
	return !closed, nil
}

// Dismiss always suppresses the popup for the rest of the session; persist
// additionally suppresses it across sessions.
func (g *Gate) Dismiss(ctx context.Context, id int, persist bool) error {
	if err := g.session.Set(ctx, sessionKey(id), true); err != nil {
		return fmt.Errorf("write session flag for popup %d: %w", id, err)
	}
	if !persist {
		return nil
	}
	if g.expiry != nil {
		if until := g.expiry(g.now()); !until.IsZero() {
			if exp, ok := g.durable.(flagstore.ExpiringKV); ok {
				if err := exp.SetUntil(ctx, durableKey(id), until); err != nil {
					return fmt.Errorf("write durable flag for popup %d: %w", id, err)
				}
				return nil
			}
			log.Printf("popup gate: durable store cannot expire flags; popup %d hidden without expiry", id)
		}
	}
	if err := g.durable.Set(ctx, durableKey(id), true); err != nil {
		return fmt.Errorf("write durable flag for popup %d: %w", id, err)
	}
	return nil
}

// DismissViaLink dismisses rec for this session and then opens its link, if
// any, through open.
func (g *Gate) DismissViaLink(ctx context.Context, rec Record, open func(url string) error) error {
	if err := g.Dismiss(ctx, rec.ID, false); err != nil {
		return err
	}
	if rec.LinkURL == "" || open == nil {
		return nil
	}
	return open(rec.LinkURL)
}

// Visible evaluates every active record once and returns those to show, in
// input order. Popups are independent; all qualifying ones are returned.
func (g *Gate) Visible(ctx context.Context, records []Record) ([]Record, error) {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.IsActive {
			continue
		}
		show, err := g.ShouldShow(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if show {
			out = append(out, r)
		}
	}
	return out, nil
}
