package popup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labsite/internal/flagstore"
)

type countingKV struct {
	flags map[string]bool
	gets  int
	sets  int
	fail  bool
}

func newCountingKV() *countingKV {
	return &countingKV{flags: map[string]bool{}}
}

func (k *countingKV) Get(_ context.Context, key string) (bool, error) {
	k.gets++
	if k.fail {
		return false, errors.New("kv down")
	}
	return k.flags[key], nil
}

func (k *countingKV) Set(_ context.Context, key string, value bool) error {
	k.sets++
	if k.fail {
		return errors.New("kv down")
	}
	k.flags[key] = value
	return nil
}

func TestGateFirstLoadShows(t *testing.T) {
	g := NewGate(newCountingKV(), newCountingKV())
	show, err := g.ShouldShow(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, show)
}

func TestGateDismissForSession(t *testing.T) {
	ctx := context.Background()
	durable := newCountingKV()
	g := NewGate(durable, newCountingKV())

	require.NoError(t, g.Dismiss(ctx, 3, false))
	show, err := g.ShouldShow(ctx, 3)
	require.NoError(t, err)
	assert.False(t, show)
	assert.False(t, durable.flags[DurablePrefix+"3"])

	nextSession := NewGate(durable, newCountingKV())
	show, err = nextSession.ShouldShow(ctx, 3)
	require.NoError(t, err)
	assert.True(t, show)
}

func TestGateDismissPersist(t *testing.T) {
	ctx := context.Background()
	durable := newCountingKV()
	session := newCountingKV()
	g := NewGate(durable, session)

	require.NoError(t, g.Dismiss(ctx, 4, true))
	assert.True(t, session.flags[SessionPrefix+"4"])
	assert.True(t, durable.flags[DurablePrefix+"4"])

	nextSession := NewGate(durable, newCountingKV())
	show, err := nextSession.ShouldShow(ctx, 4)
	require.NoError(t, err)
	assert.False(t, show)
}

func TestGateDismissViaLink(t *testing.T) {
	ctx := context.Background()
	durable := newCountingKV()
	g := NewGate(durable, newCountingKV())

	var opened []string
	open := func(u string) error {
		opened = append(opened, u)
		return nil
	}
	require.NoError(t, g.DismissViaLink(ctx, Record{ID: 5, LinkURL: "https://lab.example/news"}, open))
	require.NoError(t, g.DismissViaLink(ctx, Record{ID: 6}, open))

	assert.Equal(t, []string{"https://lab.example/news"}, opened)
	assert.Empty(t, durable.flags)
	for _, id := range []int{5, 6} {
		show, err := g.ShouldShow(ctx, id)
		require.NoError(t, err)
		assert.False(t, show)
	}
}

func TestGateVisibleEvaluatesEachActivePopup(t *testing.T) {
	ctx := context.Background()
	g := NewGate(newCountingKV(), newCountingKV())
	require.NoError(t, g.Dismiss(ctx, 2, false))

	records := []Record{
		{ID: 1, IsActive: true},
		{ID: 2, IsActive: true},
		{ID: 3, IsActive: false},
		{ID: 4, IsActive: true},
	}
	visible, err := g.Visible(ctx, records)
	require.NoError(t, err)
	ids := make([]int, 0, len(visible))
	for _, r := range visible {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{1, 4}, ids)
}

func TestGatePropagatesStoreErrors(t *testing.T) {
	ctx := context.Background()
	durable := newCountingKV()
	durable.fail = true
	g := NewGate(durable, newCountingKV())

	_, err := g.ShouldShow(ctx, 1)
	require.Error(t, err)
	require.NoError(t, g.Dismiss(ctx, 1, false))
	require.Error(t, g.Dismiss(ctx, 1, true))
}

func TestGateDailyExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	durable := flagstore.NewFileStore(filepath.Join(t.TempDir(), "flags.json"))
	g := NewGate(durable, flagstore.NewSessionStore(8, time.Hour),
		WithDurableExpiry(EndOfDay(time.UTC)),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, g.Dismiss(ctx, 9, true))

	seen, err := durable.Get(ctx, DurablePrefix+"9")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestEndOfDay(t *testing.T) {
	now := time.Date(2026, 5, 1, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), EndOfDay(time.UTC)(now))

	seoul := time.FixedZone("KST", 9*60*60)
	assert.Equal(t, time.Date(2026, 5, 3, 0, 0, 0, 0, seoul), EndOfDay(seoul)(now))
}

func TestGateExpiryFallsBackWithoutExpiringStore(t *testing.T) {
	ctx := context.Background()
	durable := newCountingKV()
	g := NewGate(durable, newCountingKV(), WithDurableExpiry(EndOfDay(time.UTC)))
	require.NoError(t, g.Dismiss(ctx, 10, true))
	assert.True(t, durable.flags[DurablePrefix+"10"])
}
