package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nullpointer-labs/evmtrader/internal/model"
)

type fakeDispatcher struct {
	locked     map[string]bool
	dispatched []string
}

func (f *fakeDispatcher) Locked(pairAddress string) bool { return f.locked[pairAddress] }

func (f *fakeDispatcher) Dispatch(ctx context.Context, pair *model.PairState, ev *NormalizedEvent) {
	f.dispatched = append(f.dispatched, pair.PairAddress)
}

func testConfig() *model.Config {
	return &model.Config{MaxPositions: 5, GroupInterval: 1, MaxGroups: 10}
}

func TestIngestCreatesPairAndGroupOnFirstEvent(t *testing.T) {
	disp := &fakeDispatcher{locked: map[string]bool{}}
	e := New(func() *model.Config { return testConfig() }, disp, func(string) bool { return false })

	ev := &NormalizedEvent{PairAddress: "0xabc", LastPrice: 2.0, MinuteKey: 10}
	e.Ingest(context.Background(), ev)

	pair := e.Pair("0xabc")
	assert.NotNil(t, pair)
	assert.Equal(t, 2.0, pair.LastPrice)
	assert.Len(t, pair.Groups, 1)
	assert.Equal(t, []string{"0xabc"}, disp.dispatched)
}

func TestIngestSkipsDispatchWhenLocked(t *testing.T) {
	disp := &fakeDispatcher{locked: map[string]bool{"0xabc": true}}
	e := New(func() *model.Config { return testConfig() }, disp, func(string) bool { return false })

	e.Ingest(context.Background(), &NormalizedEvent{PairAddress: "0xabc", LastPrice: 1.0, MinuteKey: 0})
	assert.Empty(t, disp.dispatched)
}

func TestIngestFiltersExcludedPairs(t *testing.T) {
	disp := &fakeDispatcher{locked: map[string]bool{}}
	cfg := testConfig()
	cfg.ExcludePairs = []string{"0xabc"}
	e := New(func() *model.Config { return cfg }, disp, func(string) bool { return false })

	e.Ingest(context.Background(), &NormalizedEvent{PairAddress: "0xabc", LastPrice: 1.0})
	assert.Nil(t, e.Pair("0xabc"))
}

func TestOrderedGroupsReturnsOldestToNewest(t *testing.T) {
	disp := &fakeDispatcher{locked: map[string]bool{}}
	e := New(func() *model.Config { return testConfig() }, disp, func(string) bool { return false })

	e.Ingest(context.Background(), &NormalizedEvent{PairAddress: "0xabc", LastPrice: 1.0, MinuteKey: 5})
	e.Ingest(context.Background(), &NormalizedEvent{PairAddress: "0xabc", LastPrice: 1.0, MinuteKey: 2})
	e.Ingest(context.Background(), &NormalizedEvent{PairAddress: "0xabc", LastPrice: 1.0, MinuteKey: 8})

	groups := e.OrderedGroups("0xabc")
	assert.Len(t, groups, 3)
	assert.Equal(t, int64(2), groups[0].GroupKey)
	assert.Equal(t, int64(5), groups[1].GroupKey)
	assert.Equal(t, int64(8), groups[2].GroupKey)
}

func TestRunRetentionTrimsToMaxGroups(t *testing.T) {
	disp := &fakeDispatcher{locked: map[string]bool{}}
	cfg := testConfig()
	cfg.MaxGroups = 2
	e := New(func() *model.Config { return cfg }, disp, func(string) bool { return true })

	for _, mk := range []int64{1, 2, 3, 4} {
		e.Ingest(context.Background(), &NormalizedEvent{PairAddress: "0xabc", LastPrice: 1.0, MinuteKey: mk})
	}
	e.RunRetention()

	groups := e.OrderedGroups("0xabc")
	assert.Len(t, groups, 2)
	assert.Equal(t, int64(3), groups[0].GroupKey)
	assert.Equal(t, int64(4), groups[1].GroupKey)
}

func TestRunRetentionEvictsStalePairWithNoActiveTrade(t *testing.T) {
	disp := &fakeDispatcher{locked: map[string]bool{}}
	cfg := testConfig()
	e := New(func() *model.Config { return cfg }, disp, func(string) bool { return false })

	oldNow := model.NowMillis
	model.NowMillis = func() int64 { return 0 }
	e.Ingest(context.Background(), &NormalizedEvent{PairAddress: "0xabc", LastPrice: 1.0, MinuteKey: 0})
	model.NowMillis = func() int64 { return 31 * 60 * 1000 }
	defer func() { model.NowMillis = oldNow }()

	e.RunRetention()
	assert.Nil(t, e.Pair("0xabc"))
}
