package ledger

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/reciclamt/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRecyclingCreditsPoints(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 0)
	svc := New(st)

	got, err := svc.RecordRecycling(context.Background(), RecyclingInput{
		UserID:   "u1",
		Material: model.Plastic,
		WeightKg: 2.5,
		Location: "  Ecoponto Shopping Cuiabá ",
	})
	require.NoError(t, err)

	assert.Equal(t, 25, got.PointsEarned)
	assert.Equal(t, 25, got.NewBalance)
	assert.Equal(t, 25, got.Activity.PointsEarned)
	assert.NotEmpty(t, got.Activity.ID)
	require.NotNil(t, got.Activity.Location)
	assert.Equal(t, "Ecoponto Shopping Cuiabá", *got.Activity.Location)
	assert.Equal(t, 25, st.points("u1"))
	assert.Len(t, st.activities, 1)
}

func TestRecordRecyclingUnknownMaterialUsesDefaultRate(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 5)
	svc := New(st)

	got, err := svc.RecordRecycling(context.Background(), RecyclingInput{UserID: "u1", Material: "Madeira", WeightKg: 3})
	require.NoError(t, err)
	assert.Equal(t, 30, got.PointsEarned)
	assert.Equal(t, 35, got.NewBalance)
	assert.Nil(t, got.Activity.Location)
}

func TestRecordRecyclingRejectsBadWeight(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 0)
	svc := New(st)

	for _, w := range []float64{0, -1, math.NaN(), math.Inf(1), model.MaxWeightKg + 0.5, 1e300, math.MaxFloat64} {
		_, err := svc.RecordRecycling(context.Background(), RecyclingInput{UserID: "u1", Material: model.Paper, WeightKg: w})
		assert.ErrorIs(t, err, ErrInvalidWeight, "weight %v", w)
	}
	_, err := svc.RecordRecycling(context.Background(), RecyclingInput{UserID: "u1", Material: " ", WeightKg: 1})
	assert.ErrorIs(t, err, ErrInvalidMaterial)

	assert.Empty(t, st.activities)
	assert.Equal(t, 0, st.points("u1"))
}

func TestRecordRecyclingUnknownUser(t *testing.T) {
	st := newMemStore()
	svc := New(st)

	_, err := svc.RecordRecycling(context.Background(), RecyclingInput{UserID: "ghost", Material: model.Metal, WeightKg: 1})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, st.activities)
}

func TestRecordRecyclingStoreFailureLeavesCacheAlone(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 10)
	st.failCredit = errors.New("connection reset")
	cache := newMapCache()
	cache.Set(context.Background(), "u1", Balance{Points: 10})
	var notified int
	svc := New(st, WithCache(cache), WithNotify(func(string, int) { notified++ }))

	_, err := svc.RecordRecycling(context.Background(), RecyclingInput{UserID: "u1", Material: model.Glass, WeightKg: 1})
	require.Error(t, err)

	b, _, _ := cache.Get(context.Background(), "u1")
	assert.Equal(t, 10, b.Points)
	assert.Zero(t, notified)
}

func TestRecordRecyclingIsNotIdempotent(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 0)
	svc := New(st)
	in := RecyclingInput{UserID: "u1", Material: model.Electronics, WeightKg: 2}

	first, err := svc.RecordRecycling(context.Background(), in)
	require.NoError(t, err)
	second, err := svc.RecordRecycling(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, first.Activity.ID, second.Activity.ID)
	assert.Equal(t, 100, second.NewBalance)
	assert.Len(t, st.activities, 2)
}

func TestRedeemReward(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 600)
	st.addReward("r1", 500, model.Available)
	svc := New(st)

	got, err := svc.RedeemReward(context.Background(), "u1", "r1", 600)
	require.NoError(t, err)

	assert.Equal(t, 100, got.NewBalance)
	assert.Equal(t, 500, got.Redemption.PointsUsed)
	assert.Equal(t, model.RedemptionPending, got.Redemption.Status)
	assert.Equal(t, got.Code, got.Redemption.RedemptionCode)
	assert.Regexp(t, regexp.MustCompile(`^REC[0-9A-F]{12}$`), got.Code)
	assert.Equal(t, 100, st.points("u1"))
}

func TestRedeemRewardInsufficientSnapshot(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 25)
	st.addReward("r1", 500, model.Available)
	svc := New(st)

	_, err := svc.RedeemReward(context.Background(), "u1", "r1", 25)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Equal(t, 25, st.points("u1"))
	assert.Empty(t, st.redemptions)
}

func TestRedeemRewardStaleSnapshotRejectedByStore(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 100)
	st.addReward("r1", 500, model.Available)
	svc := New(st)

	// The caller believes it has 600 points; the store knows better.
	_, err := svc.RedeemReward(context.Background(), "u1", "r1", 600)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Equal(t, 100, st.points("u1"))
	assert.Empty(t, st.redemptions)
}

func TestRedeemRewardNotFoundAndUnavailable(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 1000)
	st.addReward("off", 100, model.Unavailable)
	st.addReward("soon", 100, model.ComingSoon)
	svc := New(st)

	_, err := svc.RedeemReward(context.Background(), "u1", "missing", 1000)
	assert.ErrorIs(t, err, ErrRewardNotFound)

	for _, id := range []string{"off", "soon"} {
		_, err := svc.RedeemReward(context.Background(), "u1", id, 1000)
		assert.ErrorIs(t, err, ErrRewardUnavailable, id)
	}
	assert.Equal(t, 1000, st.points("u1"))
}

func TestRedeemRewardLegacyCode(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 500)
	st.addReward("r1", 300, model.Available)
	clock := func() time.Time { return time.UnixMilli(1718000123456) }
	svc := New(st, WithCodeFunc(LegacyCode(clock)), WithClock(clock))

	got, err := svc.RedeemReward(context.Background(), "u1", "r1", 500)
	require.NoError(t, err)
	assert.Equal(t, "REC123456", got.Code)
}

func TestAdjustPoints(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 50)
	svc := New(st)

	balance, err := svc.AdjustPoints(context.Background(), "u1", 20, "bonus")
	require.NoError(t, err)
	assert.Equal(t, 70, balance)

	_, err = svc.AdjustPoints(context.Background(), "u1", -71, "too much")
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	_, err = svc.AdjustPoints(context.Background(), "u1", 0, "")
	assert.ErrorIs(t, err, ErrZeroAdjustment)

	for _, delta := range []int{model.MaxAdjustment + 1, -model.MaxAdjustment - 1, math.MaxInt, math.MinInt} {
		_, err = svc.AdjustPoints(context.Background(), "u1", delta, "typo")
		assert.ErrorIs(t, err, ErrAdjustmentTooLarge, "delta %d", delta)
	}
	assert.Equal(t, 70, st.points("u1"))
	assert.Equal(t, 20, st.journalSum("u1"))
}

func TestAdjustPointsBalanceCeiling(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", model.MaxPoints-5)
	svc := New(st)

	_, err := svc.AdjustPoints(context.Background(), "u1", 6, "")
	assert.ErrorIs(t, err, ErrBalanceLimit)

	balance, err := svc.AdjustPoints(context.Background(), "u1", 5, "")
	require.NoError(t, err)
	assert.Equal(t, model.MaxPoints, balance)

	_, err = svc.RecordRecycling(context.Background(), RecyclingInput{UserID: "u1", Material: model.Paper, WeightKg: model.MaxWeightKg})
	assert.ErrorIs(t, err, ErrBalanceLimit)
	assert.Empty(t, st.activities)
}

func TestBalanceSyncAfterMutation(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 0)
	st.addReward("r1", 20, model.Available)
	cache := newMapCache()
	var mu sync.Mutex
	notified := map[string]int{}
	svc := New(st, WithCache(cache), WithNotify(func(id string, p int) {
		mu.Lock()
		notified[id] = p
		mu.Unlock()
	}))
	ctx := context.Background()

	_, err := svc.RecordRecycling(ctx, RecyclingInput{UserID: "u1", Material: model.Metal, WeightKg: 2})
	require.NoError(t, err)
	b, ok, _ := cache.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, Balance{Points: 30, Version: 1}, b)
	assert.Equal(t, 30, notified["u1"])

	_, err = svc.RedeemReward(ctx, "u1", "r1", b.Points)
	require.NoError(t, err)
	balance, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
	assert.Equal(t, 10, notified["u1"])
}

func TestBalanceReadsThroughCache(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 42)
	cache := newMapCache()
	svc := New(st, WithCache(cache))
	ctx := context.Background()

	balance, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 42, balance)

	// The cached view wins until refreshed.
	st.addUser("u1", 7)
	balance, _ = svc.Balance(ctx, "u1")
	assert.Equal(t, 42, balance)

	balance, err = svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, balance)

	svc.Forget(ctx, "u1")
	_, ok, _ := cache.Get(ctx, "u1")
	assert.False(t, ok)

	_, err = svc.Balance(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPublishKeepsNewestBalance(t *testing.T) {
	cache := newMapCache()
	var notified []int
	svc := New(newMemStore(), WithCache(cache), WithNotify(func(_ string, p int) { notified = append(notified, p) }))
	ctx := context.Background()

	// Two commits whose publishes arrive in reverse order.
	svc.publish(ctx, "u1", Balance{Points: 30, Version: 2})
	svc.publish(ctx, "u1", Balance{Points: 15, Version: 1})

	b, ok, _ := cache.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, Balance{Points: 30, Version: 2}, b)
	assert.Equal(t, []int{30, 15}, notified)
}

func TestCachedBalanceSettlesOnLastCommit(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 0)
	st.addReward("r1", 10, model.Available)
	cache := newMapCache()
	svc := New(st, WithCache(cache))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := svc.RecordRecycling(ctx, RecyclingInput{UserID: "u1", Material: model.Metal, WeightKg: 1})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.AdjustPoints(ctx, "u1", 5, "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, st.points("u1"), balance)
	assert.Equal(t, 20*15+20*5, balance)
}

func TestConcurrentOperationsSumDeltas(t *testing.T) {
	st := newMemStore()
	st.addUser("u1", 1000)
	st.addReward("r1", 100, model.Available)
	svc := New(st)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.RecordRecycling(ctx, RecyclingInput{UserID: "u1", Material: model.Paper, WeightKg: 1})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.RedeemReward(ctx, "u1", "r1", 1000)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000+n*8-n*100, st.points("u1"))
	assert.Equal(t, st.points("u1")-1000, st.journalSum("u1"))
}
