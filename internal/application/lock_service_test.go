package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/venue"
)

func testEvent() *event.Event {
	return &event.Event{
		ID:        "event-1",
		VenueID:   "venue-1",
		Name:      "テストコンサート",
		StartsAt:  time.Now().Add(168 * time.Hour),
		Published: true,
	}
}

func testSeatDetail() *venue.SeatDetail {
	return &venue.SeatDetail{
		SeatID:      "seat-A1",
		SectionID:   "section-1",
		SectionName: "アリーナA",
		SeatType:    "standard",
		VenueID:     "venue-1",
		Row:         "A",
		Number:      1,
		BasePrice:   12000,
	}
}

func newLockService(
	tm *MockTxManager,
	ir *MockInventoryRepository,
	er *MockEventRepository,
	vr *MockVenueRepository,
	cache SeatHoldCache,
) *SeatLockService {
	return NewSeatLockService(tm, ir, er, vr, cache, nil, nil, 5*time.Minute)
}

func TestSeatLockService_AcquireLock(t *testing.T) {
	ctx := context.Background()

	t.Run("利用可能な座席をロックできる", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)

		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
		vr.On("GetSeatDetail", mock.Anything, "seat-A1").Return(testSeatDetail(), nil)

		rec := inventory.NewRecord("event-1", "seat-A1")
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)
		ir.On("Update", mock.Anything, mock.Anything, rec).Return(nil)

		svc := newLockService(tm, ir, er, vr, nil)
		snapshot, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, inventory.StatusLocked, snapshot.Status)
		assert.Equal(t, "user-1", *snapshot.HolderID)
		assert.Equal(t, "アリーナA", snapshot.SectionName)
		ir.AssertExpectations(t)
	})

	t.Run("未公開イベントの座席はロックできない", func(t *testing.T) {
		tm := new(MockTxManager)
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)

		ev := testEvent()
		ev.Published = false
		er.On("GetByID", mock.Anything, "event-1").Return(ev, nil)

		svc := newLockService(tm, ir, er, vr, nil)
		_, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		assert.ErrorIs(t, err, event.ErrEventNotPublished)
		tm.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("在庫レコードがなければ遅延生成してロックする", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)

		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
		vr.On("GetSeatDetail", mock.Anything, "seat-A1").Return(testSeatDetail(), nil)
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(nil, inventory.ErrSeatNotFound)
		ir.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(rec *inventory.Record) bool {
			return rec.Status == inventory.StatusLocked && rec.IsHeldBy("user-1")
		})).Return(nil)

		svc := newLockService(tm, ir, er, vr, nil)
		snapshot, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, inventory.StatusLocked, snapshot.Status)
		ir.AssertExpectations(t)
	})

	t.Run("キャッシュ上で他ホルダーが保持していれば高速リジェクトする", func(t *testing.T) {
		tm := new(MockTxManager)
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)
		cache := new(MockSeatHoldCache)

		cache.On("GetHolder", mock.Anything, "event-1", "seat-A1").Return("user-2", nil)

		svc := newLockService(tm, ir, er, vr, cache)
		_, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		assert.ErrorIs(t, err, inventory.ErrSeatUnavailable)
		// 権威ストアには到達しない
		tm.AssertNotCalled(t, "Begin", mock.Anything)
		er.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("キャッシュ上の自ホルダーエントリは高速リジェクトしない", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)
		cache := new(MockSeatHoldCache)

		cache.On("GetHolder", mock.Anything, "event-1", "seat-A1").Return("user-1", nil)
		cache.On("SetHolder", mock.Anything, "event-1", "seat-A1", "user-1", 5*time.Minute).Return(nil)
		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
		vr.On("GetSeatDetail", mock.Anything, "seat-A1").Return(testSeatDetail(), nil)

		rec := inventory.NewRecord("event-1", "seat-A1")
		rec.Lock("user-1", time.Now().Add(-1*time.Minute))
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)
		ir.On("Update", mock.Anything, mock.Anything, rec).Return(nil)

		svc := newLockService(tm, ir, er, vr, cache)
		snapshot, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, inventory.StatusLocked, snapshot.Status)
	})

	t.Run("キャッシュ参照の失敗は権威パスへフォールバックする", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)
		cache := new(MockSeatHoldCache)

		cache.On("GetHolder", mock.Anything, "event-1", "seat-A1").Return("", assert.AnError)
		cache.On("SetHolder", mock.Anything, "event-1", "seat-A1", "user-1", 5*time.Minute).Return(nil)
		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
		vr.On("GetSeatDetail", mock.Anything, "seat-A1").Return(testSeatDetail(), nil)

		rec := inventory.NewRecord("event-1", "seat-A1")
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)
		ir.On("Update", mock.Anything, mock.Anything, rec).Return(nil)

		svc := newLockService(tm, ir, er, vr, cache)
		_, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		require.NoError(t, err)
	})

	t.Run("他ホルダーの有効なロックがあれば失敗する", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)

		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
		vr.On("GetSeatDetail", mock.Anything, "seat-A1").Return(testSeatDetail(), nil)

		rec := inventory.NewRecord("event-1", "seat-A1")
		rec.Lock("user-2", time.Now())
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)

		svc := newLockService(tm, ir, er, vr, nil)
		_, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		assert.ErrorIs(t, err, inventory.ErrSeatUnavailable)
		ir.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("他ホルダーの期限切れロックは取得できる", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)

		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
		vr.On("GetSeatDetail", mock.Anything, "seat-A1").Return(testSeatDetail(), nil)

		rec := inventory.NewRecord("event-1", "seat-A1")
		rec.Lock("user-2", time.Now().Add(-10*time.Minute))
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)
		ir.On("Update", mock.Anything, mock.Anything, rec).Return(nil)

		svc := newLockService(tm, ir, er, vr, nil)
		snapshot, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		require.NoError(t, err)
		assert.Equal(t, "user-1", *snapshot.HolderID)
	})

	t.Run("予約済み・購入済みの座席はロックできない", func(t *testing.T) {
		for _, status := range []inventory.Status{inventory.StatusReserved, inventory.StatusBooked} {
			tm, _ := newCommittableTx()
			ir := new(MockInventoryRepository)
			er := new(MockEventRepository)
			vr := new(MockVenueRepository)

			er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
			vr.On("GetSeatDetail", mock.Anything, "seat-A1").Return(testSeatDetail(), nil)

			rec := inventory.NewRecord("event-1", "seat-A1")
			rec.Status = status
			ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)

			svc := newLockService(tm, ir, er, vr, nil)
			_, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

			assert.ErrorIs(t, err, inventory.ErrSeatAlreadyFinal)
		}
	})

	t.Run("座席がイベントの会場に属さなければ失敗する", func(t *testing.T) {
		tm := new(MockTxManager)
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		vr := new(MockVenueRepository)

		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
		detail := testSeatDetail()
		detail.VenueID = "venue-other"
		vr.On("GetSeatDetail", mock.Anything, "seat-A1").Return(detail, nil)

		svc := newLockService(tm, ir, er, vr, nil)
		_, err := svc.AcquireLock(ctx, "event-1", "seat-A1", "user-1")

		assert.ErrorIs(t, err, inventory.ErrInvalidSeats)
	})

	t.Run("空の識別子は拒否される", func(t *testing.T) {
		svc := newLockService(new(MockTxManager), new(MockInventoryRepository), new(MockEventRepository), new(MockVenueRepository), nil)

		_, err := svc.AcquireLock(ctx, "", "seat-A1", "user-1")
		assert.ErrorIs(t, err, inventory.ErrInvalidSeats)

		_, err = svc.AcquireLock(ctx, "event-1", "", "user-1")
		assert.ErrorIs(t, err, inventory.ErrInvalidSeats)

		_, err = svc.AcquireLock(ctx, "event-1", "seat-A1", "")
		assert.ErrorIs(t, err, inventory.ErrInvalidSeats)
	})
}

func TestSeatLockService_ReleaseLock(t *testing.T) {
	ctx := context.Background()

	t.Run("ホルダー自身はロックを解放できる", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		cache := new(MockSeatHoldCache)

		rec := inventory.NewRecord("event-1", "seat-A1")
		rec.Lock("user-1", time.Now())
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)
		ir.On("Update", mock.Anything, mock.Anything, mock.MatchedBy(func(r *inventory.Record) bool {
			return r.Status == inventory.StatusAvailable && r.HolderID == nil
		})).Return(nil)
		cache.On("Delete", mock.Anything, "event-1", "seat-A1").Return(nil)

		svc := newLockService(tm, ir, new(MockEventRepository), new(MockVenueRepository), cache)
		err := svc.ReleaseLock(ctx, "event-1", "seat-A1", "user-1")

		require.NoError(t, err)
		ir.AssertExpectations(t)
	})

	t.Run("行がない座席への解放は冪等に成功する", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(nil, inventory.ErrSeatNotFound)

		svc := newLockService(tm, ir, new(MockEventRepository), new(MockVenueRepository), nil)
		err := svc.ReleaseLock(ctx, "event-1", "seat-A1", "user-1")

		assert.NoError(t, err)
	})

	t.Run("利用可能な座席への解放は冪等に成功する", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)
		rec := inventory.NewRecord("event-1", "seat-A1")
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)

		svc := newLockService(tm, ir, new(MockEventRepository), new(MockVenueRepository), nil)
		err := svc.ReleaseLock(ctx, "event-1", "seat-A1", "user-1")

		assert.NoError(t, err)
		ir.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("非ホルダーによる解放は期限切れでも拒否される", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)

		rec := inventory.NewRecord("event-1", "seat-A1")
		rec.Lock("user-2", time.Now().Add(-10*time.Minute)) // 期限切れ
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)

		svc := newLockService(tm, ir, new(MockEventRepository), new(MockVenueRepository), nil)
		err := svc.ReleaseLock(ctx, "event-1", "seat-A1", "user-1")

		assert.ErrorIs(t, err, inventory.ErrNotLockHolder)
		// 何も変更されない
		assert.Equal(t, inventory.StatusLocked, rec.Status)
		ir.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("予約済みの座席は解放できない", func(t *testing.T) {
		tm, _ := newCommittableTx()
		ir := new(MockInventoryRepository)

		rec := inventory.NewRecord("event-1", "seat-A1")
		rec.Status = inventory.StatusReserved
		ir.On("GetForUpdate", mock.Anything, mock.Anything, "event-1", "seat-A1").Return(rec, nil)

		svc := newLockService(tm, ir, new(MockEventRepository), new(MockVenueRepository), nil)
		err := svc.ReleaseLock(ctx, "event-1", "seat-A1", "user-1")

		assert.ErrorIs(t, err, inventory.ErrSeatAlreadyFinal)
	})
}

func TestSeatLockService_ListSeats(t *testing.T) {
	ctx := context.Background()

	t.Run("期限切れロックは利用可能として提示される", func(t *testing.T) {
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)

		holder := "user-2"
		snapshots := []*inventory.SeatSnapshot{
			{SeatID: "seat-A1", Status: inventory.StatusLocked, HolderID: &holder, UpdatedAt: time.Now().Add(-10 * time.Minute)},
			{SeatID: "seat-A2", Status: inventory.StatusLocked, HolderID: &holder, UpdatedAt: time.Now()},
			{SeatID: "seat-A3", Status: inventory.StatusBooked, UpdatedAt: time.Now().Add(-10 * time.Minute)},
		}
		ir.On("ListByEvent", mock.Anything, "event-1", "").Return(snapshots, nil)

		svc := newLockService(new(MockTxManager), ir, er, new(MockVenueRepository), nil)
		result, err := svc.ListSeats(ctx, "event-1", "")

		require.NoError(t, err)
		require.Len(t, result, 3)
		assert.Equal(t, inventory.StatusAvailable, result[0].Status)
		assert.Nil(t, result[0].HolderID)
		assert.Equal(t, inventory.StatusLocked, result[1].Status)
		assert.Equal(t, inventory.StatusBooked, result[2].Status)
	})
}

func TestSeatLockService_ReclaimExpiredLocks(t *testing.T) {
	ctx := context.Background()

	t.Run("回収された座席のキャッシュエントリが削除される", func(t *testing.T) {
		ir := new(MockInventoryRepository)
		cache := new(MockSeatHoldCache)

		reclaimed := []inventory.ReclaimedSeat{
			{EventID: "event-1", SeatID: "seat-A1"},
			{EventID: "event-1", SeatID: "seat-A2"},
		}
		ir.On("ReclaimExpired", mock.Anything, 5*time.Minute, "").Return(reclaimed, nil)
		cache.On("Delete", mock.Anything, "event-1", "seat-A1").Return(nil)
		cache.On("Delete", mock.Anything, "event-1", "seat-A2").Return(nil)

		svc := newLockService(new(MockTxManager), ir, new(MockEventRepository), new(MockVenueRepository), cache)
		count, err := svc.ReclaimExpiredLocks(ctx, "")

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		cache.AssertExpectations(t)
	})

	t.Run("対象がなければ静かに0を返す", func(t *testing.T) {
		ir := new(MockInventoryRepository)
		ir.On("ReclaimExpired", mock.Anything, 5*time.Minute, "event-1").Return([]inventory.ReclaimedSeat{}, nil)

		svc := newLockService(new(MockTxManager), ir, new(MockEventRepository), new(MockVenueRepository), nil)
		count, err := svc.ReclaimExpiredLocks(ctx, "event-1")

		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestSeatLockService_MaterializeEventInventory(t *testing.T) {
	ctx := context.Background()

	t.Run("イベント会場の在庫レコードを一括生成する", func(t *testing.T) {
		ir := new(MockInventoryRepository)
		er := new(MockEventRepository)
		er.On("GetByID", mock.Anything, "event-1").Return(testEvent(), nil)
		ir.On("MaterializeForEvent", mock.Anything, "event-1").Return(500, nil)

		svc := newLockService(new(MockTxManager), ir, er, new(MockVenueRepository), nil)
		count, err := svc.MaterializeEventInventory(ctx, "event-1")

		require.NoError(t, err)
		assert.Equal(t, 500, count)
	})

	t.Run("存在しないイベントは失敗する", func(t *testing.T) {
		er := new(MockEventRepository)
		er.On("GetByID", mock.Anything, "event-x").Return(nil, event.ErrEventNotFound)

		svc := newLockService(new(MockTxManager), new(MockInventoryRepository), er, new(MockVenueRepository), nil)
		_, err := svc.MaterializeEventInventory(ctx, "event-x")

		assert.ErrorIs(t, err, event.ErrEventNotFound)
	})
}
