package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"go.uber.org/zap"
)

// fakeDraftStore 计数落盘次数的内存替身
type fakeDraftStore struct {
	mu     sync.Mutex
	saves  int
	drafts map[string]*entity.Draft
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]*entity.Draft)}
}

func (f *fakeDraftStore) key(userID, formKey string) string {
	return userID + "|" + formKey
}

func (f *fakeDraftStore) Save(ctx context.Context, draft *entity.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.drafts[f.key(draft.UserID, draft.FormKey)] = draft
	return nil
}

func (f *fakeDraftStore) Find(ctx context.Context, userID, formKey string) (*entity.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[f.key(userID, formKey)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (f *fakeDraftStore) FindByUser(ctx context.Context, userID string) ([]entity.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Draft
	for _, d := range f.drafts {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDraftStore) Delete(ctx context.Context, userID, formKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, f.key(userID, formKey))
	return nil
}

func (f *fakeDraftStore) DeleteByUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, d := range f.drafts {
		if d.UserID == userID {
			delete(f.drafts, k)
		}
	}
	return nil
}

func (f *fakeDraftStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func TestDraftDebounceCoalescesRapidEdits(t *testing.T) {
	store := newFakeDraftStore()
	svc := newDraftService(store, 50*time.Millisecond, zap.NewNop())

	// 防抖窗口内连续10次编辑，只应落盘一次且是最后一版
	for i := 0; i < 10; i++ {
		state, _ := json.Marshal(map[string]int{"rev": i})
		svc.Touch("u1", "inspection:a1", state)
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	if got := store.saveCount(); got != 1 {
		t.Fatalf("save count = %d, want 1", got)
	}

	draft, err := store.Find(context.Background(), "u1", "inspection:a1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	var state map[string]int
	json.Unmarshal(draft.State, &state)
	if state["rev"] != 9 {
		t.Errorf("persisted rev = %d, want 9 (last edit wins)", state["rev"])
	}
}

func TestDraftDebounceSeparateKeys(t *testing.T) {
	store := newFakeDraftStore()
	svc := newDraftService(store, 30*time.Millisecond, zap.NewNop())

	svc.Touch("u1", "inspection:a1", json.RawMessage(`{"a":1}`))
	svc.Touch("u1", "inspection:a2", json.RawMessage(`{"b":2}`))
	svc.Touch("u2", "inspection:a1", json.RawMessage(`{"c":3}`))

	time.Sleep(100 * time.Millisecond)

	if got := store.saveCount(); got != 3 {
		t.Fatalf("save count = %d, want 3 (independent per user+form)", got)
	}
}

func TestDraftFlushCancelsPendingTimer(t *testing.T) {
	store := newFakeDraftStore()
	svc := newDraftService(store, 50*time.Millisecond, zap.NewNop())

	svc.Touch("u1", "f1", json.RawMessage(`{"v":1}`))
	if err := svc.Flush(context.Background(), "u1", "f1", json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	// Flush落盘一次，被取消的定时器不再追加
	if got := store.saveCount(); got != 1 {
		t.Fatalf("save count = %d, want 1", got)
	}
	draft, _ := store.Find(context.Background(), "u1", "f1")
	var state map[string]int
	json.Unmarshal(draft.State, &state)
	if state["v"] != 2 {
		t.Errorf("persisted v = %d, want 2", state["v"])
	}
}

func TestDraftClearStopsTimerAndDeletes(t *testing.T) {
	store := newFakeDraftStore()
	svc := newDraftService(store, 40*time.Millisecond, zap.NewNop())

	svc.Flush(context.Background(), "u1", "f1", json.RawMessage(`{"v":1}`))
	svc.Touch("u1", "f1", json.RawMessage(`{"v":2}`))

	if err := svc.Clear(context.Background(), "u1", "f1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := svc.Restore(context.Background(), "u1", "f1"); err == nil {
		t.Error("draft still present after Clear")
	}
	// Clear之后在途定时器不得复活草稿
	if got := store.saveCount(); got != 1 {
		t.Errorf("save count = %d, want 1", got)
	}
}

func TestDraftClearAllDropsUserDraftsOnly(t *testing.T) {
	store := newFakeDraftStore()
	svc := newDraftService(store, 10*time.Millisecond, zap.NewNop())

	svc.Flush(context.Background(), "u1", "f1", json.RawMessage(`{}`))
	svc.Flush(context.Background(), "u1", "f2", json.RawMessage(`{}`))
	svc.Flush(context.Background(), "u2", "f1", json.RawMessage(`{}`))

	if err := svc.ClearAll(context.Background(), "u1"); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	u1, _ := svc.RestoreAll(context.Background(), "u1")
	if len(u1) != 0 {
		t.Errorf("u1 drafts = %d, want 0", len(u1))
	}
	u2, _ := svc.RestoreAll(context.Background(), "u2")
	if len(u2) != 1 {
		t.Errorf("u2 drafts = %d, want 1", len(u2))
	}
}
