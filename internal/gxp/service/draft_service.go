package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"go.uber.org/zap"
)

// draftStore 草稿落盘接口（测试替身用）
type draftStore interface {
	Save(ctx context.Context, draft *entity.Draft) error
	Find(ctx context.Context, userID, formKey string) (*entity.Draft, error)
	FindByUser(ctx context.Context, userID string) ([]entity.Draft, error)
	Delete(ctx context.Context, userID, formKey string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// DraftService 表单草稿自动保存
//
// 每个 (用户, 表单key) 一台状态机：Idle → Editing → (Saving) → Editing | Cleared。
// 编辑触发Touch后在防抖窗口（默认1秒）无新改动才落盘；新改动取消并重排定时器，
// 同key永远只有一个活动定时器，只持久化最终状态。
// 提交成功Clear该key；登出放弃ClearAll；会话开始Restore直接回到Editing。
type DraftService struct {
	store    draftStore
	debounce time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[draftKey]*time.Timer
}

type draftKey struct {
	userID  string
	formKey string
}

// NewDraftService 创建草稿服务
func NewDraftService(repo *repository.DraftRepository, debounce time.Duration, logger *zap.Logger) *DraftService {
	return newDraftService(repo, debounce, logger)
}

func newDraftService(store draftStore, debounce time.Duration, logger *zap.Logger) *DraftService {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &DraftService{
		store:    store,
		debounce: debounce,
		logger:   logger,
		timers:   make(map[draftKey]*time.Timer),
	}
}

// Touch 记录一次表单改动，重置防抖定时器
// 只有最新一次Touch的状态会被持久化
func (s *DraftService) Touch(userID, formKey string, state json.RawMessage) {
	key := draftKey{userID: userID, formKey: formKey}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 新改动取消在途定时器，同key不会并发两次落盘
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}

	s.timers[key] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		draft := &entity.Draft{
			UserID:    userID,
			FormKey:   formKey,
			State:     state,
			UpdatedAt: time.Now(),
		}
		if err := s.store.Save(ctx, draft); err != nil {
			// 落盘失败不吞掉：记日志，下一次Touch会带着最新状态重试
			s.logger.Error("draft autosave failed",
				zap.String("user_id", userID),
				zap.String("form_key", formKey),
				zap.Error(err))
		}
	})
}

// Flush 立即落盘（表单失焦/页面卸载时前端显式调用）
func (s *DraftService) Flush(ctx context.Context, userID, formKey string, state json.RawMessage) error {
	key := draftKey{userID: userID, formKey: formKey}

	s.mu.Lock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	return s.store.Save(ctx, &entity.Draft{
		UserID:    userID,
		FormKey:   formKey,
		State:     state,
		UpdatedAt: time.Now(),
	})
}

// Restore 会话开始恢复草稿；不存在返回repository.ErrNotFound
func (s *DraftService) Restore(ctx context.Context, userID, formKey string) (*entity.Draft, error) {
	return s.store.Find(ctx, userID, formKey)
}

// RestoreAll 列出用户全部草稿
func (s *DraftService) RestoreAll(ctx context.Context, userID string) ([]entity.Draft, error) {
	return s.store.FindByUser(ctx, userID)
}

// Clear 提交成功后清除该key的草稿，状态机回到Idle
func (s *DraftService) Clear(ctx context.Context, userID, formKey string) error {
	key := draftKey{userID: userID, formKey: formKey}

	s.mu.Lock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	return s.store.Delete(ctx, userID, formKey)
}

// ClearAll 登出放弃：清除用户全部草稿（不区分表单key）
func (s *DraftService) ClearAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	for key, t := range s.timers {
		if key.userID == userID {
			t.Stop()
			delete(s.timers, key)
		}
	}
	s.mu.Unlock()

	return s.store.DeleteByUser(ctx, userID)
}
