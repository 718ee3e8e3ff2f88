package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/blues/bounty/internal/model"
	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// ErrDuplicate 违反唯一约束
var ErrDuplicate = errors.New("记录已存在")

// Store 记录存储
//
// 写入分两条路径：Create/Save 为主状态写入，调用方在其后显式发布事件；
// UpdateSilently 只更新列值，不触发钩子、不更新 updated_at，也不发布事件，用于簿记字段。
type Store struct {
	db *gorm.DB
}

// New 创建记录存储
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB 底层连接
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Transaction 在事务中执行，fn 内只能使用传入的 tx
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Create 插入记录
func (s *Store) Create(ctx context.Context, value interface{}) error {
	return translate(s.conn(ctx).Create(value).Error)
}

// Save 保存记录全部字段
func (s *Store) Save(ctx context.Context, value interface{}) error {
	return translate(s.conn(ctx).Save(value).Error)
}

// Update 主状态写入指定列，执行钩子并更新 updated_at
func (s *Store) Update(ctx context.Context, table interface{}, id int64, columns map[string]interface{}) error {
	result := s.conn(ctx).Model(table).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSilently 簿记写入，返回受影响行数
func (s *Store) UpdateSilently(ctx context.Context, table interface{}, id int64, columns map[string]interface{}) (int64, error) {
	result := s.conn(ctx).Model(table).Where("id = ?", id).UpdateColumns(columns)
	if result.Error != nil {
		return 0, fmt.Errorf("silent update failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// translate 统一错误类型
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// first 查询单条记录
func (s *Store) first(ctx context.Context, dest interface{}, query interface{}, args ...interface{}) error {
	return translate(s.conn(ctx).Where(query, args...).First(dest).Error)
}

// CreateEvent 写入审计事件
func (s *Store) CreateEvent(ctx context.Context, event *model.EventModel) error {
	if err := s.Create(ctx, event); err != nil {
		return fmt.Errorf("创建事件记录失败: %w", err)
	}
	return nil
}

// Events 查询事件，claimId 为 0 时不过滤
func (s *Store) Events(ctx context.Context, claimId int64, kind model.EventKind) ([]model.EventModel, error) {
	var events []model.EventModel
	query := s.conn(ctx).Model(&model.EventModel{})
	if claimId > 0 {
		query = query.Where("claim_id = ?", claimId)
	}
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if err := query.Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取事件列表失败: %w", err)
	}
	return events, nil
}
