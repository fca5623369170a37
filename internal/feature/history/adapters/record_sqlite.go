// Package adapters はhistoryフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"

	"brand_backend/internal/feature/history/domain/entity"
	"brand_backend/internal/feature/history/usecase"
)

type recordSQLite struct {
	db *gorm.DB
}

// recordSQLiteがRecordRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.RecordRepository = (*recordSQLite)(nil)

// NewRecordRepository は指定されたgorm.DB接続でrecordSQLiteの新しいインスタンスを生成します。
func NewRecordRepository(db *gorm.DB) *recordSQLite {
	return &recordSQLite{db: db}
}

// RecordModel は検出履歴のデータベース表現です。
type RecordModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	ImageName string `gorm:"size:255"`
	Method    string `gorm:"size:16;not null"`
	Results   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (RecordModel) TableName() string {
	return "analysis_history"
}

func toModel(e *entity.Record) RecordModel {
	return RecordModel{
		UserID:    e.UserID,
		ImageName: e.ImageName,
		Method:    e.Method,
		Results:   e.Results,
	}
}

func toEntity(m RecordModel) entity.Record {
	return entity.Record{
		ID:        m.ID,
		UserID:    m.UserID,
		ImageName: m.ImageName,
		Method:    m.Method,
		Results:   m.Results,
		CreatedAt: m.CreatedAt,
	}
}

// Create は履歴レコードを追加します。
func (r *recordSQLite) Create(ctx context.Context, rec *entity.Record) error {
	m := toModel(rec)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	rec.ID = m.ID
	rec.CreatedAt = m.CreatedAt
	return nil
}

// ListByUser は指定ユーザーの履歴を作成日時の降順で取得します。
func (r *recordSQLite) ListByUser(ctx context.Context, userID uint, limit int) ([]entity.Record, error) {
	if limit <= 0 {
		limit = usecase.DefaultListLimit
	}

	var models []RecordModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]entity.Record, 0, len(models))
	for _, m := range models {
		out = append(out, toEntity(m))
	}
	return out, nil
}

// DeleteByUser は指定ユーザーが所有する履歴を削除します。
// 所有者条件をWHERE句に含めることで、他ユーザーの履歴は存在しないのと
// 同じ扱いになります。
func (r *recordSQLite) DeleteByUser(ctx context.Context, userID, recordID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", recordID, userID).
		Delete(&RecordModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return usecase.ErrRecordNotFound
	}
	return nil
}
