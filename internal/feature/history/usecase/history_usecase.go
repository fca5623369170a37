// Package usecase はhistoryフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	brandentity "brand_backend/internal/feature/branddetect/domain/entity"
	"brand_backend/internal/feature/history/domain/entity"
)

// DefaultListLimit は履歴一覧のデフォルト取得件数です。
const DefaultListLimit = 50

// ErrRecordNotFound は対象の履歴が存在しないか、呼び出しユーザーの
// 所有物でない場合に返されます。他ユーザーの履歴の存在は漏らしません。
var ErrRecordNotFound = errors.New("history record not found")

// RecordRepository は検出履歴の永続化層を抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type RecordRepository interface {
	// Create は履歴レコードをストレージに永続化します。
	Create(ctx context.Context, rec *entity.Record) error
	// ListByUser は指定ユーザーの履歴を作成日時の降順で取得します。
	ListByUser(ctx context.Context, userID uint, limit int) ([]entity.Record, error)
	// DeleteByUser は指定ユーザーが所有する履歴を削除します。
	// 該当レコードがない場合はErrRecordNotFoundを返します。
	DeleteByUser(ctx context.Context, userID, recordID uint) error
}

// historyUsecase は検出履歴の保存・一覧を提供します。
type historyUsecase struct {
	records RecordRepository
}

// NewHistoryUsecase はhistoryUsecaseの新しいインスタンスを生成します。
func NewHistoryUsecase(records RecordRepository) *historyUsecase {
	return &historyUsecase{records: records}
}

// Record は検出結果をJSONスナップショットとして履歴に保存します。
func (u *historyUsecase) Record(ctx context.Context, userID uint, imageName string, result *brandentity.DetectionResult) error {
	if result == nil {
		return fmt.Errorf("detection result is required")
	}

	snapshot, err := json.Marshal(resultSnapshot(result))
	if err != nil {
		return fmt.Errorf("failed to encode detection result: %w", err)
	}

	return u.records.Create(ctx, &entity.Record{
		UserID:    userID,
		ImageName: imageName,
		Method:    result.Method.String(),
		Results:   string(snapshot),
	})
}

// List は呼び出しユーザーの履歴を新しい順に返します。
func (u *historyUsecase) List(ctx context.Context, userID uint) ([]entity.Record, error) {
	return u.records.ListByUser(ctx, userID, DefaultListLimit)
}

// Delete は呼び出しユーザーが所有する履歴エントリを1件削除します。
func (u *historyUsecase) Delete(ctx context.Context, userID, recordID uint) error {
	return u.records.DeleteByUser(ctx, userID, recordID)
}

// snapshotMatch は履歴に保存する1候補分のJSON形式です。
type snapshotMatch struct {
	Brand       string   `json:"brand"`
	Confidence  float64  `json:"confidence"`
	Method      string   `json:"method"`
	MatchedText []string `json:"matched_text"`
}

func resultSnapshot(result *brandentity.DetectionResult) []snapshotMatch {
	out := make([]snapshotMatch, 0, len(result.Matches))
	for _, m := range result.Matches {
		matched := m.MatchedText
		if matched == nil {
			matched = []string{}
		}
		out = append(out, snapshotMatch{
			Brand:       m.Brand,
			Confidence:  m.Confidence,
			Method:      m.Method.String(),
			MatchedText: matched,
		})
	}
	return out
}
