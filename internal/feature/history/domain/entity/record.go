// Package entity はhistoryフィーチャーのドメインモデルを定義します。
package entity

import "time"

// Record はユーザー1人の1回分の検出結果の履歴です。
type Record struct {
	ID        uint
	UserID    uint
	ImageName string
	// Method は採用された検出経路（text / visual）です。
	Method string
	// Results は検出結果のJSONスナップショットです。
	Results   string
	CreatedAt time.Time
}
