package db

import (
	"log"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	authentity "brand_backend/internal/feature/auth/domain/entity"
	historyadapters "brand_backend/internal/feature/history/adapters"
)

// OpenDB はSQLiteデータベースを開きます。
// DB_PATHが未設定の場合はカレントディレクトリのbrand.dbを使用します。
// TranslateErrorにより、ユニーク制約違反はgorm.ErrDuplicatedKeyに変換されます。
func OpenDB() *gorm.DB {
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "brand.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("DB open failed: %v", err)
	}

	if os.Getenv("RUN_MIGRATIONS") == "true" {
		// マイグレーション（User, 検出履歴）
		if err := db.AutoMigrate(
			&authentity.User{},
			&historyadapters.RecordModel{},
		); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
	}

	return db
}
