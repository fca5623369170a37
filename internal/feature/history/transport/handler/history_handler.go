// Package handler はhistoryフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"brand_backend/internal/api"
	"brand_backend/internal/feature/history/domain/entity"
	"brand_backend/internal/feature/history/usecase"
	jwtmw "brand_backend/internal/platform/jwt"
)

// HistoryUsecase は検出履歴のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type HistoryUsecase interface {
	List(ctx context.Context, userID uint) ([]entity.Record, error)
	Delete(ctx context.Context, userID, recordID uint) error
}

// HistoryHandler は検出履歴のHTTPリクエストを処理します。
type HistoryHandler struct {
	uc HistoryUsecase
}

// NewHistoryHandler はHistoryHandlerの新しいインスタンスを生成します。
func NewHistoryHandler(uc HistoryUsecase) *HistoryHandler {
	return &HistoryHandler{uc: uc}
}

// currentUserID はコンテキストから認証済みユーザーIDを取り出します。
func currentUserID(c *gin.Context) (uint, bool) {
	userID, ok := c.Get(jwtmw.ContextUserID)
	if !ok {
		return 0, false
	}
	uid, ok := userID.(uint)
	return uid, ok
}

// List は認証済みユーザーの検出履歴を新しい順に返します。
//
// エンドポイント: GET /v1/history
func (h *HistoryHandler) List(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "認証が必要です"})
		return
	}

	records, err := h.uc.List(c.Request.Context(), uid)
	if err != nil {
		slog.Error("検出履歴の取得に失敗", "error", err, "user_id", uid)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "履歴の取得に失敗しました"})
		return
	}

	out := make([]api.HistoryEntryResponse, 0, len(records))
	for _, r := range records {
		out = append(out, api.HistoryEntryResponse{
			ID:              r.ID,
			ImageName:       r.ImageName,
			DetectionMethod: r.Method,
			Results:         r.Results,
			CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

// Delete は認証済みユーザーの履歴エントリを1件削除します。
// 他ユーザーの履歴は存在しないエントリと同様に404を返します。
//
// エンドポイント: DELETE /v1/history/:id
func (h *HistoryHandler) Delete(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "認証が必要です"})
		return
	}

	recordID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "不正な履歴IDです"})
		return
	}

	if err := h.uc.Delete(c.Request.Context(), uid, uint(recordID)); err != nil {
		if errors.Is(err, usecase.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "履歴が見つかりません"})
			return
		}
		slog.Error("検出履歴の削除に失敗", "error", err, "user_id", uid, "record_id", recordID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "履歴の削除に失敗しました"})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "ok"})
}
