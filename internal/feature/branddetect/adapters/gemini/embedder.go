// Package gemini はGoogle Gemini APIを使用した画像埋め込みクライアントを提供します。
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"brand_backend/internal/feature/branddetect/embedindex"
	"brand_backend/internal/shared/ratelimiter"
)

const (
	// DefaultEmbedModel はGemini APIのデフォルト埋め込みモデルです。
	DefaultEmbedModel = "multimodalembedding@001"
	// defaultMimeType は埋め込みリクエストに添付する画像のMIMEタイプです。
	// Vision系モデルは主要フォーマットをコンテンツから自動判別します。
	defaultMimeType = "image/png"
)

// Embedder はGemini APIを使用して画像の埋め込みベクトルを計算します。
type Embedder struct {
	client  *genai.Client
	model   string
	limiter ratelimiter.RateLimiterInterface
}

// EmbedderがembedindexのEmbedderを実装していることをコンパイル時に検証します。
var _ embedindex.Embedder = (*Embedder)(nil)

// NewEmbedder はADCを使用してEmbedderの新しいインスタンスを生成します。
// modelが空の場合はDefaultEmbedModelを使用します。
// 環境変数 GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION が必要です。
func NewEmbedder(ctx context.Context, model string, limiter ratelimiter.RateLimiterInterface) (*Embedder, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultEmbedModel
	}
	return &Embedder{client: client, model: model, limiter: limiter}, nil
}

// Embed は画像バイト列の埋め込みベクトルを返します。
// 返り値の正規化は呼び出し側（embedindex / visualmatch）が行います。
func (e *Embedder) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}
	if e.limiter != nil {
		e.limiter.WaitIfNeeded()
	}

	contents := []*genai.Content{
		genai.NewContentFromBytes(imageData, defaultMimeType, genai.RoleUser),
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embedding response is empty")
	}
	return resp.Embeddings[0].Values, nil
}
