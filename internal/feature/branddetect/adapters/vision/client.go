// Package vision はGoogle Cloud Vision APIを使用したテキスト抽出クライアントを提供します。
package vision

import (
	"context"
	"fmt"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"brand_backend/internal/feature/branddetect/textmatch"
	"brand_backend/internal/feature/branddetect/usecase"
	"brand_backend/internal/shared/ratelimiter"
)

// Client はVision APIを使用して画像からテキストを抽出します。
// 2つの独立した抽出経路を提供します:
//   - ExtractText: 汎用のテキスト検出（パッケージ印字向け）
//   - ExtractLogoText: ロゴアノテーションの記述テキスト（装飾フォント向け）
type Client struct {
	client  *gvision.ImageAnnotatorClient
	limiter ratelimiter.RateLimiterInterface
}

// ClientがTextExtractor / LogoTextExtractorを実装していることをコンパイル時に検証します。
var (
	_ usecase.TextExtractor       = (*Client)(nil)
	_ textmatch.LogoTextExtractor = (*Client)(nil)
)

// NewClient はADCを使用してClientの新しいインスタンスを生成します。
func NewClient(ctx context.Context, limiter ratelimiter.RateLimiterInterface) (*Client, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &Client{client: client, limiter: limiter}, nil
}

// Close はVision APIクライアントを解放します。
func (c *Client) Close() error {
	return c.client.Close()
}

// annotate は単一画像・単一フィーチャーのリクエストを実行します。
func (c *Client) annotate(ctx context.Context, imageData []byte, feature visionpb.Feature_Type) (*visionpb.AnnotateImageResponse, error) {
	if c.limiter != nil {
		c.limiter.WaitIfNeeded()
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imageData},
				Features: []*visionpb.Feature{
					{Type: feature},
				},
			},
		},
	}

	resp, err := c.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}
	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}
	return resp.Responses[0], nil
}

// ExtractText は画像から印字テキスト全体を抽出します。
func (c *Client) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	resp, err := c.annotate(ctx, imageData, visionpb.Feature_TEXT_DETECTION)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.FullTextAnnotation == nil {
		return "", nil
	}
	return resp.FullTextAnnotation.Text, nil
}

// ExtractLogoText は画像のロゴアノテーションから記述テキストを抽出します。
// 装飾フォントのロゴは汎用テキスト検出では拾えないことが多いため、
// ロゴ検出の記述（ブランド名）を2サンプル目のテキストとして使用します。
func (c *Client) ExtractLogoText(ctx context.Context, imageData []byte) (string, error) {
	resp, err := c.annotate(ctx, imageData, visionpb.Feature_LOGO_DETECTION)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}

	descriptions := make([]string, 0, len(resp.LogoAnnotations))
	for _, logo := range resp.LogoAnnotations {
		if logo.Description != "" {
			descriptions = append(descriptions, logo.Description)
		}
	}
	return strings.Join(descriptions, " "), nil
}
