package embedindex

import "sync/atomic"

// Provider は不変なインデックススナップショットへの参照をアトミックに公開します。
// 再構築は新しいインデックスを脇で構築してからPublishで差し替える方式で、
// 既存インデックスをin-placeに変更することはありません。読み取りに
// ロックは不要です。
type Provider struct {
	current atomic.Pointer[Index]
}

// NewProvider は初期インデックス（nil可）を保持するProviderを生成します。
func NewProvider(idx *Index) *Provider {
	p := &Provider{}
	if idx != nil {
		p.current.Store(idx)
	}
	return p
}

// Current は現在公開されているインデックスを返します。未公開の場合はnilです。
func (p *Provider) Current() *Index {
	return p.current.Load()
}

// Publish は新しいインデックスをアトミックに公開します。
// 進行中の読み取りは古いスナップショットをそのまま使い続けます。
func (p *Provider) Publish(idx *Index) {
	p.current.Store(idx)
}
