package entity

// Method はMatchを生成したマッチング手法を表す閉じた列挙型です。
type Method int

const (
	// MethodTextExact は単語境界付きの完全一致です。
	MethodTextExact Method = iota
	// MethodTextFuzzy は部分文字列一致または単語レベルの部分一致です。
	MethodTextFuzzy
	// MethodVisual は埋め込みのコサイン類似度による視覚的一致です。
	MethodVisual
)

// String はAPIレスポンスで使用するメソッド名を返します。
func (m Method) String() string {
	switch m {
	case MethodTextExact:
		return "text_exact"
	case MethodTextFuzzy:
		return "text_fuzzy"
	case MethodVisual:
		return "visual"
	default:
		return "unknown"
	}
}

// DetectionMethod は最終結果の採用経路（テキスト/視覚）を表します。
type DetectionMethod int

const (
	// DetectionText はテキストマッチングの結果が採用されたことを示します。
	DetectionText DetectionMethod = iota
	// DetectionVisual は視覚マッチングの結果が採用されたことを示します。
	DetectionVisual
)

// String はAPIレスポンスで使用する経路名を返します。
func (d DetectionMethod) String() string {
	if d == DetectionVisual {
		return "visual"
	}
	return "text"
}

// Match は1回の検出呼び出しで生成されるブランド候補です。
// 生成後は変更されず、ランキングとフィルタリングのみ行われます。
type Match struct {
	BrandID string
	// Brand はブランドの正式表示名です。
	Brand string
	// Confidence は[0,1]の信頼度スコアです。確率として較正されたものではありません。
	Confidence float64
	Method     Method
	// MatchedText は一致したエイリアス文字列です。視覚的一致では空になります。
	MatchedText []string
}

// DetectionResult は検出パイプラインの最終出力です。
type DetectionResult struct {
	// Matches は信頼度の降順に並んだブランド候補です。
	// 同一ブランドは高々1件しか含まれません。
	Matches []Match
	Method  DetectionMethod
	// MinConfidence は適用された信頼度しきい値です。
	MinConfidence float64
	// Degraded は通常の採用しきい値を下回ったままフォールバックとして
	// 返された結果であることを示します。
	Degraded bool
}
