package topic

// Topic は、その日のシミュレーションに風味付けとして注入される、
// 構造化された「世の中の出来事」を表します。
// この構造体は、出来事の出所（RSS、APIなど）に依存しない、汎用的な形式です。
type Topic struct {
	// Title は、出来事のタイトルや見出しです。
	Title string

	// Summary は、出来事の短い要約です。
	Summary string

	// SourceURL は、出来事の出所を示すURLです。
	SourceURL string
}
