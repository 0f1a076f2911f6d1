// Package jsonscan は、生成器が返す自由形式のテキストから
// JSONオブジェクトを復元するための純粋関数を提供します。
// 生成器の出力は前後に散文が付いたり、不完全なオブジェクトが
// 繰り返されたりするため、構造的には一切信用できません。
package jsonscan

import "encoding/json"

// Longest は、テキストに含まれる対応の取れた波括弧部分文字列をすべて走査し、
// JSONとしてパースできる候補のうち最長のものを返します。
// ヒューリスティクスとして、最も完全なオブジェクトはたいてい最長です
// （途中で切れた候補や部分的な繰り返しはそれより短くなるため）。
// 有効な候補がひとつも無い場合は ok=false を返します。
// この関数は決定的で副作用を持ちません。
func Longest(text string) (string, bool) {
	best := ""
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end, ok := matchBrace(text, i)
		if !ok {
			continue
		}
		candidate := text[i : end+1]
		if len(candidate) > len(best) && json.Valid([]byte(candidate)) {
			best = candidate
		}
	}
	return best, best != ""
}

// matchBrace は、start位置の '{' に対応する '}' の位置を返します。
// JSON文字列リテラル内の波括弧とエスケープされた引用符は数えません。
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
