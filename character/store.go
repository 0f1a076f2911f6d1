package character

import (
	"context"
	"errors"
)

// ErrNotFound は、全件ロード後にも該当IDの住人が存在しないことを示します。
var ErrNotFound = errors.New("character not found")

// ErrDataIntegrity は、修復プロトコルを経てもレコードがスキーマに
// 適合しなかったことを示します。黙って握りつぶしてはいけません。
var ErrDataIntegrity = errors.New("character data integrity failure")

// Store は、住人レコードへの永続化付き・キャッシュ付きアクセスを提供します。
// 一度全件ロードされた後は、キャッシュがすべての読み取りの単一の情報源です。
// すべての書き込みは Save を通るため、キャッシュと永続状態が
// 1回の保存操作より長く食い違うことはありません。
type Store interface {
	// Get は、キャッシュ済みの住人を返します。未ロードなら全件ロードします。
	Get(ctx context.Context, id int) (*Character, error)

	// GetAll は、全件ロードを保証した上ですべての住人を返します。
	// 順序に意味はありません。決定的な順序が必要な呼び出し側はIDでソートしてください。
	GetAll(ctx context.Context) ([]*Character, error)

	// Save は、レコードを永続化しキャッシュを更新します。
	// 並行する読み手が書きかけのレコードを観測することはありません。
	// 保存に成功すると必ず更新通知が発行されます。
	Save(ctx context.Context, c *Character) error

	// LoadOne は、永続化されたレコードを読み直します。スキーマ検証に
	// 落ちたレコードは修復プロトコルを1回だけ試し、再検証と永続化を経て
	// 返します。2度目の失敗は ErrDataIntegrity です。
	LoadOne(ctx context.Context, id int) (*Character, error)

	// CreateNew は、案内メモから新しい住人を生成器に作らせ、
	// 次の空きIDを割り当てて永続化し、返します。
	CreateNew(ctx context.Context, note string) (*Character, error)
}
