package character

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sat8bit/machi/bus"
	"github.com/sat8bit/machi/jsonscan"
	"github.com/sat8bit/machi/llm"
	"github.com/sat8bit/machi/notify"
	"github.com/sat8bit/machi/prompt"
)

// FileStore は Store インターフェースのファイル永続化実装です。
// 住人はIDごとに1ファイル（<dir>/<id>.json）として保存され、
// 初回アクセス時に全件がキャッシュへ読み込まれます。
// 保存は一時ファイルへ書いてからリネームするため、並行する読み手が
// 書きかけのレコードを観測することはありません。
type FileStore struct {
	dir string
	gen llm.LLM
	bus bus.Bus

	// mu はキャッシュと永続表現の両方を保護します。修復を伴うロードは
	// 生成器への往復を含むため長くブロックすることがありますが、
	// 書き込み競合で更新が失われるよりはましという判断です。
	mu     sync.Mutex
	cache  map[int]*Character
	loaded bool
}

// NewFileStore は新しい FileStore を生成します。
// dir は住人ファイルを置くディレクトリ、gen は修復・新規生成に使う生成器です。
func NewFileStore(dir string, gen llm.LLM, b bus.Bus) *FileStore {
	return &FileStore{
		dir:   dir,
		gen:   gen,
		bus:   b,
		cache: make(map[int]*Character),
	}
}

// Get は、キャッシュ済みの住人を返します。未ロードなら全件ロードします。
func (s *FileStore) Get(ctx context.Context, id int) (*Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	c, ok := s.cache[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return c, nil
}

// GetAll は、全件ロードを保証した上ですべての住人を返します。
func (s *FileStore) GetAll(ctx context.Context) ([]*Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	all := make([]*Character, 0, len(s.cache))
	for _, c := range s.cache {
		all = append(all, c)
	}
	return all, nil
}

// Save は、レコードを永続化しキャッシュを更新し、更新通知を発行します。
func (s *FileStore) Save(ctx context.Context, c *Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(c)
}

// LoadOne は、永続化されたレコードをディスクから読み直します。
// スキーマ検証に落ちたレコードは修復プロトコルに回し、修復済みの
// レコードを新しい正本として永続化してから返します。
func (s *FileStore) LoadOne(ctx context.Context, id int) (*Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadOneLocked(ctx, id)
}

// CreateNew は、案内メモから新しい住人を生成器に作らせます。
// 生成器への往復の間はロックを保持しません。IDの割り当ては保存時に
// 再確認するため、並行する CreateNew 同士が衝突することはありません。
func (s *FileStore) CreateNew(ctx context.Context, note string) (*Character, error) {
	s.mu.Lock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	nextID := s.nextIDLocked()
	s.mu.Unlock()

	resp, err := s.gen.Generate(ctx, prompt.NewCharacter(note, nextID, SchemaSource()))
	if err != nil {
		return nil, fmt.Errorf("character.CreateNew: %w", err)
	}
	raw, ok := jsonscan.Longest(resp)
	if !ok {
		return nil, fmt.Errorf("character.CreateNew: no JSON recoverable from response")
	}
	c, repaired, err := Coerce(ctx, s.gen, []byte(raw))
	if err != nil {
		return nil, fmt.Errorf("character.CreateNew: %w", err)
	}
	if repaired {
		slog.Info("new character required repair before first save")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// 生成中に他の住人が増えていた場合に備えて、空きIDを取り直す
	if next := s.nextIDLocked(); next > nextID {
		nextID = next
	}
	c.BasicInfo.ID = nextID
	c.Normalize()
	if err := s.saveLocked(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureLoadedLocked は、住人ディレクトリの全レコードをキャッシュへ
// 読み込みます。ディレクトリが無い場合は空のまま成功します。
func (s *FileStore) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("characters directory not found, no characters loaded", "dir", s.dir)
			s.loaded = true
			return nil
		}
		return fmt.Errorf("character: read dir %s: %w", s.dir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		if _, err := s.loadOneLocked(ctx, id); err != nil {
			// 1件の破損が全体のロードを止めないよう、表面化はログに留める
			slog.Error("failed to load character", "id", id, "error", err)
		}
	}

	s.loaded = true
	slog.Info("loaded characters", "count", len(s.cache))
	return nil
}

func (s *FileStore) loadOneLocked(ctx context.Context, id int) (*Character, error) {
	path := s.filePath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("character: read %s: %w", path, err)
	}

	c, repaired, err := Coerce(ctx, s.gen, data)
	if err != nil {
		return nil, fmt.Errorf("character: load id %d: %w", id, err)
	}
	if repaired {
		// 修復済みレコードを新しい正本として書き戻す。IDは不変。
		c.BasicInfo.ID = id
		c.Normalize()
		if err := s.saveLocked(c); err != nil {
			return nil, err
		}
		slog.Info("repaired character persisted", "id", id)
		return c, nil
	}

	s.cache[id] = c
	return c, nil
}

func (s *FileStore) saveLocked(c *Character) error {
	// 保存が成功した後のレコードは常に自身のスキーマに適合させる
	c.Normalize()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("character.Save: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("character.Save: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".character-*.json")
	if err != nil {
		return fmt.Errorf("character.Save: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("character.Save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("character.Save: %w", err)
	}
	if err := os.Rename(tmpName, s.filePath(c.ID())); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("character.Save: %w", err)
	}

	s.cache[c.ID()] = c

	// 観測者には常に正本を見せる。保存に成功したら必ず通知する。
	if s.bus != nil {
		if err := s.bus.Broadcast(notify.Update(notify.TypeCharacter, strconv.Itoa(c.ID()), c)); err != nil {
			slog.Error("failed to broadcast character update", "id", c.ID(), "error", err)
		}
	}
	return nil
}

func (s *FileStore) nextIDLocked() int {
	next := 1
	for id := range s.cache {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

func (s *FileStore) filePath(id int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", id))
}

// コンパイル時に Store インターフェースを実装していることを保証します。
var _ Store = (*FileStore)(nil)
