package character

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sat8bit/machi/bus"
	"github.com/sat8bit/machi/notify"
)

func writeCharacterFile(t *testing.T, dir string, id int, c *Character) {
	t.Helper()
	data, err := json.MarshalIndent(c, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, strconv.Itoa(id)+".json"), data, 0644))
}

func TestFileStore_SaveThenGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, &fakeLLM{}, nil)

	c := testCharacter(1)
	require.NoError(t, store.Save(context.Background(), c))

	got, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	// ディスクから読み直しても同じレコードが返る
	reloaded, err := store.LoadOne(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, *c, *reloaded)

	// ディスク上のレコードもスキーマ適合
	data, err := os.ReadFile(filepath.Join(dir, "1.json"))
	require.NoError(t, err)
	assert.NoError(t, Validate(data))
}

func TestFileStore_GetNotFound(t *testing.T) {
	store := NewFileStore(t.TempDir(), &fakeLLM{}, nil)

	_, err := store.Get(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_GetAllLoadsDirectoryLazily(t *testing.T) {
	dir := t.TempDir()
	writeCharacterFile(t, dir, 1, testCharacter(1))
	writeCharacterFile(t, dir, 3, testCharacter(3))
	// 数字以外のファイル名は無視される
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0644))

	store := NewFileStore(dir, &fakeLLM{}, nil)

	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	ids := map[int]bool{}
	for _, c := range all {
		ids[c.ID()] = true
	}
	assert.True(t, ids[1])
	assert.True(t, ids[3])
}

func TestFileStore_CorruptFileDoesNotStopLoad(t *testing.T) {
	dir := t.TempDir()
	writeCharacterFile(t, dir, 1, testCharacter(1))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.json"), []byte("garbage"), 0644))

	// 修復応答も役に立たない台本にしておく
	store := NewFileStore(dir, &fakeLLM{responses: []string{"no json here"}}, nil)

	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 1, all[0].ID())
}

func TestFileStore_LoadOneRepairsAndPersists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir, 0755))
	// 必須セクションが欠けた壊れたレコード
	require.NoError(t, os.WriteFile(filepath.Join(dir, "5.json"), []byte(`{"basic_info": {"id": 5}}`), 0644))

	fixed := testCharacter(5)
	gen := &fakeLLM{responses: []string{mustJSON(t, fixed)}}
	store := NewFileStore(dir, gen, nil)

	got, err := store.LoadOne(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ID())
	assert.Equal(t, 1, gen.calls)

	// 修復済みレコードが新しい正本としてディスクに書き戻されている
	data, err := os.ReadFile(filepath.Join(dir, "5.json"))
	require.NoError(t, err)
	require.NoError(t, Validate(data))

	// 次のロードは修復なしで成功する
	again, err := store.LoadOne(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, again.ID())
	assert.Equal(t, 1, gen.calls)
}

func TestFileStore_LoadOneNotFound(t *testing.T) {
	store := NewFileStore(t.TempDir(), &fakeLLM{}, nil)

	_, err := store.LoadOne(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_CreateNewAssignsNextFreeID(t *testing.T) {
	dir := t.TempDir()
	writeCharacterFile(t, dir, 1, testCharacter(1))
	writeCharacterFile(t, dir, 2, testCharacter(2))

	// 生成器はID 99 を主張するが、ストアが空きIDで上書きする
	generated := testCharacter(99)
	gen := &fakeLLM{responses: []string{mustJSON(t, generated)}}
	store := NewFileStore(dir, gen, nil)

	c, err := store.CreateNew(context.Background(), "A new neighbor moving in from Portland.")
	require.NoError(t, err)
	assert.Equal(t, 3, c.ID())

	data, err := os.ReadFile(filepath.Join(dir, "3.json"))
	require.NoError(t, err)
	assert.NoError(t, Validate(data))

	got, err := store.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestFileStore_CreateNewFirstResident(t *testing.T) {
	gen := &fakeLLM{responses: []string{mustJSON(t, testCharacter(0))}}
	store := NewFileStore(t.TempDir(), gen, nil)

	c, err := store.CreateNew(context.Background(), "The very first resident.")
	require.NoError(t, err)
	assert.Equal(t, 1, c.ID())
}

func TestFileStore_SaveBroadcastsUpdate(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()
	ch := b.Subscribe()

	store := NewFileStore(t.TempDir(), &fakeLLM{}, b)
	require.NoError(t, store.Save(context.Background(), testCharacter(1)))

	select {
	case n := <-ch:
		assert.Equal(t, notify.KindUpdate, n.Event)
		assert.Equal(t, notify.TypeCharacter, n.UpdatedType)
		assert.Equal(t, "1", n.UpdatedID)
	case <-time.After(time.Second):
		t.Fatal("no update notification after save")
	}
}
