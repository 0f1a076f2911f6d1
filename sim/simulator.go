// Package sim は、日次シミュレーションのパイプラインを駆動します。
// 1回のティックで、プラン生成 → イベントごとの精緻化 → 住人の更新 →
// 永続化 → ブロードキャスト、を順に実行します。
package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sat8bit/machi/bus"
	"github.com/sat8bit/machi/character"
	"github.com/sat8bit/machi/jsonscan"
	"github.com/sat8bit/machi/llm"
	"github.com/sat8bit/machi/notify"
	"github.com/sat8bit/machi/prompt"
	"github.com/sat8bit/machi/tick"
	"github.com/sat8bit/machi/topic"
	"github.com/sat8bit/machi/world"
)

var (
	// ErrTickInProgress は、別のティックが実行中であることを示します。
	ErrTickInProgress = errors.New("simulation tick already in progress")

	// ErrGenerationParse は、生成器の出力から有効なJSONを
	// 復元できなかったことを示します。
	ErrGenerationParse = errors.New("no valid JSON recoverable from generator output")

	// ErrGeneratorTimeout は、生成器の呼び出しが期限を超えたことを示します。
	ErrGeneratorTimeout = errors.New("generator call exceeded its deadline")
)

// FailureMode は、イベント単位の失敗をどう扱うかの方針です。
type FailureMode string

const (
	// FailSkip は、失敗したイベントをログに残して飛ばし、残りを処理します。
	FailSkip FailureMode = "skip"
	// FailAbort は、最初の失敗でティック全体を中断します。
	FailAbort FailureMode = "abort"
)

const defaultGeneratorTimeout = 120 * time.Second

// Options は、Simulator の任意設定です。
type Options struct {
	// Topics は、その日のプランに注入する話題の取得元。nil なら話題なし。
	Topics topic.Fetcher
	// GeneratorTimeout は、生成器1呼び出しあたりの期限。
	// 外部呼び出しが永久にプロセスを塞がないための保険ではなく、必須の方針です。
	GeneratorTimeout time.Duration
	// FailureMode は、イベント単位の失敗方針。既定は FailSkip。
	FailureMode FailureMode
	// LogDir は、日ごとの生応答ログの出力先。空なら出力しない。
	LogDir string
}

// Simulator は、World・住人ストア・生成器・バスをまとめて
// 日次ティックを駆動します。SimOneDay はシングルフライトで、
// 実行中のティックがある間の呼び出しは ErrTickInProgress で即座に失敗します。
type Simulator struct {
	world     *world.World
	worldPath string
	store     character.Store
	gen       llm.LLM
	bus       bus.Bus
	guard     tick.Manager
	opts      Options
}

// NewSimulator は新しい Simulator を生成します。
func NewSimulator(w *world.World, worldPath string, store character.Store, gen llm.LLM, b bus.Bus, guard tick.Manager, opts Options) *Simulator {
	if opts.GeneratorTimeout <= 0 {
		opts.GeneratorTimeout = defaultGeneratorTimeout
	}
	if opts.FailureMode == "" {
		opts.FailureMode = FailSkip
	}
	return &Simulator{
		world:     w,
		worldPath: worldPath,
		store:     store,
		gen:       gen,
		bus:       b,
		guard:     guard,
		opts:      opts,
	}
}

// World は、現在の World への参照を返します。
func (s *Simulator) World() *world.World {
	return s.world
}

// DayResult は、1ティックの結果です。
type DayResult struct {
	Date  string       `json:"date"`
	World *world.World `json:"world"`
}

// SimOneDay は、1日分のシミュレーションを実行します。
// プラン生成に失敗した場合、World は日付も含めて一切変更されません。
// イベント単位の失敗は FailureMode に従って隔離されます。
func (s *Simulator) SimOneDay(ctx context.Context) (*DayResult, error) {
	if !s.guard.TryAcquire() {
		return nil, ErrTickInProgress
	}
	defer s.guard.Release()

	start := time.Now()

	chars, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("sim: load characters: %w", err)
	}
	// プロンプトを決定的にするためIDでソートする
	sort.Slice(chars, func(i, j int) bool { return chars[i].ID() < chars[j].ID() })
	charJSONs := make([]string, 0, len(chars))
	for _, c := range chars {
		j, err := c.JSON()
		if err != nil {
			return nil, fmt.Errorf("sim: marshal character %d: %w", c.ID(), err)
		}
		charJSONs = append(charJSONs, j)
	}

	nextDate, err := s.world.NextDate()
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}

	var topics []*topic.Topic
	if s.opts.Topics != nil {
		topics, err = s.opts.Topics.Fetch(ctx)
		if err != nil {
			// 話題は風味付けでしかない。取れなくても日は進む。
			slog.Warn("failed to fetch topics, continuing without", "error", err)
			topics = nil
		}
	}

	resp, err := s.generate(ctx, prompt.DayPlan(charJSONs, nextDate, world.SchemaSource(), topics))
	if err != nil {
		return nil, fmt.Errorf("sim: day plan: %w", err)
	}

	dl := s.openDayLog(nextDate)
	defer dl.Close()
	dl.Printf("responses from day plan generation:\n%s\n", resp)

	raw, ok := jsonscan.Longest(resp)
	if !ok {
		return nil, fmt.Errorf("%w: day plan", ErrGenerationParse)
	}
	plan, err := world.FromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: day plan: %v", ErrGenerationParse, err)
	}

	// ここから先で初めて World に触る。プランが取れなかった場合、
	// 日付の前進を含めて World は無傷のまま残る。
	// プランの日付は、ローカルに進めた日付と一致する場合のみ採用する
	// （日付は1日ずつしか進まず、後退もスキップもしない）。
	if plan.Date != nextDate {
		slog.Warn("plan date differs from advanced date, keeping local date", "plan", plan.Date, "local", nextDate)
	}
	s.world.Date = nextDate
	s.world.Events = plan.Events
	s.world.Weathers = plan.Weathers

	if err := s.processEvents(ctx, dl); err != nil {
		return nil, err
	}

	if err := s.world.Save(s.worldPath); err != nil {
		return nil, fmt.Errorf("sim: persist world: %w", err)
	}
	if err := s.bus.Broadcast(notify.Update(notify.TypeWorld, "", s.world)); err != nil {
		slog.Error("failed to broadcast world update", "error", err)
	}

	dl.Printf("sim_one_day execution time: %.2f seconds\n", time.Since(start).Seconds())
	slog.Info("simulated one day", "date", s.world.Date, "events", len(s.world.Events), "took", time.Since(start))

	return &DayResult{Date: s.world.Date, World: s.world}, nil
}

// processEvents は、その日のイベントを順番に精緻化します。
// 並列化は意図的にしていません。精緻化は共有の住人レコードを書き換えるため、
// 順不同の並行更新は変更を失う恐れがあります。
func (s *Simulator) processEvents(ctx context.Context, dl *dayLog) error {
	for i := range s.world.Events {
		if err := s.processOneEvent(ctx, dl, i); err != nil {
			if s.opts.FailureMode == FailAbort {
				return fmt.Errorf("sim: event %d: %w", i, err)
			}
			// 1件の失敗で残りのイベントを道連れにしない
			slog.Error("event processing failed, skipping", "index", i, "error", err)
			dl.Printf("event %d skipped: %v\n", i, err)
		}
	}
	return nil
}

func (s *Simulator) processOneEvent(ctx context.Context, dl *dayLog, i int) error {
	ev := s.world.Events[i]

	// 参加者の解決は有界の並列ファンアウト。1人の取得の遅れが他を塞がないが、
	// イベント全体は全員の結果が揃うまで待つ。
	ids := ev.IDOfCharacterInvolved
	resolved := make([]*character.Character, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for j, id := range ids {
		wg.Add(1)
		go func(j, id int) {
			defer wg.Done()
			resolved[j], errs[j] = s.store.Get(ctx, id)
		}(j, id)
	}
	wg.Wait()

	var related []*character.Character
	for j, err := range errs {
		if err != nil {
			if errors.Is(err, character.ErrNotFound) {
				// 迷子の参加者IDは許容して飛ばす。イベント自体は続行する。
				slog.Warn("event references unknown character, skipping participant", "id", ids[j])
				continue
			}
			return fmt.Errorf("resolve participant %d: %w", ids[j], err)
		}
		related = append(related, resolved[j])
	}

	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	weathersJSON, err := json.Marshal(s.world.Weathers)
	if err != nil {
		return fmt.Errorf("marshal weathers: %w", err)
	}
	relatedJSONs := make([]string, 0, len(related))
	for _, c := range related {
		j, err := c.JSON()
		if err != nil {
			return fmt.Errorf("marshal character %d: %w", c.ID(), err)
		}
		relatedJSONs = append(relatedJSONs, j)
	}

	resp, err := s.generate(ctx, prompt.ElaborateEvent(
		string(eventJSON), relatedJSONs, string(weathersJSON), "",
		world.EventSchemaSource(), character.SchemaSource(),
	))
	if err != nil {
		return err
	}
	dl.Printf("responses from event elaboration:\n%s\n", resp)

	raw, ok := jsonscan.Longest(resp)
	if !ok {
		return ErrGenerationParse
	}

	var out struct {
		RelatedCharacters []json.RawMessage `json:"related_characters"`
		Event             json.RawMessage   `json:"event"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationParse, err)
	}

	// 応答に含まれる住人は保存済みレコードを上書きする。
	// 保存のたびに永続化と更新通知が走る。
	for _, rc := range out.RelatedCharacters {
		c, _, err := character.Coerce(ctx, s.gen, rc)
		if err != nil {
			return fmt.Errorf("coerce related character: %w", err)
		}
		c.Normalize()
		if err := s.store.Save(ctx, c); err != nil {
			return fmt.Errorf("save character %d: %w", c.ID(), err)
		}
	}

	// 精緻化されたイベントはその日のイベントリストの同じ位置を置き換える
	if len(out.Event) > 0 {
		if err := world.ValidateEvent(out.Event); err != nil {
			return fmt.Errorf("%w: elaborated event: %v", ErrGenerationParse, err)
		}
		var ne world.Event
		if err := json.Unmarshal(out.Event, &ne); err != nil {
			return fmt.Errorf("%w: %v", ErrGenerationParse, err)
		}
		s.world.Events[i] = ne
	}

	return nil
}

// generate は、設定された期限付きで生成器を1回呼び出します。
// 期限超過は ErrGeneratorTimeout として表面化し、部分書き込みは発生しません。
func (s *Simulator) generate(ctx context.Context, messages []llm.Message) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, s.opts.GeneratorTimeout)
	defer cancel()

	resp, err := s.gen.Generate(gctx, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrGeneratorTimeout, err)
		}
		return "", err
	}
	return resp, nil
}
