package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sat8bit/machi/character"
	"github.com/sat8bit/machi/llm"
	"github.com/sat8bit/machi/prompt"
	"github.com/sat8bit/machi/tick"
	"github.com/sat8bit/machi/world"
)

// ErrRunInProgress は、交流バッチの生成が既に実行中であることを示します。
var ErrRunInProgress = errors.New("daily interactions already running")

// Runner は、ランダムに選んだ住人のペアに挨拶と返答を生成させ、
// 1日分の交流バッチとして履歴に追記します。
type Runner struct {
	chars  character.Store
	gen    llm.LLM
	store  *Store
	guard  tick.Manager
	rounds int
}

// NewRunner は新しい Runner を生成します。rounds は1日あたりの交流回数です。
func NewRunner(chars character.Store, gen llm.LLM, store *Store, guard tick.Manager, rounds int) *Runner {
	if rounds <= 0 {
		rounds = 3
	}
	return &Runner{
		chars:  chars,
		gen:    gen,
		store:  store,
		guard:  guard,
		rounds: rounds,
	}
}

// RunDaily は、1日分の交流バッチを生成して追記します。
// 実行中の呼び出しがある間は ErrRunInProgress で即座に失敗します。
func (r *Runner) RunDaily(ctx context.Context) error {
	if !r.guard.TryAcquire() {
		return ErrRunInProgress
	}
	defer r.guard.Release()

	all, err := r.chars.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("history: load characters: %w", err)
	}
	if len(all) < 2 {
		return fmt.Errorf("history: need at least 2 characters, have %d", len(all))
	}

	var interactions []Interaction
	for i := 0; i < r.rounds; i++ {
		c1, c2 := pickPair(all)

		c1JSON, err := c1.JSON()
		if err != nil {
			return fmt.Errorf("history: marshal character %d: %w", c1.ID(), err)
		}
		c2JSON, err := c2.JSON()
		if err != nil {
			return fmt.Errorf("history: marshal character %d: %w", c2.ID(), err)
		}

		message, err := r.gen.Generate(ctx, prompt.RolePlay(
			c1.Name(), c1JSON, prompt.GreetingInstruction(c1.Name(), c2.Name()),
		))
		if err != nil {
			return fmt.Errorf("history: generate greeting: %w", err)
		}

		response, err := r.gen.Generate(ctx, prompt.RolePlay(
			c2.Name(), c2JSON, prompt.ResponseInstruction(c1.Name(), message, c2.Name()),
		))
		if err != nil {
			return fmt.Errorf("history: generate response: %w", err)
		}

		interactions = append(interactions, Interaction{
			Character1: c1.Name(),
			Character2: c2.Name(),
			Message:    message,
			Response:   response,
		})
	}

	date := time.Now().Format(world.DateLayout)
	if err := r.store.Append(date, interactions); err != nil {
		return err
	}

	slog.Info("daily interactions completed and saved", "date", date, "count", len(interactions))
	return nil
}

// pickPair は、異なる2人の住人をランダムに選びます。
func pickPair(all []*character.Character) (*character.Character, *character.Character) {
	i := rand.Intn(len(all))
	j := rand.Intn(len(all) - 1)
	if j >= i {
		j++
	}
	return all[i], all[j]
}
