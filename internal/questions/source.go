package questions

import (
	"context"
	"math/rand"
	"sync"

	"github.com/one-of-fifteen/backend/internal/engine"
)

// Source produces the next question for a round. Implementations may
// block on I/O; the session owner calls Next off its own goroutine and
// treats delivery as just another mutation.
type Source interface {
	Next(ctx context.Context, round string) (engine.Question, error)
}

// Bank serves questions from an in-memory list in shuffled order,
// reshuffling once exhausted.
type Bank struct {
	mu     sync.Mutex
	items  []engine.Question
	order  []int
	cursor int
}

func NewBank(items []engine.Question) *Bank {
	if len(items) == 0 {
		items = defaultBank
	}
	b := &Bank{items: items}
	b.reshuffle()
	return b
}

func (b *Bank) reshuffle() {
	b.order = rand.Perm(len(b.items))
	b.cursor = 0
}

func (b *Bank) Next(_ context.Context, _ string) (engine.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cursor >= len(b.order) {
		b.reshuffle()
	}
	q := b.items[b.order[b.cursor]]
	b.cursor++
	return q, nil
}

var defaultBank = []engine.Question{
	{Text: "What is the capital of France?", Answer: "Paris"},
	{Text: "How many continents are there?", Answer: "7"},
	{Text: "Which planet is known as the Red Planet?", Answer: "Mars"},
	{Text: "What is the chemical symbol for gold?", Answer: "Au"},
	{Text: "Who wrote War and Peace?", Answer: "Tolstoy"},
	{Text: "What is the largest ocean on Earth?", Answer: "Pacific"},
	{Text: "In what year did the Second World War end?", Answer: "1945"},
	{Text: "What is the square root of 144?", Answer: "12"},
	{Text: "Which gas do plants absorb from the atmosphere?", Answer: "Carbon dioxide"},
	{Text: "What is the longest river in the world?", Answer: "Nile"},
	{Text: "How many strings does a standard violin have?", Answer: "4"},
	{Text: "What is the capital of Japan?", Answer: "Tokyo"},
	{Text: "Which element has the atomic number 1?", Answer: "Hydrogen"},
	{Text: "Who painted the Mona Lisa?", Answer: "Leonardo da Vinci"},
	{Text: "What is the smallest prime number?", Answer: "2"},
}
