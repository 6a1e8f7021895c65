package dealer

import (
	"math/rand"
	"sync"

	"TripleTriad/internal/game/table"
)

// DeckEntry 牌组中的一行：已解析的卡牌 + 数量（nil 视为 1）
type DeckEntry struct {
	Card     table.Card
	Quantity *int
}

func (e DeckEntry) copies() int {
	if e.Quantity == nil {
		return 1
	}
	return *e.Quantity
}

// Dealer 只负责把牌组展开成卡池，可选洗牌（无规则判断）。并发安全
type Dealer struct {
	mu      sync.Mutex // guards rnd
	rnd     *rand.Rand
	shuffle bool
}

// NewDealer returns a dealer that keeps deck order. Use WithShuffle to randomise pools.
func NewDealer(seed int64) *Dealer {
	return &Dealer{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

func (d *Dealer) WithShuffle(on bool) *Dealer {
	d.shuffle = on
	return d
}

// Pool 按数量展开牌组，顺序与牌组行顺序一致
func (d *Dealer) Pool(entries []DeckEntry) []table.Card {
	out := make([]table.Card, 0, len(entries))
	for _, e := range entries {
		for i := 0; i < e.copies(); i++ {
			out = append(out, e.Card)
		}
	}
	if d.shuffle {
		d.shuffleCards(out)
	}
	return out
}

func (d *Dealer) shuffleCards(cards []table.Card) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(cards)
	for i := n - 1; i > 0; i-- {
		j := d.rnd.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}
