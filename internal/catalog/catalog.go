package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"TripleTriad/internal/game/dealer"
	"TripleTriad/internal/game/table"
)

var ErrDeckNotFound = errors.New("deck not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cards (
	id           TEXT PRIMARY KEY,
	code         TEXT NOT NULL,
	name         TEXT NOT NULL,
	level        INTEGER NOT NULL DEFAULT 1,
	cost         INTEGER NOT NULL DEFAULT 0,
	value_top    INTEGER NOT NULL,
	value_right  INTEGER NOT NULL,
	value_bottom INTEGER NOT NULL,
	value_left   INTEGER NOT NULL,
	image_name   TEXT
);
CREATE TABLE IF NOT EXISTS decks (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS deck_cards (
	deck_id  TEXT NOT NULL REFERENCES decks(id),
	card_id  TEXT NOT NULL REFERENCES cards(id),
	quantity INTEGER
);
CREATE INDEX IF NOT EXISTS idx_deck_cards_deck_id ON deck_cards(deck_id);
`

type Deck struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Repo 卡牌目录（只读），底层为 Postgres
type Repo struct {
	db     *sql.DB
	dealer *dealer.Dealer
}

func NewRepo(db *sql.DB, d *dealer.Dealer) *Repo {
	return &Repo{db: db, dealer: d}
}

// EnsureSchema creates the catalog tables when they are missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaSQL)
	return err
}

func (r *Repo) Deck(ctx context.Context, id string) (*Deck, error) {
	var d Deck
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM decks WHERE id = $1`, id).Scan(&d.ID, &d.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeckNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeckEntries 把 deck_cards 与 cards 连接成带类型的行；牌组不存在返回 ErrDeckNotFound
func (r *Repo) DeckEntries(ctx context.Context, deckID string) ([]dealer.DeckEntry, error) {
	if _, err := r.Deck(ctx, deckID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.code, c.name, c.level, c.cost,
		       c.value_top, c.value_right, c.value_bottom, c.value_left,
		       c.image_name, dc.quantity
		FROM deck_cards dc
		JOIN cards c ON c.id = dc.card_id
		WHERE dc.deck_id = $1
		ORDER BY c.code, c.id`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dealer.DeckEntry
	for rows.Next() {
		var (
			c     table.Card
			image sql.NullString
			qty   sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Level, &c.Cost,
			&c.Top, &c.Right, &c.Bottom, &c.Left, &image, &qty); err != nil {
			return nil, fmt.Errorf("scan deck %s: %w", deckID, err)
		}
		if image.Valid {
			name := image.String
			c.ImageName = &name
		}
		e := dealer.DeckEntry{Card: c}
		if qty.Valid {
			n := int(qty.Int64)
			e.Quantity = &n
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeckCards returns the playable pool of a deck, quantities expanded.
func (r *Repo) DeckCards(ctx context.Context, deckID string) ([]table.Card, error) {
	entries, err := r.DeckEntries(ctx, deckID)
	if err != nil {
		return nil, err
	}
	return r.dealer.Pool(entries), nil
}
