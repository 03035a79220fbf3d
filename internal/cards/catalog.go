package cards

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DoyleJ11/offensive-cards/pkg/types"
)

// Blank marks where an answer goes in a prompt card.
const Blank = "_"

// blankLine is how an unanswered prompt is shown.
const blankLine = "________"

//go:embed deck.json
var builtinDeck []byte

// Catalog indexes both decks by card id.
type Catalog struct {
	deck  types.CardCatalog
	black map[string]types.Card
	white map[string]types.Card
}

func New(deck types.CardCatalog) *Catalog {
	c := &Catalog{
		deck:  deck,
		black: make(map[string]types.Card, len(deck.BlackCards)),
		white: make(map[string]types.Card, len(deck.WhiteCards)),
	}
	// first card wins on a duplicate id
	for _, card := range deck.BlackCards {
		if _, dup := c.black[card.ID]; !dup {
			c.black[card.ID] = card
		}
	}
	for _, card := range deck.WhiteCards {
		if _, dup := c.white[card.ID]; !dup {
			c.white[card.ID] = card
		}
	}
	return c
}

func (c *Catalog) Black(id string) (types.Card, bool) {
	card, ok := c.black[id]
	return card, ok
}

func (c *Catalog) White(id string) (types.Card, bool) {
	card, ok := c.white[id]
	return card, ok
}

// BlackText returns the prompt text, or the id itself when the card is unknown.
func (c *Catalog) BlackText(id string) string {
	if card, ok := c.black[id]; ok {
		return card.Text
	}
	return id
}

// WhiteText returns the answer text, or the id itself when the card is unknown.
func (c *Catalog) WhiteText(id string) string {
	if card, ok := c.white[id]; ok {
		return card.Text
	}
	return id
}

// Deck returns the catalog in wire form.
func (c *Catalog) Deck() types.CardCatalog { return c.deck }

func (c *Catalog) Len() (black, white int) { return len(c.black), len(c.white) }

// Fill puts the answer into the first blank of the prompt.
func Fill(black, white string) string {
	return strings.Replace(black, Blank, white, 1)
}

// Display renders the first blank of a prompt as a line.
func Display(black string) string {
	return strings.Replace(black, Blank, blankLine, 1)
}

// Builtin returns the deck shipped with the binary.
func Builtin() (types.CardCatalog, error) {
	var deck types.CardCatalog
	if err := json.Unmarshal(builtinDeck, &deck); err != nil {
		return types.CardCatalog{}, fmt.Errorf("decode builtin deck: %w", err)
	}
	return deck, nil
}
