package engine

// Rules are the table settings of one game.
type Rules struct {
	MinimumPlayers int
	HandSize       int
	Redeals        int
	Celebrations   []string // media shown on the reveal screen
}

func DefaultRules() Rules {
	return Rules{
		MinimumPlayers: 3,
		HandSize:       7,
		Redeals:        2,
	}
}

// NextJudge rotates the judge through the players in join order.
func NextJudge(current, players int) int {
	if players <= 0 {
		return -1
	}
	if current < 0 {
		return 0
	}
	return (current + 1) % players
}
