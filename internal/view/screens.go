package view

// Screen is one of the nine mutually exclusive UI states. The set is closed:
// only this package can implement it, and Visitor has one method per screen,
// so adding a screen breaks every Visitor until it is handled.
type Screen interface {
	Name() string
	accept(v Visitor)
}

// Visitor dispatches on a Screen.
type Visitor interface {
	OwnerWaiting(OwnerWaiting)
	NewPlayerWaiting(NewPlayerWaiting)
	NewPlayerForm(NewPlayerForm)
	JudgeWaiting(JudgeWaiting)
	PlayerSubmitted(PlayerSubmitted)
	PlayerSelect(PlayerSelect)
	JudgeSelect(JudgeSelect)
	PlayerWaiting(PlayerWaiting)
	Reveal(Reveal)
}

// Visit calls the Visitor method matching s.
func Visit(s Screen, v Visitor) { s.accept(v) }

// NotStarted
type (
	OwnerWaiting     struct{}
	NewPlayerWaiting struct{}
	NewPlayerForm    struct{}
)

// Playing
type (
	JudgeWaiting    struct{}
	PlayerSubmitted struct{}
	PlayerSelect    struct{}
)

// Judging
type (
	JudgeSelect   struct{}
	PlayerWaiting struct{}
)

// Reveal
type Reveal struct{}

func (OwnerWaiting) Name() string     { return "OwnerWaiting" }
func (NewPlayerWaiting) Name() string { return "NewPlayerWaiting" }
func (NewPlayerForm) Name() string    { return "NewPlayerForm" }
func (JudgeWaiting) Name() string     { return "JudgeWaiting" }
func (PlayerSubmitted) Name() string  { return "PlayerSubmitted" }
func (PlayerSelect) Name() string     { return "PlayerSelect" }
func (JudgeSelect) Name() string      { return "JudgeSelect" }
func (PlayerWaiting) Name() string    { return "PlayerWaiting" }
func (Reveal) Name() string           { return "Reveal" }

func (s OwnerWaiting) accept(v Visitor)     { v.OwnerWaiting(s) }
func (s NewPlayerWaiting) accept(v Visitor) { v.NewPlayerWaiting(s) }
func (s NewPlayerForm) accept(v Visitor)    { v.NewPlayerForm(s) }
func (s JudgeWaiting) accept(v Visitor)     { v.JudgeWaiting(s) }
func (s PlayerSubmitted) accept(v Visitor)  { v.PlayerSubmitted(s) }
func (s PlayerSelect) accept(v Visitor)     { v.PlayerSelect(s) }
func (s JudgeSelect) accept(v Visitor)      { v.JudgeSelect(s) }
func (s PlayerWaiting) accept(v Visitor)    { v.PlayerWaiting(s) }
func (s Reveal) accept(v Visitor)           { v.Reveal(s) }

// Screens lists every screen once, in decision-table order.
var Screens = []Screen{
	OwnerWaiting{}, NewPlayerWaiting{}, NewPlayerForm{},
	JudgeWaiting{}, PlayerSubmitted{}, PlayerSelect{},
	JudgeSelect{}, PlayerWaiting{},
	Reveal{},
}
