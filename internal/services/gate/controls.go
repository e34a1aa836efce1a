package gate

import "github.com/mcoot/tablesync/internal/model"

// Control is one renderable button
type Control struct {
	Action  Action `json:"action"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

var (
	boardActions = []Action{ActionRoll, ActionBearOff, ActionEndTurn}
	tableActions = []Action{ActionFold, ActionCall, ActionRaise, ActionAllIn, ActionShowdown}

	labels = map[Action]string{
		ActionRoll:     "Roll dice",
		ActionBearOff:  "Bear off",
		ActionEndTurn:  "End turn",
		ActionFold:     "Fold",
		ActionCall:     "Call",
		ActionRaise:    "Raise",
		ActionAllIn:    "All in",
		ActionShowdown: "Showdown",
	}
)

// BoardControls returns the backgammon buttons
func BoardControls(e Eligibility) []Control {
	return controls(boardActions, e)
}

// TableControls returns the betting table buttons
func TableControls(e Eligibility) []Control {
	return controls(tableActions, e)
}

func controls(actions []Action, e Eligibility) []Control {
	out := make([]Control, 0, len(actions))
	for _, a := range actions {
		c := Control{Action: a, Label: labels[a], Enabled: true}
		if err := Check(a, e); err != nil {
			c.Enabled = false
			c.Reason = model.UserMessage(err)
		}
		out = append(out, c)
	}
	return out
}
