package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/auth"
	"github.com/mcoot/tablesync/internal/services/game"
	"github.com/mcoot/tablesync/internal/services/gate"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error, using the categorized message when there is one
func (o *Output) PrintError(err error) {
	msg := model.UserMessage(err)
	if o.format == "json" {
		body := map[string]string{"message": msg}
		if kind, ok := model.KindOf(err); ok {
			body["kind"] = string(kind)
		}
		data, _ := json.Marshal(map[string]any{"error": body})
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case *auth.Session:
		o.printSession(v)
	case []model.RoomSummary:
		o.printRooms(v)
	case *model.RoomSummary:
		o.printRooms([]model.RoomSummary{*v})
	case game.View:
		o.printView(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printSession(s *auth.Session) {
	fmt.Fprintf(o.w, "Player: %s (%s)\n", s.DisplayName, s.Username)
	fmt.Fprintf(o.w, "Balance: %.2f\n", float64(s.Balance))
}

func (o *Output) printRooms(rooms []model.RoomSummary) {
	if len(rooms) == 0 {
		fmt.Fprintln(o.w, "No open rooms")
		return
	}
	for _, r := range rooms {
		flags := ""
		if r.IsPrivate {
			flags += " [private]"
		}
		if r.IsFull() {
			flags += " [full]"
		}
		name := r.Name
		if name == "" {
			name = string(r.ID)
		}
		fmt.Fprintf(o.w, "  %-12s %-20s bet %-8.2f %d/%d%s\n",
			r.ID, name, float64(r.BetAmount), r.PlayerCount, r.MaxPlayers, flags)
	}
}

func (o *Output) printView(v game.View) {
	s := v.Session
	fmt.Fprintf(o.w, "Room: %s  State: %s  Seat: %s  Bet: %.2f\n", s.RoomID, s.State, s.Seat, float64(s.BetAmount))
	if s.Opponent != nil {
		fmt.Fprintf(o.w, "Opponent: %s (%s)\n", s.Opponent.Name, s.Opponent.Color)
	}
	if s.TurnOwner != "" {
		fmt.Fprintf(o.w, "Turn: %s  Phase: %s\n", s.TurnOwner, s.Phase)
	}
	if len(s.PendingRoll) > 0 {
		fmt.Fprintf(o.w, "Dice: %v\n", s.PendingRoll)
	}

	if s.State == model.SessionInProgress || s.State == model.SessionEnded {
		o.printBoard(s.Board, s.Selection)
	}

	if s.Message != "" {
		fmt.Fprintf(o.w, "%s\n", s.Message)
	}
	if v.Blocked != "" {
		fmt.Fprintf(o.w, "(%s)\n", v.Blocked)
	}
	o.printControls(v.Controls)
}

// printBoard draws points 13-24 on top and 12-1 below, as seen by white
func (o *Output) printBoard(b model.Board, selection *model.Point) {
	cell := func(p model.Point) string {
		mark := " "
		if selection != nil && *selection == p {
			mark = "*"
		}
		owner, ok := b.Owner(p)
		if !ok {
			return " ." + mark
		}
		return fmt.Sprintf("%c%d%s", strings.ToUpper(string(owner))[0], b.Count(p), mark)
	}

	var top, bottom, topNums, bottomNums strings.Builder
	for p := model.Point(13); p <= model.MaxBoardPoint; p++ {
		topNums.WriteString(fmt.Sprintf("%3d ", p))
		top.WriteString(cell(p) + " ")
	}
	for p := model.Point(12); p >= model.MinBoardPoint; p-- {
		bottomNums.WriteString(fmt.Sprintf("%3d ", p))
		bottom.WriteString(cell(p) + " ")
	}

	fmt.Fprintln(o.w, topNums.String())
	fmt.Fprintln(o.w, top.String())
	fmt.Fprintf(o.w, "  bar W%d B%d   home W%d B%d\n",
		b.Reserve(model.ColorWhite), b.Reserve(model.ColorBlack),
		b.Home[model.ColorWhite], b.Home[model.ColorBlack])
	fmt.Fprintln(o.w, bottom.String())
	fmt.Fprintln(o.w, bottomNums.String())
}

// printControls renders the control list as buttons; disabled ones are
// shown in parentheses
func (o *Output) printControls(controls []gate.Control) {
	if len(controls) == 0 {
		return
	}
	parts := make([]string, 0, len(controls))
	for _, c := range controls {
		if c.Enabled {
			parts = append(parts, "["+c.Label+"]")
		} else {
			parts = append(parts, "("+c.Label+")")
		}
	}
	fmt.Fprintln(o.w, strings.Join(parts, " "))
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}
