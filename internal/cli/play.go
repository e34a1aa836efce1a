package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mcoot/tablesync/internal/factory"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

const playHelp = `Commands:
  rooms                   list open rooms
  join <room> [password]  join a room
  quick <amount>          quick match at a stake
  look                    show the current screen
  roll | end | off | bar  roll, end turn, bear off, select the bar
  click <point>           select an origin or move to a point
  move <point>            move the selection to a point
  sync                    reload the game state
  leave                   leave the room
  chat <text> | say <text> | emoji <emoji>
  fold | call | allin | showdown | raise <amount>
  quit`

func newPlayCmd() *cobra.Command {
	var embedded bool
	var password string

	cmd := &cobra.Command{
		Use:   "play [room]",
		Short: "Play interactively, or embedded in a host shell",
		Long: `Connect to the hub and play from the terminal. With a room argument the
room is joined straight away.

With --embedded, stdin and stdout carry line-delimited JSON messages from
and to a host shell instead. The host sends INIT_USER with the session
token before anything else.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if embedded {
				return runEmbedded(ctx, app, os.Stdin, os.Stdout)
			}

			if err := connect(ctx, app); err != nil {
				return err
			}
			p := newPlayer(app, os.Stdin, os.Stdout, cfg.Output)
			defer p.close()

			if len(args) == 1 {
				p.exec(ctx, "join "+args[0]+" "+password)
			} else {
				p.render()
			}
			return p.run(ctx)
		},
	}

	cmd.Flags().BoolVar(&embedded, "embedded", false, "Talk to a host shell over stdin/stdout")
	cmd.Flags().StringVar(&password, "password", "", "Password for the room argument")

	return cmd
}

// syncWriter serializes writes from the command loop and hub callbacks
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// player runs the interactive command loop
type player struct {
	app     *factory.App
	in      io.Reader
	out     *Output
	cancels []func()
}

func newPlayer(app *factory.App, in io.Reader, w io.Writer, format string) *player {
	p := &player{
		app: app,
		in:  in,
		out: &Output{format: format, w: &syncWriter{w: w}},
	}

	p.cancels = append(p.cancels,
		app.Navigator.Notifier().OnChange(func(n *model.Notification) {
			if n != nil {
				p.out.PrintMessage("! " + n.Text)
			}
		}),
		app.Navigator.OnScreenChange(func(c navigator.Change) {
			switch c.Screen {
			case model.ScreenGame:
				p.out.PrintMessage("Entered room " + string(c.RoomID))
			case model.ScreenLobby:
				if c.Previous == model.ScreenGame {
					p.out.PrintMessage("Back in the lobby")
				}
			}
		}),
	)
	return p
}

func (p *player) close() {
	for _, cancel := range p.cancels {
		cancel()
	}
}

// run reads commands until quit, end of input or ctx is done
func (p *player) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if !p.exec(ctx, line) {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether to keep going
func (p *player) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	verb, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	var err error
	switch verb {
	case "quit", "exit":
		return false
	case "help", "?":
		p.out.PrintMessage(playHelp)
		return true
	case "look":
	case "rooms":
		err = p.app.Navigator.Lobby().Refresh(ctx)
	case "join":
		if len(fields) < 2 {
			err = model.Precondition("join", model.ErrRoomRequired)
			break
		}
		password := ""
		if len(fields) > 2 {
			password = fields[2]
		}
		err = p.app.Navigator.JoinRoom(ctx, model.RoomID(fields[1]), password)
	case "quick":
		var amount float64
		if amount, err = argFloat(fields); err == nil {
			err = p.app.Navigator.Lobby().QuickMatch(ctx, model.Amount(amount))
		}
	case "leave":
		err = p.app.Navigator.Leave(ctx)
	case "fold", "call", "allin", "showdown", "raise":
		err = p.table(ctx, verb, fields)
	default:
		err = p.game(ctx, verb, rest, fields)
	}

	if err != nil {
		p.out.PrintError(err)
		return true
	}
	p.render()
	return true
}

// game runs a board or chat command against the active session
func (p *player) game(ctx context.Context, verb, rest string, fields []string) error {
	sess := p.app.Navigator.Game()
	if sess == nil {
		if isGameVerb(verb) {
			return model.Precondition(verb, model.ErrNotInRoom)
		}
		return fmt.Errorf("unknown command %q, try help", verb)
	}

	switch verb {
	case "roll":
		return sess.Roll(ctx)
	case "end":
		return sess.EndTurn(ctx)
	case "off":
		return sess.BearOff(ctx)
	case "bar":
		return sess.SelectBar()
	case "sync":
		return sess.Refresh(ctx)
	case "click", "move":
		point, err := argPoint(fields)
		if err != nil {
			return err
		}
		if verb == "click" {
			return sess.ClickPoint(ctx, point)
		}
		return sess.AttemptMove(ctx, point)
	case "chat":
		return sess.SendChat(ctx, rest)
	case "say":
		return sess.SendQuickMessage(ctx, rest)
	case "emoji":
		return sess.SendQuickEmoji(ctx, rest)
	}
	return fmt.Errorf("unknown command %q, try help", verb)
}

// table runs a betting command against the active table
func (p *player) table(ctx context.Context, verb string, fields []string) error {
	t := p.app.Navigator.Table()
	if t == nil {
		return model.Precondition(verb, model.ErrNotInRoom)
	}

	switch verb {
	case "fold":
		return t.Fold(ctx)
	case "call":
		return t.Call(ctx)
	case "allin":
		return t.AllIn(ctx)
	case "showdown":
		return t.ShowdownCall(ctx)
	default:
		amount, err := argFloat(fields)
		if err != nil {
			return err
		}
		return t.Raise(ctx, model.Amount(amount))
	}
}

// render prints the active screen
func (p *player) render() {
	if sess := p.app.Navigator.Game(); sess != nil {
		p.out.Print(sess.View())
		return
	}
	p.out.Print(p.app.Navigator.Lobby().Rooms())
}

func isGameVerb(verb string) bool {
	switch verb {
	case "roll", "end", "off", "bar", "sync", "click", "move", "chat", "say", "emoji":
		return true
	}
	return false
}

func argPoint(fields []string) (model.Point, error) {
	if len(fields) < 2 {
		return 0, model.Precondition(fields[0], model.ErrInvalidPoint)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, model.Precondition(fields[0], model.ErrInvalidPoint)
	}
	return model.Point(n), nil
}

func argFloat(fields []string) (float64, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("%s needs an amount", fields[0])
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", fields[1])
	}
	return v, nil
}
