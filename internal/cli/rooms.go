package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/tablesync/internal/factory"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

func newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Room directory commands",
	}

	cmd.AddCommand(newRoomsListCmd())
	cmd.AddCommand(newRoomsCreateCmd())
	cmd.AddCommand(newRoomsQuickMatchCmd())

	return cmd
}

// withLobby connects, runs fn in the lobby and disconnects
func withLobby(fn func(ctx context.Context, app *factory.App) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := connect(ctx, app); err != nil {
		return err
	}
	return fn(ctx, app)
}

func newRoomsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLobby(func(ctx context.Context, app *factory.App) error {
				lobby := app.Navigator.Lobby()
				if err := lobby.Refresh(ctx); err != nil {
					return err
				}
				rooms := lobby.Rooms()
				if rooms == nil {
					rooms = []model.RoomSummary{}
				}
				NewOutput(cfg.Output).Print(rooms)
				return nil
			})
		},
	}
}

func newRoomsCreateCmd() *cobra.Command {
	var req model.CreateRoomRequest
	var fee float64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.EntryFee = model.Amount(fee)
			return withLobby(func(ctx context.Context, app *factory.App) error {
				room, err := app.Navigator.Lobby().Create(ctx, req)
				if err != nil {
					return err
				}
				NewOutput(cfg.Output).Print(room)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Room name (required)")
	cmd.Flags().Float64Var(&fee, "fee", 0, "Entry fee")
	cmd.Flags().IntVar(&req.MaxPlayers, "max-players", 2, "Seats at the table")
	cmd.Flags().BoolVar(&req.IsPrivate, "private", false, "Require a password to join")
	cmd.Flags().StringVar(&req.Password, "password", "", "Room password")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newRoomsQuickMatchCmd() *cobra.Command {
	var amount float64
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "quick-match",
		Short: "Ask the server for a seat at the given stake and play it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLobby(func(ctx context.Context, app *factory.App) error {
				seated := make(chan model.RoomID, 1)
				cancel := app.Navigator.OnScreenChange(func(c navigator.Change) {
					if c.Screen == model.ScreenGame {
						select {
						case seated <- c.RoomID:
						default:
						}
					}
				})
				defer cancel()

				if err := app.Navigator.Lobby().QuickMatch(ctx, model.Amount(amount)); err != nil {
					return err
				}

				out := NewOutput(cfg.Output)
				out.PrintMessage("Searching for a match...")

				timer := time.NewTimer(wait)
				defer timer.Stop()
				select {
				case room := <-seated:
					out.PrintMessage("Seated in room " + string(room))
					p := newPlayer(app, os.Stdin, os.Stdout, cfg.Output)
					defer p.close()
					p.render()
					return p.run(ctx)
				case <-timer.C:
					out.PrintMessage("No match found")
					return nil
				case <-ctx.Done():
					return nil
				}
			})
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "Stake to match on (required)")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "How long to wait for a seat")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
