package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/transport"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream raw hub events",
		Long: `Connect to the game hub and print every event it pushes, without
acting on any of them. Useful to see what the server sends.

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			var subs transport.Group
			defer subs.Off()
			for _, event := range model.AllEvents {
				name := event
				subs.Add(app.Transport.On(name, func(args transport.Arguments) {
					printEvent(string(name), args, jsonOutput)
				}))
			}
			closed := make(chan error, 1)
			subs.Add(app.Transport.OnClosed(func(err error) {
				select {
				case closed <- err:
				default:
				}
			}))

			if err := app.Transport.Connect(ctx); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Println("Connected to hub")
			}

			select {
			case <-ctx.Done():
			case err := <-closed:
				if err != nil {
					return err
				}
			}

			if !jsonOutput {
				fmt.Println("Disconnected")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// HubEvent is one printed hub event
type HubEvent struct {
	Time      time.Time         `json:"time"`
	Event     string            `json:"event"`
	Arguments []json.RawMessage `json:"arguments"`
}

func printEvent(event string, args transport.Arguments, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		evt := HubEvent{
			Time:      now,
			Event:     event,
			Arguments: args,
		}
		jsonData, _ := json.Marshal(evt)
		fmt.Println(string(jsonData))
		return
	}

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = string(a)
	}
	displayData := strings.Join(parts, " ")
	// Truncate data if it's too long for display
	if len(displayData) > 100 {
		displayData = displayData[:100] + "..."
	}
	timestamp := now.Format("2006-01-02 15:04:05")
	fmt.Printf("[%s] %s: %s\n", timestamp, event, displayData)
}
