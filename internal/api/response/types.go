package response

import (
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/gate"
	"github.com/mcoot/tablesync/internal/services/identity"
	"github.com/mcoot/tablesync/internal/services/navigator"
	"github.com/mcoot/tablesync/internal/services/table"
	"github.com/mcoot/tablesync/internal/services/wallet"
)

// Status is a plain acknowledgement
type Status struct {
	Status string `json:"status"`
}

// OK is the acknowledgement for intents without a richer result
var OK = Status{Status: "ok"}

// Screen reports the active navigation scope
type Screen struct {
	Screen model.Screen `json:"screen"`
	RoomID model.RoomID `json:"room_id,omitempty"`
}

// ScreenFromNavigator reads the current screen
func ScreenFromNavigator(nav *navigator.Navigator) Screen {
	s := Screen{Screen: nav.Screen()}
	if sess := nav.Game(); sess != nil {
		s.RoomID = sess.RoomID()
	}
	return s
}

// Player describes the local player
type Player struct {
	Username    model.Username    `json:"username,omitempty"`
	DisplayName model.DisplayName `json:"display_name"`
	Confirmed   bool              `json:"confirmed"`
	Balance     *model.Amount     `json:"balance,omitempty"`
}

// PlayerFromServices combines identity and wallet state
func PlayerFromServices(b *identity.Binder, w *wallet.Wallet) Player {
	p := Player{DisplayName: b.DisplayName(), Confirmed: b.Confirmed()}
	if username, ok := b.Username(); ok {
		p.Username = username
	}
	if balance, ok := w.Balance(); ok {
		p.Balance = &balance
	}
	return p
}

// Table is the betting table state with its controls
type Table struct {
	State       *model.TableState `json:"state"`
	Eligibility gate.Eligibility  `json:"eligibility"`
	Controls    []gate.Control    `json:"controls"`
}

// TableFromTracker reads a table tracker
func TableFromTracker(t *table.Tracker) Table {
	out := Table{Eligibility: t.Eligibility(), Controls: t.Controls()}
	if state, ok := t.State(); ok {
		out.State = &state
	}
	return out
}
