package client

import (
	"fmt"

	"github.com/one-of-fifteen/backend/pkg/types"
)

// View is everything the UI needs, derived from a snapshot. It holds no
// authority of its own: when the next snapshot disagrees, the snapshot
// wins and the view is simply derived again.
type View struct {
	PhaseLabel   string
	IsMyTurn     bool
	IsEliminated bool
	IsPointing   bool
	CanBuzz      bool
	DecisionOpen bool
}

// DeriveView is a pure function of the snapshot and the viewer's
// session id. Predicates follow the snapshot shape directly: pointing
// is round2 without a question, the buzzer race is round3 without a
// turn holder, a decision is round3 with the flag on the viewer's turn.
func DeriveView(u types.StateUpdate, selfSessionID string) View {
	active := ""
	if u.ActivePlayerID != nil {
		active = *u.ActivePlayerID
	}

	var me *types.Contestant
	names := make(map[string]string, len(u.Contestants))
	for i := range u.Contestants {
		ct := &u.Contestants[i]
		names[ct.SessionID] = ct.Name
		if ct.SessionID == selfSessionID {
			me = ct
		}
	}

	v := View{
		IsMyTurn:     active != "" && active == selfSessionID,
		IsEliminated: me != nil && me.Eliminated,
	}
	pointing := u.Status == "round2" && u.CurrentQuestion == nil
	buzzer := u.Status == "round3" && active == ""
	v.IsPointing = pointing && v.IsMyTurn
	v.CanBuzz = buzzer && me != nil && !me.Eliminated
	v.DecisionOpen = u.Status == "round3" && v.IsMyTurn && u.DecisionPending

	v.PhaseLabel = phaseLabel(u, v, active, names, pointing, buzzer)
	return v
}

// phaseLabel picks the status line in fixed precedence: lobby, then
// eliminated, then pointing, then the round3 sub-phases, then the
// generic turn messages.
func phaseLabel(u types.StateUpdate, v View, active string, names map[string]string, pointing, buzzer bool) string {
	name := func(id string) string {
		if n, ok := names[id]; ok && n != "" {
			return n
		}
		return "another player"
	}

	switch {
	case u.Status == "lobby":
		return "Waiting in the lobby"
	case u.Status == "finished":
		for _, ct := range u.Contestants {
			if !ct.Eliminated {
				return fmt.Sprintf("Game over, %s wins", ct.Name)
			}
		}
		return "Game over"
	case v.IsEliminated:
		return "You are eliminated"
	case v.IsPointing:
		return "Choose the next player"
	case pointing:
		return fmt.Sprintf("%s is choosing the next player", name(active))
	case v.DecisionOpen:
		return "Keep the turn or point to another player"
	case u.Status == "round3" && u.DecisionPending:
		return fmt.Sprintf("%s is deciding", name(active))
	case v.CanBuzz:
		return "Buzz in!"
	case buzzer:
		return "Waiting for a buzz"
	case v.IsMyTurn:
		return "Your turn"
	case active != "":
		return fmt.Sprintf("%s is answering", name(active))
	default:
		return ""
	}
}
