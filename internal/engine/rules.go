package engine

import "strings"

// AnswerJudge decides whether an answer matches the current question.
// Package-level so the adjudication collaborator can be swapped (and
// stubbed in tests). The timeout sentinel is handled before this is
// ever consulted.
var AnswerJudge = func(q Question, answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer))
}

// SubPhase labels the transient phase inside a round, derived the same
// way clients derive it: round2 is pointing until a question exists,
// round3 is the buzzer race until someone holds the turn.
func SubPhase(s State) string {
	switch s.Status {
	case StatusRound1:
		return "answering"
	case StatusRound2:
		if s.CurrentQuestion == nil {
			return "pointing"
		}
		return "answering"
	case StatusRound3:
		if s.DecisionPending {
			return "decision"
		}
		if s.ActivePlayerID == "" {
			return "buzzer"
		}
		return "answering"
	default:
		return ""
	}
}

func survivors(s State) []string {
	var alive []string
	for _, id := range s.Order {
		if !s.Contestants[id].Eliminated {
			alive = append(alive, id)
		}
	}
	return alive
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// nextAlive walks the join order from the slot after current, wrapping,
// and returns the first non-eliminated contestant other than current.
func nextAlive(s State, current string) string {
	start := indexOf(s.Order, current)
	n := len(s.Order)
	for i := 1; i <= n; i++ {
		id := s.Order[(start+i)%n]
		if id != current && !s.Contestants[id].Eliminated {
			return id
		}
	}
	return ""
}

// nextRound1Player returns the next contestant still owed round1
// questions, or "" when the round is exhausted.
func nextRound1Player(s State, current string) string {
	start := indexOf(s.Order, current)
	n := len(s.Order)
	for i := 1; i <= n; i++ {
		id := s.Order[(start+i)%n]
		ct := s.Contestants[id]
		if !ct.Eliminated && ct.Round1Questions < Round1QuestionsPerPlayer {
			return id
		}
	}
	return ""
}

// validPointTarget enforces the pointing rules shared by round2 and a
// round3 "point" decision: the target must exist, be someone else, be
// online, and still be in the game.
func validPointTarget(s State, pointer, target string) error {
	ct, ok := s.Contestants[target]
	if !ok || target == pointer {
		return ErrInvalidTarget
	}
	if ct.Eliminated || !ct.Online {
		return ErrInvalidTarget
	}
	return nil
}

func clearTurnTransients(s *State) {
	s.CurrentQuestion = nil
	s.TimerStart = 0
	s.DecisionPending = false
	s.AwaitingQuestion = false
}

func finishGame(s *State) {
	s.Status = StatusFinished
	s.ActivePlayerID = ""
	clearTurnTransients(s)
}
