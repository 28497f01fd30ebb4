package engine

import (
	"errors"
	"strconv"
	"strings"
)

var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrWrongPhase = errors.New("not valid in the current phase")
var ErrNotPresenter = errors.New("presenter only")
var ErrNotYourTurn = errors.New("not your turn")
var ErrPresenterTaken = errors.New("presenter seat is taken")
var ErrRoleConflict = errors.New("session already holds the other role")
var ErrUnknownSession = errors.New("unknown session")
var ErrNoContestants = errors.New("no contestants have joined")
var ErrNoReadyContestants = errors.New("no contestant is ready")
var ErrInvalidName = errors.New("name must not be empty")
var ErrInvalidAge = errors.New("age must be a number")
var ErrInvalidTarget = errors.New("invalid target player")
var ErrEliminated = errors.New("eliminated contestants cannot act")
var ErrBuzzTaken = errors.New("someone already buzzed in")
var ErrNoQuestion = errors.New("no question to answer")
var ErrNoDecision = errors.New("no decision is pending")
var ErrBadChoice = errors.New("choice must be self or point")
var ErrStaleQuestion = errors.New("question no longer expected")

// Apply validates cmd against s and returns the events it produced plus
// the successor state. On error the returned state is s, untouched.
// Apply never mutates s: callers may keep handing out the old snapshot
// until they commit the new one.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoinPresenter:
		return applyJoinPresenter(s, cmd)
	case CmdJoinContestant:
		return applyJoinContestant(s, cmd)
	case CmdToggleReady:
		return applyToggleReady(s, cmd)
	case CmdStartGame:
		return applyStartGame(s, cmd)
	case CmdPointToPlayer:
		return applyPointToPlayer(s, cmd)
	case CmdBuzzIn:
		return applyBuzzIn(s, cmd)
	case CmdMakeDecision:
		return applyMakeDecision(s, cmd)
	case CmdSubmitAnswer:
		return applySubmitAnswer(s, cmd)
	case CmdResetGame:
		return applyResetGame(s, cmd)
	case CmdQuestionReady:
		return applyQuestionReady(s, cmd)
	case CmdSetOnline:
		return applySetOnline(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoinPresenter(s State, cmd Command) ([]Event, State, error) {
	if s.PresenterID == cmd.SessionID {
		// Idempotent re-claim after a reload.
		return nil, s, nil
	}
	if s.PresenterID != "" {
		return nil, s, ErrPresenterTaken
	}
	if _, ok := s.Contestants[cmd.SessionID]; ok {
		return nil, s, ErrRoleConflict
	}

	ns := s.clone()
	ns.PresenterID = cmd.SessionID
	ns.PresenterOnline = true
	return nil, ns, nil
}

func applyJoinContestant(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusLobby {
		return nil, s, ErrWrongPhase
	}
	if cmd.SessionID == s.PresenterID && s.PresenterID != "" {
		return nil, s, ErrRoleConflict
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, s, ErrInvalidName
	}
	if _, err := strconv.Atoi(strings.TrimSpace(cmd.Age)); err != nil {
		return nil, s, ErrInvalidAge
	}

	ns := s.clone()
	if ct, ok := ns.Contestants[cmd.SessionID]; ok {
		// Rejoin from the lobby: keep the record, refresh the profile.
		ct.Name = name
		ct.Age = strings.TrimSpace(cmd.Age)
		ct.Online = true
		ns.Contestants[cmd.SessionID] = ct
		return nil, ns, nil
	}

	publicID := cmd.PublicID
	if publicID == "" {
		publicID = cmd.SessionID
	}
	ns.Contestants[cmd.SessionID] = Contestant{
		ID:        publicID,
		SessionID: cmd.SessionID,
		Name:      name,
		Age:       strings.TrimSpace(cmd.Age),
		Lives:     StartingLives,
		Online:    true,
	}
	ns.Order = append(ns.Order, cmd.SessionID)
	return nil, ns, nil
}

func applyToggleReady(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusLobby {
		return nil, s, ErrWrongPhase
	}
	ct, ok := s.Contestants[cmd.SessionID]
	if !ok {
		return nil, s, ErrUnknownSession
	}

	ns := s.clone()
	ct.Ready = !ct.Ready
	ns.Contestants[cmd.SessionID] = ct
	return nil, ns, nil
}

func applyStartGame(s State, cmd Command) ([]Event, State, error) {
	if cmd.SessionID != s.PresenterID || s.PresenterID == "" {
		return nil, s, ErrNotPresenter
	}
	if s.Status != StatusLobby {
		return nil, s, ErrWrongPhase
	}
	if len(s.Order) == 0 {
		return nil, s, ErrNoContestants
	}
	ready := false
	for _, ct := range s.Contestants {
		if ct.Ready {
			ready = true
			break
		}
	}
	if !ready {
		return nil, s, ErrNoReadyContestants
	}

	ns := s.clone()
	ns.Status = StatusRound1
	ns.ActivePlayerID = ns.Order[0]
	clearTurnTransients(&ns)
	ns.AwaitingQuestion = true
	return []Event{
		{Type: EvtGameStarted},
		{Type: EvtQuestionNeeded, SessionID: ns.ActivePlayerID},
	}, ns, nil
}

func applyPointToPlayer(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusRound2 || s.CurrentQuestion != nil {
		return nil, s, ErrWrongPhase
	}
	if cmd.SessionID != s.ActivePlayerID {
		return nil, s, ErrNotYourTurn
	}
	if err := validPointTarget(s, cmd.SessionID, cmd.TargetID); err != nil {
		return nil, s, err
	}

	ns := s.clone()
	ns.ActivePlayerID = cmd.TargetID
	clearTurnTransients(&ns)
	ns.AwaitingQuestion = true
	return []Event{
		{Type: EvtTurnAdvanced, SessionID: cmd.TargetID},
		{Type: EvtQuestionNeeded, SessionID: cmd.TargetID},
	}, ns, nil
}

func applyBuzzIn(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusRound3 || s.DecisionPending {
		return nil, s, ErrWrongPhase
	}
	if s.ActivePlayerID != "" {
		// The serialized owner guarantees exactly one concurrent buzz
		// lands here first; everyone after sees the turn taken.
		return nil, s, ErrBuzzTaken
	}
	ct, ok := s.Contestants[cmd.SessionID]
	if !ok {
		return nil, s, ErrUnknownSession
	}
	if ct.Eliminated {
		return nil, s, ErrEliminated
	}

	ns := s.clone()
	ns.ActivePlayerID = cmd.SessionID
	if ns.CurrentQuestion != nil {
		ns.TimerStart = cmd.Now
	}
	events := []Event{{Type: EvtBuzzWon, SessionID: cmd.SessionID}}
	if ns.TimerStart != 0 {
		events = append(events, Event{Type: EvtTimerStarted, SessionID: cmd.SessionID})
	}
	return events, ns, nil
}

func applyMakeDecision(s State, cmd Command) ([]Event, State, error) {
	if !s.DecisionPending {
		return nil, s, ErrNoDecision
	}
	if cmd.SessionID != s.ActivePlayerID {
		return nil, s, ErrNotYourTurn
	}

	ns := s.clone()
	switch cmd.Choice {
	case ChoiceSelf:
		// Keep the turn.
	case ChoicePoint:
		if err := validPointTarget(s, cmd.SessionID, cmd.TargetID); err != nil {
			return nil, s, err
		}
		ns.ActivePlayerID = cmd.TargetID
	default:
		return nil, s, ErrBadChoice
	}

	clearTurnTransients(&ns)
	ns.AwaitingQuestion = true
	return []Event{
		{Type: EvtTurnAdvanced, SessionID: ns.ActivePlayerID},
		{Type: EvtQuestionNeeded, SessionID: ns.ActivePlayerID},
	}, ns, nil
}

func applySubmitAnswer(s State, cmd Command) ([]Event, State, error) {
	if s.Status != StatusRound1 && s.Status != StatusRound2 && s.Status != StatusRound3 {
		return nil, s, ErrWrongPhase
	}
	if s.DecisionPending {
		return nil, s, ErrWrongPhase
	}
	if cmd.SessionID != s.ActivePlayerID || s.ActivePlayerID == "" {
		return nil, s, ErrNotYourTurn
	}
	if s.CurrentQuestion == nil {
		return nil, s, ErrNoQuestion
	}

	// The timeout sentinel short-circuits judging: it is how both the
	// client timer and the server watchdog report an expired countdown.
	correct := cmd.Answer != TimeoutAnswer && AnswerJudge(*s.CurrentQuestion, cmd.Answer)

	ns := s.clone()
	events := []Event{{Type: EvtAnswerJudged, SessionID: cmd.SessionID, Correct: correct}}

	ct := ns.Contestants[cmd.SessionID]
	if correct {
		ct.Score += ScorePerCorrect
	}

	switch ns.Status {
	case StatusRound1:
		ct.Round1Questions++
		if !correct {
			ct.Round1Misses++
			ct.Lives--
			if ct.Round1Misses >= StartingLives {
				ct.Lives = 0
				ct.Eliminated = true
				events = append(events, Event{Type: EvtEliminated, SessionID: ct.SessionID})
			}
		}
		ns.Contestants[cmd.SessionID] = ct
		return resolveRound1Turn(ns, cmd.SessionID, events)

	case StatusRound2:
		if correct {
			// Question answered: the turn holder now points.
			ns.Contestants[cmd.SessionID] = ct
			clearTurnTransients(&ns)
			return events, ns, nil
		}
		ct.Lives = 0
		ct.Eliminated = true
		ns.Contestants[cmd.SessionID] = ct
		events = append(events, Event{Type: EvtEliminated, SessionID: ct.SessionID})
		return resolveRound2Elimination(ns, cmd.SessionID, events)

	default: // StatusRound3
		if correct {
			ns.Contestants[cmd.SessionID] = ct
			clearTurnTransients(&ns)
			ns.DecisionPending = true
			return events, ns, nil
		}
		ct.Lives = 0
		ct.Eliminated = true
		ns.Contestants[cmd.SessionID] = ct
		events = append(events, Event{Type: EvtEliminated, SessionID: ct.SessionID})
		return resolveRound3Elimination(ns, events)
	}
}

// resolveRound1Turn advances the round1 rotation after an answer and
// handles round or game completion.
func resolveRound1Turn(ns State, answerer string, events []Event) ([]Event, State, error) {
	alive := survivors(ns)
	if len(alive) <= 1 {
		finishGame(&ns)
		return append(events, Event{Type: EvtGameFinished}), ns, nil
	}

	next := nextRound1Player(ns, answerer)
	if next == "" {
		// Everyone still standing has had their share: round2 opens
		// with the first survivor in join order holding the turn.
		ns.Status = StatusRound2
		ns.ActivePlayerID = alive[0]
		clearTurnTransients(&ns)
		events = append(events, Event{Type: EvtTurnAdvanced, SessionID: ns.ActivePlayerID})
		return maybeOpenRound3(ns, events)
	}

	ns.ActivePlayerID = next
	clearTurnTransients(&ns)
	ns.AwaitingQuestion = true
	events = append(events,
		Event{Type: EvtTurnAdvanced, SessionID: next},
		Event{Type: EvtQuestionNeeded, SessionID: next},
	)
	return events, ns, nil
}

func resolveRound2Elimination(ns State, eliminated string, events []Event) ([]Event, State, error) {
	alive := survivors(ns)
	if len(alive) <= 1 {
		finishGame(&ns)
		return append(events, Event{Type: EvtGameFinished}), ns, nil
	}

	ns.ActivePlayerID = nextAlive(ns, eliminated)
	clearTurnTransients(&ns)
	events = append(events, Event{Type: EvtTurnAdvanced, SessionID: ns.ActivePlayerID})
	return maybeOpenRound3(ns, events)
}

// maybeOpenRound3 hands round2 over to the buzzer round once the field
// is small enough.
func maybeOpenRound3(ns State, events []Event) ([]Event, State, error) {
	if ns.Status != StatusRound2 || len(survivors(ns)) > Round3Threshold {
		return events, ns, nil
	}
	ns.Status = StatusRound3
	ns.ActivePlayerID = ""
	clearTurnTransients(&ns)
	ns.AwaitingQuestion = true
	events = append(events, Event{Type: EvtQuestionNeeded})
	return events, ns, nil
}

func resolveRound3Elimination(ns State, events []Event) ([]Event, State, error) {
	if len(survivors(ns)) <= 1 {
		finishGame(&ns)
		return append(events, Event{Type: EvtGameFinished}), ns, nil
	}

	// Buzzer reopens for the remaining field with a fresh question.
	ns.ActivePlayerID = ""
	clearTurnTransients(&ns)
	ns.AwaitingQuestion = true
	events = append(events, Event{Type: EvtQuestionNeeded})
	return events, ns, nil
}

func applyResetGame(s State, cmd Command) ([]Event, State, error) {
	if cmd.SessionID != s.PresenterID || s.PresenterID == "" {
		return nil, s, ErrNotPresenter
	}

	ns := s.clone()
	ns.Status = StatusLobby
	ns.ActivePlayerID = ""
	clearTurnTransients(&ns)
	for id, ct := range ns.Contestants {
		ct.Score = 0
		ct.Lives = StartingLives
		ct.Ready = false
		ct.Eliminated = false
		ct.Round1Misses = 0
		ct.Round1Questions = 0
		ns.Contestants[id] = ct
	}
	return []Event{{Type: EvtGameReset}}, ns, nil
}

func applyQuestionReady(s State, cmd Command) ([]Event, State, error) {
	if !s.AwaitingQuestion || s.CurrentQuestion != nil || cmd.Question == nil {
		return nil, s, ErrStaleQuestion
	}

	ns := s.clone()
	ns.AwaitingQuestion = false
	q := *cmd.Question
	ns.CurrentQuestion = &q
	var events []Event
	if ns.ActivePlayerID != "" {
		ns.TimerStart = cmd.Now
		events = append(events, Event{Type: EvtTimerStarted, SessionID: ns.ActivePlayerID})
	}
	return events, ns, nil
}

func applySetOnline(s State, cmd Command) ([]Event, State, error) {
	if s.PresenterID != "" && cmd.SessionID == s.PresenterID {
		ns := s.clone()
		ns.PresenterOnline = cmd.Online
		return nil, ns, nil
	}
	ct, ok := s.Contestants[cmd.SessionID]
	if !ok {
		return nil, s, ErrUnknownSession
	}

	ns := s.clone()
	ct.Online = cmd.Online
	ns.Contestants[cmd.SessionID] = ct
	return nil, ns, nil
}
