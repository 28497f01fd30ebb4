package engine

import (
	"errors"
	"strconv"
	"testing"
)

// lobbyWithContestants builds a lobby with n ready contestants named
// p1..pn and a bound presenter "host".
func lobbyWithContestants(t *testing.T, n int) State {
	t.Helper()
	s := NewState()

	_, s, err := Apply(s, Command{Type: CmdJoinPresenter, SessionID: "host"})
	if err != nil {
		t.Fatalf("join_presenter: %v", err)
	}
	for i := 1; i <= n; i++ {
		id := "p" + strconv.Itoa(i)
		_, s, err = Apply(s, Command{Type: CmdJoinContestant, SessionID: id, Name: "Player " + id, Age: "30"})
		if err != nil {
			t.Fatalf("join_contestant %s: %v", id, err)
		}
		_, s, err = Apply(s, Command{Type: CmdToggleReady, SessionID: id})
		if err != nil {
			t.Fatalf("toggle_ready %s: %v", id, err)
		}
	}
	return s
}

func startedRound1(t *testing.T, n int) State {
	t.Helper()
	s := lobbyWithContestants(t, n)
	_, s, err := Apply(s, Command{Type: CmdStartGame, SessionID: "host"})
	if err != nil {
		t.Fatalf("start_game: %v", err)
	}
	return s
}

func deliverQuestion(t *testing.T, s State, answer string) State {
	t.Helper()
	_, s, err := Apply(s, Command{
		Type:     CmdQuestionReady,
		Question: &Question{Text: "capital of France?", Answer: answer},
		Now:      1000,
	})
	if err != nil {
		t.Fatalf("question_ready: %v", err)
	}
	return s
}

func TestJoinPresenter_IdempotentAndExclusive(t *testing.T) {
	s := NewState()

	_, s, err := Apply(s, Command{Type: CmdJoinPresenter, SessionID: "host"})
	if err != nil {
		t.Fatalf("first join_presenter: %v", err)
	}

	// Same session again: no-op, not an error and not a double-bind.
	_, s, err = Apply(s, Command{Type: CmdJoinPresenter, SessionID: "host"})
	if err != nil {
		t.Fatalf("repeat join_presenter: %v", err)
	}
	if s.PresenterID != "host" {
		t.Fatalf("presenter binding changed: %q", s.PresenterID)
	}

	_, _, err = Apply(s, Command{Type: CmdJoinPresenter, SessionID: "intruder"})
	if !errors.Is(err, ErrPresenterTaken) {
		t.Fatalf("want ErrPresenterTaken, got %v", err)
	}
}

func TestJoinContestant_Validation(t *testing.T) {
	cases := []struct {
		name    string
		cmd     Command
		wantErr error
	}{
		{
			name: "valid join",
			cmd:  Command{Type: CmdJoinContestant, SessionID: "c1", Name: "Ann", Age: "25"},
		},
		{
			name:    "empty name",
			cmd:     Command{Type: CmdJoinContestant, SessionID: "c1", Name: "  ", Age: "25"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "non-numeric age",
			cmd:     Command{Type: CmdJoinContestant, SessionID: "c1", Name: "Ann", Age: "old"},
			wantErr: ErrInvalidAge,
		},
		{
			name:    "presenter cannot also join as contestant",
			cmd:     Command{Type: CmdJoinContestant, SessionID: "host", Name: "Ann", Age: "25"},
			wantErr: ErrRoleConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewState()
			_, s, err := Apply(s, Command{Type: CmdJoinPresenter, SessionID: "host"})
			if err != nil {
				t.Fatalf("join_presenter: %v", err)
			}

			_, _, err = Apply(s, tc.cmd)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestJoinContestant_RejectedOutsideLobby(t *testing.T) {
	s := startedRound1(t, 2)
	_, _, err := Apply(s, Command{Type: CmdJoinContestant, SessionID: "late", Name: "Late", Age: "40"})
	if !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("want ErrWrongPhase, got %v", err)
	}
}

func TestStartGame_Validation(t *testing.T) {
	t.Run("empty roster rejected", func(t *testing.T) {
		s := NewState()
		_, s, _ = Apply(s, Command{Type: CmdJoinPresenter, SessionID: "host"})
		_, _, err := Apply(s, Command{Type: CmdStartGame, SessionID: "host"})
		if !errors.Is(err, ErrNoContestants) {
			t.Fatalf("want ErrNoContestants, got %v", err)
		}
	})

	t.Run("nobody ready rejected", func(t *testing.T) {
		s := NewState()
		_, s, _ = Apply(s, Command{Type: CmdJoinPresenter, SessionID: "host"})
		_, s, _ = Apply(s, Command{Type: CmdJoinContestant, SessionID: "c1", Name: "Ann", Age: "25"})
		_, _, err := Apply(s, Command{Type: CmdStartGame, SessionID: "host"})
		if !errors.Is(err, ErrNoReadyContestants) {
			t.Fatalf("want ErrNoReadyContestants, got %v", err)
		}
	})

	t.Run("contestant cannot start", func(t *testing.T) {
		s := lobbyWithContestants(t, 1)
		_, _, err := Apply(s, Command{Type: CmdStartGame, SessionID: "p1"})
		if !errors.Is(err, ErrNotPresenter) {
			t.Fatalf("want ErrNotPresenter, got %v", err)
		}
	})

	t.Run("accepted with a ready contestant", func(t *testing.T) {
		s := lobbyWithContestants(t, 2)
		events, s, err := Apply(s, Command{Type: CmdStartGame, SessionID: "host"})
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if s.Status != StatusRound1 {
			t.Fatalf("want round1, got %v", s.Status)
		}
		if s.ActivePlayerID != "p1" {
			t.Fatalf("first joiner should hold the turn, got %q", s.ActivePlayerID)
		}
		if !ContainsEvent(events, EvtQuestionNeeded) {
			t.Fatalf("expected EvtQuestionNeeded")
		}
	})

	t.Run("rejected from non-lobby", func(t *testing.T) {
		s := startedRound1(t, 2)
		_, _, err := Apply(s, Command{Type: CmdStartGame, SessionID: "host"})
		if !errors.Is(err, ErrWrongPhase) {
			t.Fatalf("want ErrWrongPhase, got %v", err)
		}
	})
}

func TestRound1_CorrectAnswerScoresAndRotates(t *testing.T) {
	s := startedRound1(t, 2)
	s = deliverQuestion(t, s, "Paris")

	if s.TimerStart == 0 {
		t.Fatalf("timer should run while a question is open")
	}

	events, s, err := Apply(s, Command{Type: CmdSubmitAnswer, SessionID: "p1", Answer: "paris"})
	if err != nil {
		t.Fatalf("submit_answer: %v", err)
	}
	if got := s.Contestants["p1"].Score; got != ScorePerCorrect {
		t.Fatalf("want score %d, got %d", ScorePerCorrect, got)
	}
	if s.ActivePlayerID != "p2" {
		t.Fatalf("turn should rotate to p2, got %q", s.ActivePlayerID)
	}
	if s.CurrentQuestion != nil || s.TimerStart != 0 {
		t.Fatalf("transients should clear between questions")
	}
	if !ContainsEvent(events, EvtTurnAdvanced) {
		t.Fatalf("expected EvtTurnAdvanced")
	}
}

func TestRound1_TwoStrikesEliminate(t *testing.T) {
	s := startedRound1(t, 3)

	// p1 misses twice; rotation comes back after p2 and p3 each answer.
	miss := func(who string) {
		t.Helper()
		s = deliverQuestion(t, s, "Paris")
		var err error
		_, s, err = Apply(s, Command{Type: CmdSubmitAnswer, SessionID: who, Answer: "London"})
		if err != nil {
			t.Fatalf("submit_answer %s: %v", who, err)
		}
	}

	miss("p1") // strike one
	if s.Contestants["p1"].Eliminated {
		t.Fatalf("one strike must not eliminate")
	}
	miss("p2")
	miss("p3")
	miss("p1") // strike two

	ct := s.Contestants["p1"]
	if !ct.Eliminated || ct.Lives != 0 || ct.Round1Misses != 2 {
		t.Fatalf("want eliminated after two strikes, got %+v", ct)
	}
	if s.ActivePlayerID == "p1" {
		t.Fatalf("eliminated contestant must never hold the turn")
	}

	// And never again: play the game out and check every turn holder.
	for s.Status == StatusRound1 {
		if s.ActivePlayerID == "p1" {
			t.Fatalf("eliminated contestant regained the turn")
		}
		s = deliverQuestion(t, s, "Paris")
		var err error
		_, s, err = Apply(s, Command{Type: CmdSubmitAnswer, SessionID: s.ActivePlayerID, Answer: "Paris"})
		if err != nil {
			t.Fatalf("submit_answer: %v", err)
		}
	}
}

func TestRound1_TimeoutSentinelAlwaysIncorrect(t *testing.T) {
	s := startedRound1(t, 2)

	// Question whose expected answer IS the sentinel; it still counts
	// as a miss.
	s = deliverQuestion(t, s, TimeoutAnswer)

	events, s, err := Apply(s, Command{Type: CmdSubmitAnswer, SessionID: "p1", Answer: TimeoutAnswer})
	if err != nil {
		t.Fatalf("submit_answer: %v", err)
	}
	for _, e := range events {
		if e.Type == EvtAnswerJudged && e.Correct {
			t.Fatalf("timeout sentinel judged correct")
		}
	}
	if got := s.Contestants["p1"].Round1Misses; got != 1 {
		t.Fatalf("want one miss, got %d", got)
	}
}

// playToRound2 runs a clean round1 (everyone answers correctly) and
// returns the round2 state. Survivor p1 holds the turn.
func playToRound2(t *testing.T, n int) State {
	t.Helper()
	s := startedRound1(t, n)
	for s.Status == StatusRound1 {
		s = deliverQuestion(t, s, "Paris")
		var err error
		_, s, err = Apply(s, Command{Type: CmdSubmitAnswer, SessionID: s.ActivePlayerID, Answer: "Paris"})
		if err != nil {
			t.Fatalf("submit_answer: %v", err)
		}
	}
	if s.Status != StatusRound2 && s.Status != StatusRound3 {
		t.Fatalf("round1 should hand over to round2/3, got %v", s.Status)
	}
	return s
}

func TestRound2_PointingRules(t *testing.T) {
	// 5 players so a full round1 lands in round2, not round3.
	base := playToRound2(t, 5)
	if base.Status != StatusRound2 {
		t.Fatalf("want round2, got %v", base.Status)
	}
	if SubPhase(base) != "pointing" {
		t.Fatalf("round2 without a question must be the pointing phase")
	}

	// Take p3 offline for the offline-target case.
	_, offline, err := Apply(base, Command{Type: CmdSetOnline, SessionID: "p3", Online: false})
	if err != nil {
		t.Fatalf("set_online: %v", err)
	}

	cases := []struct {
		name    string
		state   State
		cmd     Command
		wantErr error
	}{
		{
			name:  "valid target",
			state: base,
			cmd:   Command{Type: CmdPointToPlayer, SessionID: "p1", TargetID: "p2"},
		},
		{
			name:    "cannot point at self",
			state:   base,
			cmd:     Command{Type: CmdPointToPlayer, SessionID: "p1", TargetID: "p1"},
			wantErr: ErrInvalidTarget,
		},
		{
			name:    "cannot point at offline player",
			state:   offline,
			cmd:     Command{Type: CmdPointToPlayer, SessionID: "p1", TargetID: "p3"},
			wantErr: ErrInvalidTarget,
		},
		{
			name:    "unknown target",
			state:   base,
			cmd:     Command{Type: CmdPointToPlayer, SessionID: "p1", TargetID: "ghost"},
			wantErr: ErrInvalidTarget,
		},
		{
			name:    "only the turn holder points",
			state:   base,
			cmd:     Command{Type: CmdPointToPlayer, SessionID: "p2", TargetID: "p4"},
			wantErr: ErrNotYourTurn,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ns, err := Apply(tc.state, tc.cmd)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if ns.ActivePlayerID != tc.cmd.TargetID {
				t.Fatalf("turn should transfer to %q, got %q", tc.cmd.TargetID, ns.ActivePlayerID)
			}
		})
	}
}

func TestRound2_EliminatedTargetRejected(t *testing.T) {
	s := playToRound2(t, 5)

	// p1 points at p2, who then misses and is eliminated.
	_, s, err := Apply(s, Command{Type: CmdPointToPlayer, SessionID: "p1", TargetID: "p2"})
	if err != nil {
		t.Fatalf("point: %v", err)
	}
	s = deliverQuestion(t, s, "Paris")
	_, s, err = Apply(s, Command{Type: CmdSubmitAnswer, SessionID: "p2", Answer: "Rome"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !s.Contestants["p2"].Eliminated {
		t.Fatalf("round2 miss must eliminate immediately")
	}

	if s.Status != StatusRound2 {
		// 4 survivors of 5 with threshold 3 keeps us in round2; guard
		// against constant drift breaking the premise.
		t.Fatalf("want round2 to continue, got %v", s.Status)
	}
	_, _, err = Apply(s, Command{Type: CmdPointToPlayer, SessionID: s.ActivePlayerID, TargetID: "p2"})
	if !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("want ErrInvalidTarget for eliminated target, got %v", err)
	}
}

// playToRound3 eliminates players in round2 until the buzzer round
// opens.
func playToRound3(t *testing.T) State {
	t.Helper()
	s := playToRound2(t, 5)
	for s.Status == StatusRound2 {
		victim := nextAlive(s, s.ActivePlayerID)
		_, s, _ = Apply(s, Command{Type: CmdPointToPlayer, SessionID: s.ActivePlayerID, TargetID: victim})
		s = deliverQuestion(t, s, "Paris")
		var err error
		_, s, err = Apply(s, Command{Type: CmdSubmitAnswer, SessionID: victim, Answer: "Rome"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if s.Status != StatusRound3 {
		t.Fatalf("want round3, got %v", s.Status)
	}
	return s
}

func TestRound3_BuzzFlow(t *testing.T) {
	s := playToRound3(t)
	if s.ActivePlayerID != "" {
		t.Fatalf("round3 must open with the buzzer free")
	}
	if SubPhase(s) != "buzzer" {
		t.Fatalf("want buzzer sub-phase, got %q", SubPhase(s))
	}

	s = deliverQuestion(t, s, "Paris")
	winner := survivors(s)[0]
	loser := survivors(s)[1]

	_, s, err := Apply(s, Command{Type: CmdBuzzIn, SessionID: winner, Now: 2000})
	if err != nil {
		t.Fatalf("first buzz: %v", err)
	}
	if s.ActivePlayerID != winner {
		t.Fatalf("buzz winner should hold the turn")
	}
	if s.TimerStart != 2000 {
		t.Fatalf("buzzing on an open question must start the countdown")
	}

	// Everyone after the first valid buzz is rejected.
	_, _, err = Apply(s, Command{Type: CmdBuzzIn, SessionID: loser})
	if !errors.Is(err, ErrBuzzTaken) {
		t.Fatalf("want ErrBuzzTaken, got %v", err)
	}

	// Correct answer opens the decision, it does not advance the game.
	_, s, err = Apply(s, Command{Type: CmdSubmitAnswer, SessionID: winner, Answer: "Paris"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !s.DecisionPending {
		t.Fatalf("correct round3 answer must set decision_pending")
	}
	if s.Status != StatusRound3 || s.ActivePlayerID != winner {
		t.Fatalf("decision belongs to the buzz winner")
	}

	// Pointing a decision at another survivor transfers the turn.
	events, s, err := Apply(s, Command{Type: CmdMakeDecision, SessionID: winner, Choice: ChoicePoint, TargetID: loser})
	if err != nil {
		t.Fatalf("make_decision: %v", err)
	}
	if s.DecisionPending {
		t.Fatalf("decision must clear")
	}
	if s.ActivePlayerID != loser {
		t.Fatalf("turn should transfer to %q", loser)
	}
	if !ContainsEvent(events, EvtQuestionNeeded) {
		t.Fatalf("the chosen player is owed a question")
	}
}

func TestRound3_DecisionSelfKeepsTurn(t *testing.T) {
	s := playToRound3(t)
	s = deliverQuestion(t, s, "Paris")
	winner := survivors(s)[0]
	_, s, _ = Apply(s, Command{Type: CmdBuzzIn, SessionID: winner, Now: 2000})
	_, s, _ = Apply(s, Command{Type: CmdSubmitAnswer, SessionID: winner, Answer: "Paris"})

	_, s, err := Apply(s, Command{Type: CmdMakeDecision, SessionID: winner, Choice: ChoiceSelf})
	if err != nil {
		t.Fatalf("make_decision: %v", err)
	}
	if s.ActivePlayerID != winner || s.DecisionPending {
		t.Fatalf("self decision keeps the turn and clears the flag")
	}
}

func TestRound3_DecisionGuards(t *testing.T) {
	s := playToRound3(t)
	winner := survivors(s)[0]

	_, _, err := Apply(s, Command{Type: CmdMakeDecision, SessionID: winner, Choice: ChoiceSelf})
	if !errors.Is(err, ErrNoDecision) {
		t.Fatalf("want ErrNoDecision, got %v", err)
	}

	s = deliverQuestion(t, s, "Paris")
	_, s, _ = Apply(s, Command{Type: CmdBuzzIn, SessionID: winner, Now: 2000})
	_, s, _ = Apply(s, Command{Type: CmdSubmitAnswer, SessionID: winner, Answer: "Paris"})

	_, _, err = Apply(s, Command{Type: CmdMakeDecision, SessionID: winner, Choice: "flee"})
	if !errors.Is(err, ErrBadChoice) {
		t.Fatalf("want ErrBadChoice, got %v", err)
	}
	other := survivors(s)[1]
	_, _, err = Apply(s, Command{Type: CmdMakeDecision, SessionID: other, Choice: ChoiceSelf})
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("want ErrNotYourTurn, got %v", err)
	}
}

func TestRound3_MissEliminatesAndReopensBuzzer(t *testing.T) {
	s := playToRound3(t)
	s = deliverQuestion(t, s, "Paris")
	alive := survivors(s)
	first := alive[0]

	_, s, _ = Apply(s, Command{Type: CmdBuzzIn, SessionID: first, Now: 2000})
	events, s, err := Apply(s, Command{Type: CmdSubmitAnswer, SessionID: first, Answer: "Rome"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !s.Contestants[first].Eliminated {
		t.Fatalf("round3 miss must eliminate")
	}

	if len(survivors(s)) > 1 {
		if s.ActivePlayerID != "" || s.Status != StatusRound3 {
			t.Fatalf("buzzer should reopen, got active=%q status=%v", s.ActivePlayerID, s.Status)
		}
		if !ContainsEvent(events, EvtQuestionNeeded) {
			t.Fatalf("reopened buzzer needs a fresh question")
		}
	} else {
		if s.Status != StatusFinished {
			t.Fatalf("lone survivor should finish the game")
		}
	}
}

func TestResetGame_RestoresLobby(t *testing.T) {
	s := playToRound3(t)
	s = deliverQuestion(t, s, "Paris")
	buzzer := survivors(s)[0]
	_, s, _ = Apply(s, Command{Type: CmdBuzzIn, SessionID: buzzer, Now: 2000})

	_, _, err := Apply(s, Command{Type: CmdResetGame, SessionID: buzzer})
	if !errors.Is(err, ErrNotPresenter) {
		t.Fatalf("want ErrNotPresenter, got %v", err)
	}

	_, s, err = Apply(s, Command{Type: CmdResetGame, SessionID: "host"})
	if err != nil {
		t.Fatalf("reset_game: %v", err)
	}
	if s.Status != StatusLobby || s.ActivePlayerID != "" || s.CurrentQuestion != nil ||
		s.TimerStart != 0 || s.DecisionPending {
		t.Fatalf("reset left transients behind: %+v", s)
	}
	if len(s.Contestants) != 5 {
		t.Fatalf("reset must preserve the roster")
	}
	for id, ct := range s.Contestants {
		if ct.Score != 0 || ct.Eliminated || ct.Ready || ct.Lives != StartingLives ||
			ct.Round1Misses != 0 || ct.Round1Questions != 0 {
			t.Fatalf("contestant %s not reset: %+v", id, ct)
		}
	}
}

func TestQuestionReady_RejectedWhenNotExpected(t *testing.T) {
	s := lobbyWithContestants(t, 2)
	_, _, err := Apply(s, Command{Type: CmdQuestionReady, Question: &Question{Text: "?"}})
	if !errors.Is(err, ErrStaleQuestion) {
		t.Fatalf("want ErrStaleQuestion in lobby, got %v", err)
	}

	s = startedRound1(t, 2)
	s = deliverQuestion(t, s, "Paris")
	_, _, err = Apply(s, Command{Type: CmdQuestionReady, Question: &Question{Text: "again?"}})
	if !errors.Is(err, ErrStaleQuestion) {
		t.Fatalf("want ErrStaleQuestion while a question is open, got %v", err)
	}
}

func TestSetOnline_TracksPresenterAndContestants(t *testing.T) {
	s := lobbyWithContestants(t, 1)

	_, s, err := Apply(s, Command{Type: CmdSetOnline, SessionID: "host", Online: false})
	if err != nil {
		t.Fatalf("set_online presenter: %v", err)
	}
	if s.PresenterOnline {
		t.Fatalf("presenter should be offline")
	}
	if s.PresenterID != "host" {
		t.Fatalf("binding must survive a disconnect")
	}

	_, s, err = Apply(s, Command{Type: CmdSetOnline, SessionID: "p1", Online: false})
	if err != nil {
		t.Fatalf("set_online contestant: %v", err)
	}
	if s.Contestants["p1"].Online {
		t.Fatalf("contestant should be offline")
	}

	_, _, err = Apply(s, Command{Type: CmdSetOnline, SessionID: "ghost", Online: true})
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("want ErrUnknownSession, got %v", err)
	}
}
