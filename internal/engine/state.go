package engine

type Status string

const (
	StatusLobby    Status = "lobby"
	StatusRound1   Status = "round1"
	StatusRound2   Status = "round2"
	StatusRound3   Status = "round3"
	StatusFinished Status = "finished"
)

type Role string

const (
	RolePresenter  Role = "presenter"
	RoleContestant Role = "contestant"
)

const (
	// StartingLives gives round1 its two-strike rule: one life per miss,
	// elimination at zero. Round2/round3 misses zero lives outright.
	StartingLives = 2

	ScorePerCorrect = 100

	// Round1QuestionsPerPlayer is how many questions each surviving
	// contestant is asked before round2 opens.
	Round1QuestionsPerPlayer = 3

	// Round3Threshold is the survivor count at which round2 hands over
	// to the buzzer round.
	Round3Threshold = 3

	// TimeoutAnswer is the sentinel a client submits when its local
	// timer expires. Always judged incorrect, whatever the question.
	TimeoutAnswer = "!!!TIMEOUT!!!"
)

type Question struct {
	Text   string
	Answer string
}

type Contestant struct {
	ID              string // public id, distinct from the session token
	SessionID       string
	Name            string
	Age             string
	Score           int
	Lives           int
	Ready           bool
	Online          bool
	Eliminated      bool
	Round1Misses    int
	Round1Questions int
}

// State is the authoritative session state. Apply treats it as an
// immutable value: mutations happen on a deep copy, so a published
// snapshot never changes underneath a reader.
type State struct {
	Status          Status
	PresenterID     string // session id, "" while unbound
	PresenterOnline bool
	Order           []string // contestant session ids in join order
	Contestants     map[string]Contestant
	ActivePlayerID  string
	CurrentQuestion *Question
	TimerStart      int64 // epoch seconds, 0 while no countdown runs
	DecisionPending bool

	// AwaitingQuestion is set while the async question producer owes the
	// session a question. Not part of the wire snapshot; it exists so a
	// late delivery after a reset or phase change is rejected.
	AwaitingQuestion bool
}

func NewState() State {
	return State{
		Status:      StatusLobby,
		Contestants: map[string]Contestant{},
	}
}

func (s State) clone() State {
	c := s
	c.Order = append([]string(nil), s.Order...)
	c.Contestants = make(map[string]Contestant, len(s.Contestants))
	for id, ct := range s.Contestants {
		c.Contestants[id] = ct
	}
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		c.CurrentQuestion = &q
	}
	return c
}

// RoleOf reports the binding of a session id, if any.
func RoleOf(s State, sessionID string) (Role, bool) {
	if sessionID != "" && s.PresenterID == sessionID {
		return RolePresenter, true
	}
	if _, ok := s.Contestants[sessionID]; ok {
		return RoleContestant, true
	}
	return "", false
}

type CommandType string

const (
	CmdJoinPresenter  CommandType = "JoinPresenter"
	CmdJoinContestant CommandType = "JoinContestant"
	CmdToggleReady    CommandType = "ToggleReady"
	CmdStartGame      CommandType = "StartGame"
	CmdPointToPlayer  CommandType = "PointToPlayer"
	CmdBuzzIn         CommandType = "BuzzIn"
	CmdMakeDecision   CommandType = "MakeDecision"
	CmdSubmitAnswer   CommandType = "SubmitAnswer"
	CmdResetGame      CommandType = "ResetGame"

	// Internal commands, injected by the session owner rather than a
	// client: question delivery from the async producer and online
	// transitions from the connection layer.
	CmdQuestionReady CommandType = "QuestionReady"
	CmdSetOnline     CommandType = "SetOnline"
)

type Command struct {
	Type      CommandType
	SessionID string
	PublicID  string // assigned by the caller for JoinContestant
	Name      string
	Age       string
	TargetID  string
	Choice    string
	Answer    string
	Question  *Question
	Online    bool
	Now       int64 // epoch seconds, stamped by the session owner
}

const (
	ChoiceSelf  = "self"
	ChoicePoint = "point"
)

type EventType string

const (
	EvtGameStarted    EventType = "GameStarted"
	EvtGameReset      EventType = "GameReset"
	EvtGameFinished   EventType = "GameFinished"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtBuzzWon        EventType = "BuzzWon"
	EvtAnswerJudged   EventType = "AnswerJudged"
	EvtEliminated     EventType = "Eliminated"
	EvtQuestionNeeded EventType = "QuestionNeeded"
	EvtTimerStarted   EventType = "TimerStarted"
)

type Event struct {
	Type      EventType
	SessionID string
	Correct   bool
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
