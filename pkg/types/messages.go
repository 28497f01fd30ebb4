package types

// Client -> Server message types.
const (
	MsgIdentify       = "identify"
	MsgJoinPresenter  = "join_presenter"
	MsgJoinContestant = "join_contestant"
	MsgToggleReady    = "toggle_ready"
	MsgStartGame      = "start_game"
	MsgResetGame      = "reset_game"
	MsgPointToPlayer  = "point_to_player"
	MsgBuzzIn         = "buzz_in"
	MsgMakeDecision   = "make_decision"
	MsgSubmitAnswer   = "submit_answer"
	MsgGetState       = "get_state"
)

// Server -> Client message types.
const (
	MsgWelcome     = "welcome"
	MsgStateUpdate = "state_update"
	MsgError       = "error"
)

type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Age       string `json:"age,omitempty"`
	TargetID  string `json:"target_id,omitempty"`
	Choice    string `json:"choice,omitempty"`
	Answer    string `json:"answer,omitempty"`
}

// Welcome is sent once per identify. Role is "presenter", "contestant",
// or null when the session has no binding yet.
type Welcome struct {
	Type string  `json:"type"`
	Role *string `json:"role"`
}

type Contestant struct {
	ID              string `json:"id"`
	SessionID       string `json:"session_id"`
	Name            string `json:"name"`
	Age             string `json:"age"`
	Score           int    `json:"score"`
	Lives           int    `json:"lives"`
	Ready           bool   `json:"ready"`
	Online          bool   `json:"online"`
	Eliminated      bool   `json:"eliminated"`
	Round1Misses    int    `json:"round1_misses"`
	Round1Questions int    `json:"round1_questions"`
}

// Question as exposed to clients. The expected answer never leaves the
// server.
type Question struct {
	Text string `json:"text"`
}

// StateUpdate is the full authoritative snapshot pushed after every
// accepted mutation and returned for get_state polls. Clients overwrite
// their mirrored state with it wholesale, never merge.
type StateUpdate struct {
	Type            string       `json:"type"`
	Version         int          `json:"version"`
	HasPresenter    bool         `json:"has_presenter"`
	PresenterOnline bool         `json:"presenter_online"`
	Contestants     []Contestant `json:"contestants"`
	Status          string       `json:"status"`
	Round           string       `json:"round"`
	ActivePlayerID  *string      `json:"active_player_id"`
	CurrentQuestion *Question    `json:"current_question"`
	TimerStart      *int64       `json:"timer_start"`
	DecisionPending bool         `json:"decision_pending"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
