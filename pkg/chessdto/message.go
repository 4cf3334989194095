package chessdto

type CommandType string

const (
	CommandConnect  CommandType = "CONNECT"
	CommandMakeMove CommandType = "MAKE_MOVE"
	CommandLeave    CommandType = "LEAVE"
	CommandResign   CommandType = "RESIGN"
)

// Command is what clients send over the game websocket.
type Command struct {
	CommandType CommandType `json:"commandType"`
	AuthToken   string      `json:"authToken"`
	GameID      string      `json:"gameID"`
	Move        *Move       `json:"move,omitempty"`
}

type ServerMessageType string

const (
	MessageLoadGame     ServerMessageType = "LOAD_GAME"
	MessageError        ServerMessageType = "ERROR"
	MessageNotification ServerMessageType = "NOTIFICATION"
)

// ServerMessage is what the server pushes to clients. Exactly one of Game,
// ErrorMessage or Message is set, according to ServerMessageType.
type ServerMessage struct {
	ServerMessageType ServerMessageType `json:"serverMessageType"`
	Game              *GameState        `json:"game,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	ErrorCode         string            `json:"errorCode,omitempty"`
	Message           string            `json:"message,omitempty"`
}

func LoadGame(g *GameState) *ServerMessage {
	return &ServerMessage{ServerMessageType: MessageLoadGame, Game: g}
}

func Notification(text string) *ServerMessage {
	return &ServerMessage{ServerMessageType: MessageNotification, Message: text}
}

func ErrorMessage(e DomainError) *ServerMessage {
	return &ServerMessage{ServerMessageType: MessageError, ErrorMessage: e.Error(), ErrorCode: e.Code}
}

// GameState is the snapshot sent in LOAD_GAME. Board holds 8 ranks, rank 8
// first, one FEN letter per square and '.' for empty squares.
type GameState struct {
	GameID        string    `json:"gameID"`
	GameName      string    `json:"gameName"`
	WhiteUsername string    `json:"whiteUsername,omitempty"`
	BlackUsername string    `json:"blackUsername,omitempty"`
	Board         [8]string `json:"board"`
	TeamTurn      string    `json:"teamTurn"`
	GameOver      bool      `json:"gameOver"`
	Check         bool      `json:"check,omitempty"`
	Result        string    `json:"result,omitempty"`
	LastMove      string    `json:"lastMove,omitempty"`
}
