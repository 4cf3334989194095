package chessdto

// Lobby HTTP API bodies.

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=32,alphanumunicode"`
	Password string `json:"password" validate:"required,min=4,max=128"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Username  string `json:"username"`
	AuthToken string `json:"authToken"`
}

type CreateGameRequest struct {
	GameName string `json:"gameName" validate:"required,max=64"`
}

type CreateGameResponse struct {
	GameID string `json:"gameID"`
}

type JoinGameRequest struct {
	PlayerColor string `json:"playerColor" validate:"required,oneof=WHITE BLACK white black"`
	GameID      string `json:"gameID" validate:"required"`
}

// GameSummary is one entry of the game list.
type GameSummary struct {
	GameID        string `json:"gameID"`
	GameName      string `json:"gameName"`
	WhiteUsername string `json:"whiteUsername,omitempty"`
	BlackUsername string `json:"blackUsername,omitempty"`
	GameOver      bool   `json:"gameOver"`
}

type ListGamesResponse struct {
	Games []GameSummary `json:"games"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
