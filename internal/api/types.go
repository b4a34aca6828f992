package api

// Request and response bodies of the player data API.

type CreatePlayerRequest struct {
	Username string `json:"username"`
}

type MatchResultRequest struct {
	Winner string `json:"winner"`
	Loser  string `json:"loser"`
}

type BotMatchResultRequest struct {
	Username string `json:"username"`
	BotWon   bool   `json:"botWon"`
}

type BonusRequest struct {
	Amount int `json:"amount"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
