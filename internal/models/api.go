package models

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SessionEvent is pushed over the websocket hub when a turn completes or a
// session changes state.
type SessionEvent struct {
	SessionID        string   `json:"session_id"`
	Status           string   `json:"status"`
	QuestionsAsked   int      `json:"questions_asked"`
	RunningScore     *float64 `json:"running_score,omitempty"`
	LastOverallScore *float64 `json:"last_overall_score,omitempty"`
	Done             bool     `json:"done"`
}
