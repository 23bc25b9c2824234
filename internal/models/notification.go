package models

// Notification is a push message addressed to one or more users.
type Notification struct {
	UserIDs []string       `json:"lstUserIds,omitempty"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`
}
