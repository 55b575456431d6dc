package models

// Notification is a new-release event raised by the subscription watcher.
// Exactly one is emitted per distinct marker transition of a subscription.
type Notification struct {
	ID      string `json:"id"`
	ChatID  int64  `json:"chat_id"`
	TitleID int64  `json:"title_id"`
	Title   string `json:"title"`
	Marker  string `json:"marker"`
}
