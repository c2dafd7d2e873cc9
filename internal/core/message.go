package core

import "time"

// Message is the domain model for a chat message. A message belongs to
// exactly one room's history and has no identity outside it; once appended
// it is never edited, removed or reordered.
type Message struct {
	Sender    string
	Content   string
	Timestamp time.Time
}

// SendRequest carries the client-supplied fields of an incoming message.
// Timestamp is what the sender claims, not verified; a zero value is
// replaced with the server receive time.
type SendRequest struct {
	Sender    string
	Content   string
	Timestamp time.Time
}
