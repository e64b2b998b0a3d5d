package domain

import "time"

// Message is one direct message between the session owner and a partner.
// Messages without an ID are discarded before they ever reach a collection.
type Message struct {
	ID              string    `json:"id"`
	SenderID        string    `json:"sender_id"`
	OtherPersonID   string    `json:"other_person_id"`
	OtherPersonName string    `json:"other_person_name"`
	OtherPersonRole Role      `json:"other_person_role"`
	Body            string    `json:"body"`
	Time            time.Time `json:"time"`
	Unread          bool      `json:"unread"`
}

// Conversation groups messages with a single partner, keyed by the partner's
// user ID. ChatHistory holds the ordered exchange with that partner.
type Conversation struct {
	PartnerID   string  `json:"partner_id"`
	PartnerName string  `json:"partner_name"`
	PartnerRole Role    `json:"partner_role"`
	LastMessage Message `json:"last_message"`
	UnreadCount int     `json:"unread_count"`
}

// DirectoryUser is a chat partner candidate returned by user search.
type DirectoryUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}
