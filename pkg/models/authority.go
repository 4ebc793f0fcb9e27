package models

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// Authority is an external regulatory recipient of submissions. A contact
// field left empty means that channel is not configured for the authority.
type Authority struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country,omitempty"`
	Email    string `json:"email,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
	SMS      string `json:"sms,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

// Contacts returns the configured (channel, recipient) pairs in a stable
// order. Channels without an address are skipped.
func (a Authority) Contacts() []Contact {
	var out []Contact
	if a.Email != "" {
		out = append(out, Contact{Channel: ChannelEmail, Recipient: a.Email})
	}
	if a.WhatsApp != "" {
		out = append(out, Contact{Channel: ChannelWhatsApp, Recipient: a.WhatsApp})
	}
	if a.SMS != "" {
		out = append(out, Contact{Channel: ChannelSMS, Recipient: a.SMS})
	}
	return out
}

// Contact is a single deliverable address on an authority.
type Contact struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
}
