package extract

// Fields names the keys the extractor looks at. The gateway firmware is not
// self-describing, so every name here can be overridden from the config file.
type Fields struct {
	Sender         []string `json:"sender"`
	From           []string `json:"from"`
	Recipients     string   `json:"recipients"`
	RecipientPhone string   `json:"recipient_phone"`
	Body           []string `json:"body"`
	NestedMessage  string   `json:"nested_message"`
	NestedBody     []string `json:"nested_body"`
	Parts          string   `json:"parts"`
	PartBody       []string `json:"part_body"`
	Payload        string   `json:"payload"`
	Timestamp      []string `json:"timestamp"`
	Read           []string `json:"read"`
	Status         string   `json:"status"`
	Type           string   `json:"type"`
	Direction      string   `json:"direction"`
	Inbound        string   `json:"inbound"`
	Folder         string   `json:"folder"`
	MessageID      string   `json:"message_id"`
	OuterID        string   `json:"outer_id"`
	Wrappers       []string `json:"wrappers"`
}

// DefaultFields returns the key names seen across gateway firmware versions.
func DefaultFields() Fields {
	return Fields{
		Sender:         []string{"sender"},
		From:           []string{"from", "address", "phoneNumber", "number", "participant"},
		Recipients:     "recipients",
		RecipientPhone: "phoneNumber",
		Body:           []string{"body", "message", "text", "content"},
		NestedMessage:  "message",
		NestedBody:     []string{"body", "text"},
		Parts:          "parts",
		PartBody:       []string{"body", "text", "message"},
		Payload:        "payload",
		Timestamp:      []string{"timestamp", "date", "dateTime", "dateTimeStamp", "receivedAt", "time"},
		Read:           []string{"read", "isRead", "seen"},
		Status:         "status",
		Type:           "type",
		Direction:      "direction",
		Inbound:        "inbound",
		Folder:         "folder",
		MessageID:      "messageId",
		OuterID:        "id",
		Wrappers:       []string{"messages", "items", "data"},
	}
}

// withDefaults fills every empty field from DefaultFields so a partial config
// block only overrides what it names.
func (f Fields) withDefaults() Fields {
	d := DefaultFields()
	if len(f.Sender) == 0 {
		f.Sender = d.Sender
	}
	if len(f.From) == 0 {
		f.From = d.From
	}
	if f.Recipients == "" {
		f.Recipients = d.Recipients
	}
	if f.RecipientPhone == "" {
		f.RecipientPhone = d.RecipientPhone
	}
	if len(f.Body) == 0 {
		f.Body = d.Body
	}
	if f.NestedMessage == "" {
		f.NestedMessage = d.NestedMessage
	}
	if len(f.NestedBody) == 0 {
		f.NestedBody = d.NestedBody
	}
	if f.Parts == "" {
		f.Parts = d.Parts
	}
	if len(f.PartBody) == 0 {
		f.PartBody = d.PartBody
	}
	if f.Payload == "" {
		f.Payload = d.Payload
	}
	if len(f.Timestamp) == 0 {
		f.Timestamp = d.Timestamp
	}
	if len(f.Read) == 0 {
		f.Read = d.Read
	}
	if f.Status == "" {
		f.Status = d.Status
	}
	if f.Type == "" {
		f.Type = d.Type
	}
	if f.Direction == "" {
		f.Direction = d.Direction
	}
	if f.Inbound == "" {
		f.Inbound = d.Inbound
	}
	if f.Folder == "" {
		f.Folder = d.Folder
	}
	if f.MessageID == "" {
		f.MessageID = d.MessageID
	}
	if f.OuterID == "" {
		f.OuterID = d.OuterID
	}
	if len(f.Wrappers) == 0 {
		f.Wrappers = d.Wrappers
	}
	return f
}
