package types

// Message is a message as received, with its envelope.
type Message struct {
	sender     string
	recipients []string
	data       []byte
}

func NewMessage(sender string, recipients []string, data []byte) Message {
	return Message{
		sender:     sender,
		recipients: recipients,
		data:       data,
	}
}

func (m Message) Sender() string {
	return m.sender
}

func (m Message) Recipients() []string {
	return m.recipients
}

func (m Message) Data() []byte {
	return m.data
}
