package bus

// InboundMessage is a user message received by a channel adapter.
type InboundMessage struct {
	Channel    string
	SenderID   string
	SenderName string
	ChatID     string
	Content    string
	SessionKey string
	Metadata   map[string]string
}

// OutboundKind separates the companion reply from follow-up material such
// as crisis resources, which channels may render differently.
type OutboundKind int

const (
	KindReply OutboundKind = iota
	KindResources
	KindNotice
)

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Kind    OutboundKind
}
