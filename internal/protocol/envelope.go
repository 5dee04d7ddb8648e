package protocol

import (
	"io"
)

// Control tokens. A chat frame whose content equals one of these exactly is
// treated as the command; there is no escape.
const (
	TokenExit    = "#exit"
	TokenList    = "#gc"
	TokenPrivate = "#cli"
	TokenReplay  = "#getmsg"
)

// Sentinels sent in place of the sender name for out-of-band trios.
const (
	SentinelNotice = "NEW_CON"
	SentinelReply  = "NEW_CONN"
)

// Command is the classification of one inbound frame.
type Command int

const (
	CommandChat Command = iota
	CommandExit
	CommandList
	CommandPrivate
	CommandReplay
)

func (c Command) String() string {
	switch c {
	case CommandExit:
		return "exit"
	case CommandList:
		return "list"
	case CommandPrivate:
		return "private"
	case CommandReplay:
		return "replay"
	default:
		return "chat"
	}
}

// Classify maps a frame to its command. Anything that is not an exact control
// token is chat.
func Classify(frame string) Command {
	switch frame {
	case TokenExit:
		return CommandExit
	case TokenList:
		return CommandList
	case TokenPrivate:
		return CommandPrivate
	case TokenReplay:
		return CommandReplay
	default:
		return CommandChat
	}
}

// Kind identifies what a server-to-client trio carries.
type Kind int

const (
	// KindChat trios carry the sender's display name in the first frame.
	KindChat Kind = iota
	// KindNotice trios announce joins, departures and private chat requests.
	KindNotice
	// KindReply trios answer a listing, replay or private chat request.
	KindReply
)

func (k Kind) String() string {
	switch k {
	case KindNotice:
		return "notice"
	case KindReply:
		return "reply"
	default:
		return "chat"
	}
}

// KindOf classifies the first frame of a trio.
func KindOf(first string) Kind {
	switch first {
	case SentinelNotice:
		return KindNotice
	case SentinelReply:
		return KindReply
	default:
		return KindChat
	}
}

// Envelope is one server-to-client trio: a name or sentinel frame, an id
// frame and a body frame.
type Envelope struct {
	Kind   Kind
	Sender string
	ID     int
	Body   string
}

// Chat builds a chat trio from sender.
func Chat(sender string, id int, body string) Envelope {
	return Envelope{Kind: KindChat, Sender: sender, ID: id, Body: body}
}

// Notice builds a notice trio tagged with id.
func Notice(id int, body string) Envelope {
	return Envelope{Kind: KindNotice, ID: id, Body: body}
}

// Reply builds a reply trio tagged with id.
func Reply(id int, body string) Envelope {
	return Envelope{Kind: KindReply, ID: id, Body: body}
}

func (e Envelope) head() string {
	switch e.Kind {
	case KindNotice:
		return SentinelNotice
	case KindReply:
		return SentinelReply
	default:
		return e.Sender
	}
}

// Bytes returns the wire encoding of the trio.
func (e Envelope) Bytes() []byte {
	buf := make([]byte, 0, 2*MaxLen+IDLen)
	buf = append(buf, EncodeFrame(e.head())...)
	buf = append(buf, EncodeID(e.ID)...)
	buf = append(buf, EncodeFrame(e.Body)...)
	return buf
}

// WriteEnvelope writes the whole trio with a single Write call.
func WriteEnvelope(w io.Writer, e Envelope) error {
	_, err := w.Write(e.Bytes())
	return err
}

// ReadEnvelope reads one trio from r.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	head, err := ReadFrame(r)
	if err != nil {
		return Envelope{}, err
	}
	id, err := ReadID(r)
	if err != nil {
		return Envelope{}, err
	}
	body, err := ReadFrame(r)
	if err != nil {
		return Envelope{}, err
	}

	e := Envelope{Kind: KindOf(head), ID: id, Body: body}
	if e.Kind == KindChat {
		e.Sender = head
	}
	return e, nil
}
