package tableclient

import (
	"errors"
	"strings"
	"unicode"

	"github.com/mcdev12/tablesync/go/internal/realtime/gate"
	"github.com/mcdev12/tablesync/go/internal/realtime/notice"
)

// Local refusals. None of these reach the server.
var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrActionUnavailable = errors.New("action not available")
	ErrNotSeated         = errors.New("not seated at a table")
	ErrRoundInProgress   = errors.New("round already in progress")
	ErrNoTable           = errors.New("no table selected")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrEmojiTooLong      = errors.New("emoji is too long")
	ErrInvalidModeration = errors.New("invalid moderation request")
)

// Describe turns an action error into the one-line status shown to the
// user. It returns "" for errors that should stay silent.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if rej, ok := gate.IsRejected(err); ok {
		if rej.Message == "" {
			return "The server declined the request"
		}
		return capitalize(rej.Message)
	}
	switch {
	case errors.Is(err, gate.ErrAlreadyPending):
		return ""
	case errors.Is(err, gate.ErrNotConnected):
		return "You are offline. Reconnect to continue"
	case errors.Is(err, gate.ErrTimeout):
		return "The server did not answer in time. The table will update when it does"
	case errors.Is(err, gate.ErrDisconnected):
		return "Connection lost before the server answered"
	case errors.Is(err, ErrNotYourTurn):
		return "It is not your turn"
	case errors.Is(err, ErrActionUnavailable):
		return "That action is not available right now"
	case errors.Is(err, ErrNotSeated):
		return "Join a table first"
	case errors.Is(err, ErrRoundInProgress):
		return "Wait for the current round to finish"
	case errors.Is(err, ErrNoTable):
		return "Select a table first"
	case errors.Is(err, ErrEmptyMessage):
		return "Message is empty"
	case errors.Is(err, ErrEmojiTooLong):
		return "Emoji is too long"
	}
	return capitalize(err.Error())
}

func levelOf(err error) notice.Level {
	switch {
	case errors.Is(err, gate.ErrNotConnected), errors.Is(err, gate.ErrDisconnected):
		return notice.LevelError
	default:
		return notice.LevelWarning
	}
}

// report publishes err on the notice bus.
func (s *Service) report(err error) {
	text := Describe(err)
	if text == "" {
		return
	}
	s.notices.Publish("action", levelOf(err), text)
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
