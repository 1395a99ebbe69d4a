package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/rickgao/agentlink/internal/api"
	"github.com/rickgao/agentlink/internal/bus"
	"github.com/rickgao/agentlink/internal/chat"
	"github.com/rickgao/agentlink/internal/envelope"
	"github.com/rickgao/agentlink/internal/widget"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	systemStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#AFAFAF"))
	logStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).PaddingLeft(2)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
)

// renderer writes transcript events as lines. Styling is skipped when the
// output is not a terminal.
type renderer struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
}

func newRenderer(w io.Writer) *renderer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &renderer{w: w, styled: styled}
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *renderer) line(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *renderer) roleLabel(role string) string {
	switch role {
	case "user":
		return r.style(userStyle, "you")
	case "assistant":
		return r.style(assistantStyle, "agent")
	default:
		return r.style(systemStyle, role)
	}
}

func (r *renderer) message(role, content string, logs []string) {
	r.line("%s: %s", r.roleLabel(role), content)
	for _, l := range logs {
		r.line("%s", r.style(logStyle, "· "+l))
	}
}

func (r *renderer) entry(e chat.Entry) {
	r.message(e.Role, e.Content, e.Logs)
}

func (r *renderer) notice(text string) {
	r.line("%s", r.style(noticeStyle, "! "+text))
}

// event renders one connection event.
func (r *renderer) event(ev bus.Event) {
	switch ev.Type {
	case bus.EventConnect:
		r.line("%s", r.style(okStyle, "connected"))
	case bus.EventReconnecting:
		r.notice(fmt.Sprintf("%s (attempt %d, retry in %s)", chat.NoticeReconnecting, ev.Attempt, ev.Delay))
	case bus.EventConnectionFailed:
		r.notice(chat.NoticeConnectionFailed)
	case bus.EventSendFailed:
		r.notice(chat.NoticeSendFailed)
	case bus.EventMessage:
		if ev.Envelope != nil && !ev.Echo {
			r.envelope(ev.Envelope)
		}
	}
}

func (r *renderer) envelope(env *envelope.Envelope) {
	switch env.Kind {
	case envelope.KindChatMessage:
		if msg, ok := env.Chat(); ok {
			r.message(msg.Role, msg.Content, msg.Logs)
		}
	case envelope.KindTyping:
		r.line("%s", r.style(systemStyle, "agent is typing…"))
	case envelope.KindLogUpdate:
		if p, ok := env.LogUpdate(); ok {
			r.line("%s", r.style(logStyle, "· "+p.Log))
		}
	case envelope.KindError:
		if p, ok := env.ServerError(); ok {
			r.line("%s", r.style(errorStyle, "server error: "+p.Message))
		}
	}
}

// payload renders a widget result, marking fallback content.
func (r *renderer) payload(component, action string, p widget.Payload) {
	r.line("%s", r.style(headerStyle, component+"/"+action))
	switch {
	case p.Fallback:
		r.notice(fmt.Sprintf("showing fallback content (%s)", p.Reason))
	case p.Reason != "":
		r.line("%s", r.style(errorStyle, fmt.Sprintf("%s: %s", p.Reason, p.Error)))
	default:
		r.line("%s", r.style(okStyle, fmt.Sprintf("ok in %s", p.Latency.Round(time.Millisecond))))
	}
	if len(p.Data) > 0 {
		r.line("%s", indentJSON(p.Data))
	}
}

func (r *renderer) conversations(convs []api.Conversation) {
	if len(convs) == 0 {
		r.line("%s", r.style(systemStyle, "no conversations"))
		return
	}
	for _, c := range convs {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		r.line("%s  %s  %s", r.style(headerStyle, c.ID), title, r.style(systemStyle, fmt.Sprintf("%d messages", c.MessageCount)))
	}
}

func indentJSON(data json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}
