package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
)

var (
	dim    = color.New(color.Faint)
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
)

const previewWidth = 48

func formatTime(ms int64) string {
	if ms <= 0 {
		return "--:--"
	}
	return time.UnixMilli(ms).Format("Jan 02 15:04")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func displayName(p sdk.Participant) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Id
}

// formatConversation renders one list row from the point of view of self
func formatConversation(c *sdk.Conversation, self string) string {
	peer := c.Tutor
	if c.RoleOf(self) == constant.RoleTutor {
		peer = c.Student
	}

	status := green.Sprint("active")
	if c.IsClosed() {
		status = red.Sprint("closed")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s", bold.Sprint(c.Id), displayName(peer), status)
	if c.Subject != "" {
		fmt.Fprintf(&b, "  %s", dim.Sprint(c.Subject))
	}
	if n := c.UnreadCount.Get(c.RoleOf(self)); n > 0 {
		fmt.Fprintf(&b, "  %s", yellow.Sprintf("(%d unread)", n))
	}
	if lm := c.LastMessage; lm != nil {
		who := "them"
		if lm.SenderId == self {
			who = "you"
		}
		fmt.Fprintf(&b, "\n    %s %s: %s", dim.Sprint(formatTime(lm.Timestamp)), who, truncate(lm.Content, previewWidth))
	}
	return b.String()
}

// formatMessage renders one history line
func formatMessage(m *sdk.Message, self string) string {
	sender := cyan.Sprint(m.SenderId)
	if m.SenderId == self {
		sender = green.Sprint("you")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", dim.Sprint(formatTime(m.CreatedAt)), sender)
	if m.ReplyTo != nil {
		fmt.Fprintf(&b, " %s", dim.Sprintf("(re: %s)", truncate(m.ReplyTo.Content, 24)))
	}
	b.WriteString(": ")
	if m.File != nil {
		fmt.Fprintf(&b, "[%s] %s %s", m.MsgType, m.File.Name, dim.Sprint(m.File.Url))
	} else {
		b.WriteString(m.Content)
	}
	if m.SenderId == self && m.Status != "" {
		fmt.Fprintf(&b, " %s", dim.Sprintf("[%s]", m.Status))
	}
	return b.String()
}
