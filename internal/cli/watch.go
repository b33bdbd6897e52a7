package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mbeoliero/kit/log"
	"github.com/spf13/cobra"

	"github.com/mbeoliero/tutorchat/chat"
	"github.com/mbeoliero/tutorchat/sdk"
	"github.com/mbeoliero/tutorchat/store"
	"github.com/mbeoliero/tutorchat/transport"
)

// printer writes live events once per message id; the server may deliver a message on
// both the conversation and the user room
type printer struct {
	out  io.Writer
	self string

	mu     sync.Mutex
	seen   map[string]struct{}
	typing map[string]bool
}

func newPrinter(out io.Writer, self string) *printer {
	return &printer{
		out:    out,
		self:   self,
		seen:   make(map[string]struct{}),
		typing: make(map[string]bool),
	}
}

func (p *printer) message(m *sdk.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[m.Id]; ok {
		return
	}
	p.seen[m.Id] = struct{}{}
	fmt.Fprintf(p.out, "%s %s\n", dim.Sprintf("[%s]", m.ConversationId), formatMessage(m, p.self))
}

func (p *printer) typingEvent(evt *sdk.TypingEvent) {
	if evt.UserId == p.self {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.typing[evt.UserId] == evt.IsTyping {
		return
	}
	p.typing[evt.UserId] = evt.IsTyping
	if evt.IsTyping {
		fmt.Fprintln(p.out, dim.Sprintf("%s is typing...", evt.UserId))
	}
}

func (p *printer) closed(evt *sdk.ConversationClosed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s\n", red.Sprintf("conversation %s was closed by %s", evt.ConversationId, evt.ClosedBy))
}

func (p *printer) status(upd *sdk.StatusUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, dim.Sprintf("%d message(s) %s", len(upd.MessageIds), upd.Status))
}

func watchCmd(e *env) *cobra.Command {
	var conversationId string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live events until interrupted",
		Long: `Connect to the realtime endpoint and print incoming messages for every conversation.
With --conversation the conversation is opened: its history is printed, typing is shown
and every line typed on stdin is sent to it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api, token, err := e.authedAPI(ctx)
			if err != nil {
				return err
			}
			claims, err := whoami(token)
			if err != nil {
				return err
			}

			rt := e.newTransport()
			client := chat.NewClient(rt, store.New(api, e.storeOptions()), chat.Options{
				TypingIdleTimeout: e.cfg.Chat.TypingIdleTimeout,
				Tokens:            e.tokens,
			})
			if err := client.Start(ctx, token); err != nil {
				return err
			}
			defer client.Stop()

			p := newPrinter(cmd.OutOrStdout(), claims.UserId)
			defer unsubscribe(
				rt.OnMessageReceived(p.message),
				rt.OnNewMessage(p.message),
				rt.OnConversationClosed(p.closed),
			)

			fmt.Fprintf(cmd.OutOrStdout(), "Watching as %s, %d unread. Ctrl-C to quit.\n", bold.Sprint(claims.UserId), client.UnreadTotal())

			if conversationId == "" {
				<-ctx.Done()
				return nil
			}
			return converse(ctx, client, rt, p, conversationId, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&conversationId, "conversation", "c", "", "conversation to open and type into")
	return cmd
}

func unsubscribe(subs ...*transport.Subscription) {
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// converse opens one conversation and sends each stdin line until EOF or ctx ends
func converse(ctx context.Context, client *chat.Client, rt *transport.Transport, p *printer, conversationId string, in io.Reader) error {
	session, err := client.Open(ctx, conversationId)
	if err != nil {
		return err
	}
	defer session.Close()

	for _, m := range session.Messages() {
		p.message(m)
	}
	defer unsubscribe(
		rt.OnUserTyping(p.typingEvent),
		rt.OnMessageStatusUpdate(p.status),
	)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			session.SetDraft(line)
			if _, err := session.Send(ctx); err != nil {
				log.CtxWarn(ctx, "send failed: %v", err)
				fmt.Fprintln(os.Stderr, red.Sprintf("not sent: %v", err))
				session.SetDraft("")
			}
		}
	}
}
