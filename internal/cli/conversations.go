package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
	"github.com/mbeoliero/tutorchat/store"
)

const requestTimeout = 30 * time.Second

func (e *env) storeOptions() store.Options {
	return store.Options{
		FetchDebounce: e.cfg.Store.FetchDebounce,
		PageSize:      e.cfg.Store.PageSize,
		SeenCapacity:  e.cfg.Store.SeenCapacity,
	}
}

func conversationsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List your conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, requestTimeout)
			defer cancel()

			api, token, err := e.authedAPI(ctx)
			if err != nil {
				return err
			}
			claims, err := whoami(token)
			if err != nil {
				return err
			}

			st := store.New(api, e.storeOptions())
			if err := st.FetchConversations(ctx); err != nil {
				return err
			}
			convs := st.Conversations()
			if len(convs) == 0 {
				fmt.Println("No conversations yet. Start one with \"tutorchat open <request-id>\".")
				return nil
			}
			for _, c := range convs {
				fmt.Println(formatConversation(c, claims.UserId))
			}
			if n := st.UnreadFor(claims.UserId); n > 0 {
				fmt.Printf("\n%s\n", yellow.Sprintf("%d unread", n))
			}
			return nil
		},
	}
}

func openCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "open <request-id>",
		Short: "Open (or reuse) the conversation of a contact request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, requestTimeout)
			defer cancel()

			api, token, err := e.authedAPI(ctx)
			if err != nil {
				return err
			}
			claims, err := whoami(token)
			if err != nil {
				return err
			}

			st := store.New(api, e.storeOptions())
			conv, err := st.CreateConversation(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(formatConversation(conv, claims.UserId))
			return nil
		},
	}
}

func historyCmd(e *env) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Print one page of messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, requestTimeout)
			defer cancel()

			api, token, err := e.authedAPI(ctx)
			if err != nil {
				return err
			}
			claims, err := whoami(token)
			if err != nil {
				return err
			}

			st := store.New(api, e.storeOptions())
			if err := st.FetchMessages(ctx, args[0], 1); err != nil {
				return err
			}
			for p := 2; p <= page; p++ {
				if err := st.LoadOlderMessages(ctx); err != nil {
					return err
				}
			}

			for _, m := range st.Messages() {
				fmt.Println(formatMessage(m, claims.UserId))
			}
			if st.Pagination().HasMore {
				fmt.Println(dim.Sprintf("(older messages: --pages %d)", page+1))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "pages", 1, "number of pages to load")
	return cmd
}

func sendCmd(e *env) *cobra.Command {
	var replyTo string

	cmd := &cobra.Command{
		Use:   "send <conversation-id> <text...>",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, requestTimeout)
			defer cancel()

			api, token, err := e.authedAPI(ctx)
			if err != nil {
				return err
			}
			claims, err := whoami(token)
			if err != nil {
				return err
			}

			st := store.New(api, e.storeOptions())
			// the cached list lets the store refuse closed conversations before the API call
			if err := st.FetchConversations(ctx); err != nil {
				return err
			}

			req := &sdk.SendMessageRequest{
				MsgType: constant.MsgTypeText,
				Content: strings.Join(args[1:], " "),
			}
			if replyTo != "" {
				req.ReplyTo = &sdk.ReplyTo{MessageId: replyTo}
			}
			msg, err := st.SendMessage(ctx, args[0], req)
			if err != nil {
				return err
			}
			fmt.Println(formatMessage(msg, claims.UserId))
			return nil
		},
	}

	cmd.Flags().StringVar(&replyTo, "reply-to", "", "id of the message being answered")
	return cmd
}

func readCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "read <conversation-id>",
		Short: "Mark a conversation read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, requestTimeout)
			defer cancel()

			api, _, err := e.authedAPI(ctx)
			if err != nil {
				return err
			}
			if err := api.MarkRead(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println(green.Sprint("Marked read"))
			return nil
		},
	}
}

func closeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "close <conversation-id>",
		Short: "Close a conversation; no further messages can be sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, requestTimeout)
			defer cancel()

			api, token, err := e.authedAPI(ctx)
			if err != nil {
				return err
			}
			claims, err := whoami(token)
			if err != nil {
				return err
			}

			conv, err := api.CloseConversation(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(formatConversation(conv, claims.UserId))
			return nil
		},
	}
}
