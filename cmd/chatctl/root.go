package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	v1 "github.com/PaulBabatuyi/socialchat/api/chat/v1"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// dialFunc connects to addr and returns a client plus a close func.
type dialFunc func(addr string, useTLS bool) (v1.ChatServiceClient, func() error, error)

func dialChat(addr string, useTLS bool) (v1.ChatServiceClient, func() error, error) {
	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, nil, err
	}
	return v1.NewChatServiceClient(conn), conn.Close, nil
}

type cli struct {
	out     io.Writer
	dial    dialFunc
	addr    string
	token   string
	useTLS  bool
	timeout time.Duration
}

func newRootCmd(out io.Writer, dial dialFunc) *cobra.Command {
	c := &cli{out: out, dial: dial}

	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "chatctl - send and read direct messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.addr, "addr", "localhost:50051", "gRPC server address")
	root.PersistentFlags().StringVar(&c.token, "token", "", "Authentication token (defaults to CHAT_TOKEN env var)")
	root.PersistentFlags().BoolVar(&c.useTLS, "tls", false, "Connect with TLS")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "Per-call timeout")

	root.AddCommand(c.registerCmd(), c.loginCmd(), c.sendCmd(), c.historyCmd(), c.inboxCmd())
	return root
}

// call dials, runs fn with a timeout context, and closes the connection.
// When authenticated is set the token is attached as bearer metadata.
func (c *cli) call(authenticated bool, fn func(ctx context.Context, client v1.ChatServiceClient) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if authenticated {
		token := c.token
		if token == "" {
			token = os.Getenv("CHAT_TOKEN")
		}
		if token == "" {
			return errors.New("not logged in: pass --token or set CHAT_TOKEN")
		}
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}

	client, closeFn, err := c.dial(c.addr, c.useTLS)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer func() { _ = closeFn() }()

	return fn(ctx, client)
}

func (c *cli) registerCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and print its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(false, func(ctx context.Context, client v1.ChatServiceClient) error {
				resp, err := client.Register(ctx, &v1.RegisterRequest{Username: username, Email: email, Password: password})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "user: %s\nexport CHAT_TOKEN=%s\n", resp.UserID, resp.Token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username (defaults to email)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(false, func(ctx context.Context, client v1.ChatServiceClient) error {
				resp, err := client.Login(ctx, &v1.LoginRequest{Email: email, Password: password})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "user: %s\nexport CHAT_TOKEN=%s\n", resp.UserID, resp.Token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <user-id> <message...>",
		Short: "Send a direct message",
		Long: `Send a direct message to another user. Remaining arguments are joined with spaces.

Examples:
  chatctl send 65a1f0c2e4b0a1b2c3d4e5f6 hello there`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(true, func(ctx context.Context, client v1.ChatServiceClient) error {
				resp, err := client.SendMessage(ctx, &v1.SendMessageRequest{
					ReceiverID: args[0],
					Message:    strings.Join(args[1:], " "),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "sent %s at %s\n", resp.Message.ID, resp.Message.CreatedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show the conversation with a user, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(true, func(ctx context.Context, client v1.ChatServiceClient) error {
				resp, err := client.GetHistory(ctx, &v1.GetHistoryRequest{WithUserID: args[0]})
				if err != nil {
					return err
				}
				if len(resp.Messages) == 0 {
					fmt.Fprintln(c.out, "no messages")
					return nil
				}
				for _, m := range resp.Messages {
					fmt.Fprintf(c.out, "[%s] %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.SenderID, m.Message)
				}
				return nil
			})
		},
	}
}

func (c *cli) inboxCmd() *cobra.Command {
	var limit int32
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(true, func(ctx context.Context, client v1.ChatServiceClient) error {
				resp, err := client.ListConversations(ctx, &v1.ListConversationsRequest{Limit: limit})
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PARTNER\tMESSAGES\tLAST ACTIVITY")
				for _, cs := range resp.Conversations {
					fmt.Fprintf(w, "%s\t%d\t%s\n", cs.PartnerID, cs.MessageCount, cs.LastMessageAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", 0, "Maximum conversations to list (server default when 0)")
	return cmd
}
