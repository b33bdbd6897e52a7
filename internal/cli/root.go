// Package cli implements the tutorchat command line client.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mbeoliero/tutorchat/internal/config"
	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/pkg/jwt"
	"github.com/mbeoliero/tutorchat/sdk"
	"github.com/mbeoliero/tutorchat/transport"
)

// env carries what every command needs once flags are parsed
type env struct {
	configPath string
	token      string

	cfg    *config.Config
	rdb    *redis.Client
	tokens jwt.TokenStore
}

// NewRootCmd builds the tutorchat command tree
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "tutorchat",
		Short: "Chat with your students and tutors from the terminal",
		Long: `tutorchat talks to the tutoring marketplace chat API.
Sign in once with "tutorchat login"; later commands reuse the stored token.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}

	root.PersistentFlags().StringVar(&e.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&e.token, "token", "", "bearer token (overrides the stored one)")

	root.AddCommand(loginCmd(e))
	root.AddCommand(logoutCmd(e))
	root.AddCommand(conversationsCmd(e))
	root.AddCommand(openCmd(e))
	root.AddCommand(historyCmd(e))
	root.AddCommand(sendCmd(e))
	root.AddCommand(readCmd(e))
	root.AddCommand(closeCmd(e))
	root.AddCommand(watchCmd(e))
	return root
}

func (e *env) init() error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)

	if cfg.Redis.Enabled() {
		e.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		e.tokens = jwt.NewRedisTokenStore(e.rdb, cfg.Auth.Profile, cfg.JWT.ExpireHours)
	} else {
		e.tokens = jwt.NewMemoryTokenStore()
	}
	return nil
}

func (e *env) close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
}

// resolveToken picks the --token flag, then the configured token, then the token store
func (e *env) resolveToken(ctx context.Context) (string, error) {
	if e.token != "" {
		return e.token, nil
	}
	if e.cfg.Auth.Token != "" {
		return e.cfg.Auth.Token, nil
	}
	token, err := e.tokens.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load stored token: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("not signed in: run \"tutorchat login\" or pass --token")
	}
	return token, nil
}

func (e *env) newAPI() (*sdk.Client, error) {
	httpClient, err := client.NewClient(
		client.WithDialTimeout(e.cfg.API.DialTimeout),
		client.WithClientReadTimeout(e.cfg.API.ReadTimeout),
		client.WithWriteTimeout(e.cfg.API.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	return sdk.NewClient(e.cfg.API.BaseURL, sdk.WithHertzClient(httpClient))
}

// authedAPI returns an API client carrying the resolved token
func (e *env) authedAPI(ctx context.Context) (*sdk.Client, string, error) {
	token, err := e.resolveToken(ctx)
	if err != nil {
		return nil, "", err
	}
	api, err := e.newAPI()
	if err != nil {
		return nil, "", err
	}
	api.SetToken(token)
	return api, token, nil
}

func (e *env) newTransport() *transport.Transport {
	sc := e.cfg.Socket
	return transport.New(sc.URL,
		transport.WithTokenStore(e.tokens),
		transport.WithConnectTimeout(sc.ConnectTimeout),
		transport.WithReconnectDelay(sc.ReconnectDelay, sc.ReconnectDelayMax),
		transport.WithConnOptions(transport.ConnOptions{
			MaxMessageSize: sc.MaxMessageSize,
			PongWait:       sc.PongWait,
			PingPeriod:     sc.PingPeriod,
			WriteWait:      sc.WriteWait,
			WriteQueueSize: sc.WriteQueueSize,
		}),
	)
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
