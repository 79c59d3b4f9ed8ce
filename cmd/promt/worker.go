package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/logutil"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/reply"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/xapi"
	"github.com/wotyapustoy-lab/promt-protocol-chat/mentions"
	"github.com/wotyapustoy-lab/promt-protocol-chat/persona"
	"github.com/wotyapustoy-lab/promt-protocol-chat/providers/openai"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the X mention poller (and optional daily pulse)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			for _, key := range []string{
				"llm.api_key",
				"x.bearer_token",
				"x.api_key",
				"x.api_secret",
				"x.access_token",
				"x.access_secret",
				"x.bot_username",
			} {
				if strings.TrimSpace(viper.GetString(key)) == "" {
					return fmt.Errorf("missing %s (set via %s_%s)", key, envPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
				}
			}

			client, err := openai.New(
				viper.GetString("llm.endpoint"),
				viper.GetString("llm.api_key"),
				viper.GetString("proxy.url"),
			)
			if err != nil {
				return err
			}
			xc := xapi.New(viper.GetString("x.bearer_token"), xapi.Credentials{
				ConsumerKey:    viper.GetString("x.api_key"),
				ConsumerSecret: viper.GetString("x.api_secret"),
				AccessToken:    viper.GetString("x.access_token"),
				AccessSecret:   viper.GetString("x.access_secret"),
			})

			poller := &mentions.Poller{
				API: xc,
				Replies: &reply.Generator{
					Client:    client,
					Model:     viper.GetString("llm.model"),
					MaxTokens: viper.GetInt("llm.max_tokens.mention"),
					Fallback:  ">_ signal interference.",
					Logger:    logger,
				},
				Persona:   persona.Default(viper.GetString("x.dev_username")),
				BotHandle: viper.GetString("x.bot_username"),
				Interval:  flagOrViperDuration(cmd, "poll-interval", "x.poll_interval"),
				PageSize:  flagOrViperInt(cmd, "page-size", "x.page_size"),
				Logger:    logger,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if viper.GetBool("x.daily_pulse.enabled") {
				pulse := &mentions.Pulse{
					Post:     xc.Tweet,
					Interval: viper.GetDuration("x.daily_pulse.interval"),
					Logger:   logger,
				}
				go pulse.Run(ctx)
			}

			poller.Run(ctx)
			return nil
		},
	}

	cmd.Flags().Duration("poll-interval", mentions.DefaultInterval, "Interval between mention polls.")
	cmd.Flags().Int("page-size", mentions.DefaultPageSize, "Max mentions fetched per poll.")

	return cmd
}
