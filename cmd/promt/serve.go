package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/chathistory"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/logutil"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/reply"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/server"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/xapi"
	"github.com/wotyapustoy-lab/promt-protocol-chat/persona"
	"github.com/wotyapustoy-lab/promt-protocol-chat/providers/hf"
	"github.com/wotyapustoy-lab/promt-protocol-chat/providers/openai"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front door (chat, image, reset, webhook, static UI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			apiKey := strings.TrimSpace(viper.GetString("llm.api_key"))
			if apiKey == "" {
				return fmt.Errorf("missing llm.api_key (set via PROMT_LLM_API_KEY)")
			}
			proxyURL := strings.TrimSpace(viper.GetString("proxy.url"))

			client, err := openai.New(viper.GetString("llm.endpoint"), apiKey, proxyURL)
			if err != nil {
				return err
			}
			// hf.token may legitimately be absent: the image endpoint then
			// answers 400 instead of blocking startup.
			images, err := hf.New(viper.GetString("hf.endpoint"), viper.GetString("hf.token"), proxyURL)
			if err != nil {
				return err
			}
			poster := xapi.New(viper.GetString("x.bearer_token"), xapi.Credentials{
				ConsumerKey:    viper.GetString("x.api_key"),
				ConsumerSecret: viper.GetString("x.api_secret"),
				AccessToken:    viper.GetString("x.access_token"),
				AccessSecret:   viper.GetString("x.access_secret"),
			})

			model := viper.GetString("llm.model")
			personaCfg := persona.Default(viper.GetString("x.dev_username"))
			history := chathistory.New(viper.GetInt("chat.history_max"))

			srv := server.New(
				server.Config{
					Persona:   personaCfg,
					BotHandle: viper.GetString("x.bot_username"),
					StaticDir: flagOrViperString(cmd, "static-dir", "server.static_dir"),
				},
				server.Deps{
					History: history,
					Chat: &reply.Generator{
						Client:    client,
						Model:     model,
						MaxTokens: viper.GetInt("llm.max_tokens.chat"),
						Logger:    logger,
					},
					Mention: &reply.Generator{
						Client:    client,
						Model:     model,
						MaxTokens: viper.GetInt("llm.max_tokens.mention"),
						Fallback:  ">_ signal interference.",
						Logger:    logger,
					},
					Images: images,
					Poster: poster,
					Logger: logger,
				},
			)

			bind := flagOrViperString(cmd, "server-bind", "server.bind")
			port := flagOrViperInt(cmd, "server-port", "server.port")
			addr := bind + ":" + strconv.Itoa(port)

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			logger.Info("server_start", "addr", addr, "model", model, "history_max", viper.GetInt("chat.history_max"))
			return httpSrv.ListenAndServe()
		},
	}

	cmd.Flags().String("server-bind", "0.0.0.0", "Bind address.")
	cmd.Flags().Int("server-port", 3001, "HTTP port to listen on.")
	cmd.Flags().String("static-dir", "./static", "Directory with the static front end.")

	return cmd
}
