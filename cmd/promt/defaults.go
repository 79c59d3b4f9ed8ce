package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)

	viper.SetDefault("llm.endpoint", "https://api.openai.com")
	viper.SetDefault("llm.model", "gpt-5-chat-latest")
	viper.SetDefault("llm.max_tokens.chat", 300)
	viper.SetDefault("llm.max_tokens.mention", 200)

	viper.SetDefault("hf.endpoint", "https://router.huggingface.co/hf-inference/models")

	viper.SetDefault("chat.history_max", 10)

	viper.SetDefault("server.bind", "0.0.0.0")
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("server.static_dir", "./static")

	viper.SetDefault("x.dev_username", "IURIIdev")
	viper.SetDefault("x.poll_interval", 8*time.Hour)
	viper.SetDefault("x.page_size", 10)
	viper.SetDefault("x.daily_pulse.enabled", false)
	viper.SetDefault("x.daily_pulse.interval", 24*time.Hour)
}
