package config

import (
	"github.com/spf13/viper"
	"sync"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("api_base_url", "API_BASE_URL")
		viper.BindEnv("ws_base_url", "WS_BASE_URL")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("price_source", "PRICE_SOURCE")
		viper.BindEnv("sync_interval", "SYNC_INTERVAL")
		viper.BindEnv("fetch_timeout", "FETCH_TIMEOUT")
		viper.BindEnv("strict_input", "STRICT_INPUT")
		viper.BindEnv("track_watchlist", "TRACK_WATCHLIST")
		viper.BindEnv("focus_symbol", "FOCUS_SYMBOL")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("telegram_chat_id", "TELEGRAM_CHAT_ID")
		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")

		viper.SetDefault("api_base_url", "http://localhost:8000/api/v1")
		viper.SetDefault("ws_base_url", "ws://127.0.0.1:8000/api/v1/ws")
		viper.SetDefault("db_path", "./insightai-sync.db")
		viper.SetDefault("price_source", "insight")
		viper.SetDefault("sync_interval", 60)
		viper.SetDefault("fetch_timeout", 30)
		viper.SetDefault("strict_input", false)
		viper.SetDefault("track_watchlist", false)
		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetInt64(key string) int64 {
	InitConfig()
	return viper.GetInt64(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}
