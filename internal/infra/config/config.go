package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Режимы доставки обращений.
const (
	NotifyAdmin = "admin"
	NotifyGroup = "group"
	NotifyBoth  = "both"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token         string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL    string `envconfig:"TG_WEBHOOK_URL"`
		WebhookSecret string `envconfig:"TG_WEBHOOK_SECRET"`
	} `envconfig:""`

	AdminID      int64   `envconfig:"ADMIN_ID"`
	ModeratorIDs []int64 `envconfig:"MODERATOR_IDS"`

	NotifyMode  string `envconfig:"NOTIFY_MODE" default:"admin"`
	GroupChatID int64  `envconfig:"GROUP_CHAT_ID"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Limits struct {
		RateLimit  time.Duration `envconfig:"RATE_LIMIT" default:"1h"`
		MaxLength  int           `envconfig:"MAX_MESSAGE_LENGTH" default:"2000"`
		MappingTTL time.Duration `envconfig:"MAPPING_TTL" default:"720h"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("некорректный конфиг: %v", err)
	}
	return cfg
}

// Validate проверяет согласованность режима доставки и идентификаторов чатов.
func (c AppConfig) Validate() error {
	switch c.NotifyMode {
	case NotifyAdmin, NotifyGroup, NotifyBoth:
	default:
		return errInvalidNotifyMode(c.NotifyMode)
	}
	if (c.NotifyMode == NotifyGroup || c.NotifyMode == NotifyBoth) && c.GroupChatID == 0 {
		return errGroupChatRequired
	}
	return nil
}
