package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"tg-feedback-bot/internal/adapters/bot"
	"tg-feedback-bot/internal/adapters/mapping"
	"tg-feedback-bot/internal/adapters/ratelimit"
	"tg-feedback-bot/internal/adapters/repo"
	"tg-feedback-bot/internal/adapters/state"
	"tg-feedback-bot/internal/adapters/telegram"
	"tg-feedback-bot/internal/domain"
	"tg-feedback-bot/internal/infra/cache"
	"tg-feedback-bot/internal/infra/config"
	"tg-feedback-bot/internal/infra/db"
	infrahttp "tg-feedback-bot/internal/infra/http"
	"tg-feedback-bot/internal/infra/log"
	"tg-feedback-bot/internal/infra/metrics"
	"tg-feedback-bot/internal/usecase/delivery"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	if err := db.Migrate(cfg.PGDSN); err != nil {
		logger.Fatal().Err(err).Msg("не удалось применить миграции")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	redisClient, err := cache.Connect(cfg.RedisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к Redis")
	}
	defer redisClient.Close()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	repoAdapter := repo.NewPostgres(pool)
	limiter := ratelimit.NewRedisLimiter(redisClient, cfg.Limits.RateLimit)
	routes := mapping.NewRedisStore(redisClient, cfg.Limits.MappingTTL)
	states := state.NewMemory()
	sender := telegram.NewSender(botAPI, logger)
	roster := domain.NewRoster(cfg.AdminID, cfg.ModeratorIDs)
	recipients := delivery.RecipientsForMode(cfg.NotifyMode, cfg.AdminID, cfg.GroupChatID)
	deliveryUC := delivery.NewService(sender, routes, recipients, logger)

	h := bot.NewHandler(sender, logger, repoAdapter, repoAdapter, limiter, routes, states, deliveryUC, roster, cfg.GroupChatID, cfg.Limits.MaxLength)

	// Секрет в пути вебхука: либо из окружения, либо одноразовый на запуск.
	secret := cfg.Telegram.WebhookSecret
	if secret == "" {
		secret = uuid.NewString()
	}
	webhookPath := "/bot/webhook/" + secret

	srv := infrahttp.NewServer(logger)
	srv.Router.Post(webhookPath, func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	if cfg.Telegram.WebhookURL != "" {
		link := strings.TrimSuffix(cfg.Telegram.WebhookURL, "/") + webhookPath
		wh, err := tgbotapi.NewWebhook(link)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный адрес вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
		}
		logger.Info().Msg("вебхук зарегистрирован")
	}

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()
	logger.Info().Str("notify_mode", cfg.NotifyMode).Msg("бот обратной связи запущен")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
