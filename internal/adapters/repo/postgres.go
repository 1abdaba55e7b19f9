package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-feedback-bot/internal/domain"
	"tg-feedback-bot/internal/infra/metrics"
)

// Postgres реализует domain.UserRepo и domain.FeedbackRepo на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo     = (*Postgres)(nil)
	_ domain.FeedbackRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Upsert создаёт пользователя или обновляет его публичные поля и отметку активности.
func (p *Postgres) Upsert(identity domain.Identity) (domain.User, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		user      domain.User
		username  sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (tg_user_id, username, first_name, last_name)
VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''))
ON CONFLICT (tg_user_id) DO UPDATE SET
    username = NULLIF($2,''),
    first_name = NULLIF($3,''),
    last_name = NULLIF($4,''),
    last_seen_at = now()
RETURNING id, tg_user_id, username, first_name, last_name, is_blocked, created_at, last_seen_at
`, identity.TGUserID, identity.Username, identity.FirstName, identity.LastName).
		Scan(&user.ID, &user.TGUserID, &username, &firstName, &lastName, &user.IsBlocked, &user.CreatedAt, &user.LastSeenAt)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, err
	}
	if username.Valid {
		user.Username = username.String
	}
	if firstName.Valid {
		user.FirstName = firstName.String
	}
	if lastName.Valid {
		user.LastName = lastName.String
	}
	return user, nil
}

// SetBlocked выставляет флаг блокировки уже известного пользователя.
func (p *Postgres) SetBlocked(tgUserID int64, blocked bool) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE users SET is_blocked = $2 WHERE tg_user_id = $1`, tgUserID, blocked)
	metrics.ObserveNetworkRequest("postgres", "users_set_blocked", "users", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// IsBlocked возвращает флаг блокировки. Неизвестный пользователь не заблокирован.
func (p *Postgres) IsBlocked(tgUserID int64) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var blocked bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT is_blocked FROM users WHERE tg_user_id = $1`, tgUserID).Scan(&blocked)
	metrics.ObserveNetworkRequest("postgres", "users_is_blocked", "users", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return blocked, nil
}

// Create записывает новое обращение со статусом pending.
func (p *Postgres) Create(userTGID int64, text string) (int64, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO feedback_messages (user_tg_id, text) VALUES ($1, $2) RETURNING id
`, userTGID, text).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "feedback_insert", "feedback_messages", start, err)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// MarkDelivered помечает обращение доставленным.
func (p *Postgres) MarkDelivered(id int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE feedback_messages SET delivery_status = 'delivered', delivered_at = now()
WHERE id = $1 AND delivery_status = 'pending'
`, id)
	metrics.ObserveNetworkRequest("postgres", "feedback_mark_delivered", "feedback_messages", start, err)
	return err
}

// MarkFailed помечает обращение недоставленным и сохраняет текст ошибки.
func (p *Postgres) MarkFailed(id int64, errText string) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE feedback_messages SET delivery_status = 'failed', error = $2
WHERE id = $1 AND delivery_status = 'pending'
`, id, errText)
	metrics.ObserveNetworkRequest("postgres", "feedback_mark_failed", "feedback_messages", start, err)
	return err
}
