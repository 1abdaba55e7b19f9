package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-feedback-bot/internal/adapters/state"
	"tg-feedback-bot/internal/domain"
	"tg-feedback-bot/internal/usecase/delivery"
)

const (
	testAdminID = int64(100)
	testGroupID = int64(-200)
	testMaxLen  = 20
)

type sentMsg struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent      []sentMsg
	failChats map[int64]error
	nextID    int
}

func (s *fakeSender) Send(_ context.Context, chatID int64, text string) (int, error) {
	if err, ok := s.failChats[chatID]; ok {
		return 0, err
	}
	s.nextID++
	s.sent = append(s.sent, sentMsg{chatID: chatID, text: text})
	return s.nextID, nil
}

func (s *fakeSender) SendWithMarkup(ctx context.Context, chatID int64, text string, _ any) (int, error) {
	return s.Send(ctx, chatID, text)
}

func (s *fakeSender) textsFor(chatID int64) []string {
	var texts []string
	for _, m := range s.sent {
		if m.chatID == chatID {
			texts = append(texts, m.text)
		}
	}
	return texts
}

type fakeUsers struct {
	known      map[int64]bool
	blocked    map[int64]bool
	banCalls   int
	blockedErr error
}

func newFakeUsers(ids ...int64) *fakeUsers {
	known := make(map[int64]bool)
	for _, id := range ids {
		known[id] = true
	}
	return &fakeUsers{known: known, blocked: make(map[int64]bool)}
}

func (u *fakeUsers) Upsert(identity domain.Identity) (domain.User, error) {
	u.known[identity.TGUserID] = true
	return domain.User{TGUserID: identity.TGUserID}, nil
}

func (u *fakeUsers) SetBlocked(tgUserID int64, blocked bool) error {
	u.banCalls++
	if !u.known[tgUserID] {
		return domain.ErrUserNotFound
	}
	u.blocked[tgUserID] = blocked
	return nil
}

func (u *fakeUsers) IsBlocked(tgUserID int64) (bool, error) {
	if u.blockedErr != nil {
		return false, u.blockedErr
	}
	return u.blocked[tgUserID], nil
}

type fakeFeedback struct {
	nextID    int64
	created   map[int64]string
	delivered []int64
	failed    map[int64]string
}

func newFakeFeedback() *fakeFeedback {
	return &fakeFeedback{created: make(map[int64]string), failed: make(map[int64]string)}
}

func (f *fakeFeedback) Create(_ int64, text string) (int64, error) {
	f.nextID++
	f.created[f.nextID] = text
	return f.nextID, nil
}

func (f *fakeFeedback) MarkDelivered(id int64) error {
	f.delivered = append(f.delivered, id)
	return nil
}

func (f *fakeFeedback) MarkFailed(id int64, errText string) error {
	f.failed[id] = errText
	return nil
}

type fakeLimiter struct {
	tickets  map[int64]bool
	cooldown time.Duration
	err      error
}

func newFakeLimiter(cooldown time.Duration) *fakeLimiter {
	return &fakeLimiter{tickets: make(map[int64]bool), cooldown: cooldown}
}

func (l *fakeLimiter) TryAdmit(_ context.Context, tgUserID int64) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.tickets[tgUserID] {
		return false, nil
	}
	l.tickets[tgUserID] = true
	return true, nil
}

func (l *fakeLimiter) RemainingCooldown(_ context.Context, tgUserID int64) (time.Duration, error) {
	if !l.tickets[tgUserID] {
		return 0, nil
	}
	return l.cooldown, nil
}

type fakeRoutes struct {
	routes map[string]domain.Route
}

func newFakeRoutes() *fakeRoutes {
	return &fakeRoutes{routes: make(map[string]domain.Route)}
}

func (r *fakeRoutes) key(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

func (r *fakeRoutes) Remember(_ context.Context, chatID int64, messageID int, route domain.Route) error {
	r.routes[r.key(chatID, messageID)] = route
	return nil
}

func (r *fakeRoutes) Resolve(_ context.Context, chatID int64, messageID int) (domain.Route, error) {
	route, ok := r.routes[r.key(chatID, messageID)]
	if !ok {
		return domain.Route{}, domain.ErrRouteNotFound
	}
	return route, nil
}

type testEnv struct {
	handler  *Handler
	sender   *fakeSender
	users    *fakeUsers
	feedback *fakeFeedback
	limiter  *fakeLimiter
	routes   *fakeRoutes
	states   *state.Memory
}

func newTestEnv() *testEnv {
	sender := &fakeSender{failChats: make(map[int64]error)}
	users := newFakeUsers()
	feedback := newFakeFeedback()
	limiter := newFakeLimiter(30 * time.Minute)
	routes := newFakeRoutes()
	states := state.NewMemory()
	recipients := delivery.RecipientsForMode("both", testAdminID, testGroupID)
	deliveryUC := delivery.NewService(sender, routes, recipients, zerolog.Nop())
	roster := domain.NewRoster(testAdminID, []int64{2})
	handler := NewHandler(sender, zerolog.Nop(), users, feedback, limiter, routes, states, deliveryUC, roster, testGroupID, testMaxLen)
	return &testEnv{handler: handler, sender: sender, users: users, feedback: feedback, limiter: limiter, routes: routes, states: states}
}

func privateMsg(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, UserName: "reader", FirstName: "Ира"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}}
}

func replyInChat(chatID, userID int64, replyToID int, text string) tgbotapi.Update {
	chatType := "private"
	if chatID < 0 {
		chatType = "supergroup"
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID:      2,
		From:           &tgbotapi.User{ID: userID},
		Chat:           &tgbotapi.Chat{ID: chatID, Type: chatType},
		Text:           text,
		ReplyToMessage: &tgbotapi.Message{MessageID: replyToID},
	}}
}

func TestFeedbackHappyPath(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.handler.HandleUpdate(ctx, privateMsg(7, BtnWrite))
	if s := env.states.Get(7); s != domain.StateAwaitingMessage {
		t.Fatalf("после инициации ожидали awaiting_message, получили %s", s)
	}

	env.handler.HandleUpdate(ctx, privateMsg(7, "Hello"))

	if s := env.states.Get(7); s != domain.StateIdle {
		t.Fatalf("после обращения состояние должно вернуться в idle, получили %s", s)
	}
	if len(env.sender.textsFor(testAdminID)) != 1 || len(env.sender.textsFor(testGroupID)) != 1 {
		t.Fatal("в режиме both копию должны получить оба адресата")
	}
	if len(env.feedback.delivered) != 1 {
		t.Fatalf("журнал должен отметить доставку, отмечено %d", len(env.feedback.delivered))
	}
	userReplies := env.sender.textsFor(7)
	if userReplies[len(userReplies)-1] != msgSentOK {
		t.Fatalf("пользователь должен получить подтверждение, получил %q", userReplies[len(userReplies)-1])
	}
	if _, err := env.routes.Resolve(ctx, testAdminID, 0); err == nil {
		t.Fatal("несуществующий якорь не должен разрешаться")
	}
}

func TestSecondInitiationWithinCooldown(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.handler.HandleUpdate(ctx, privateMsg(7, BtnWrite))
	env.states.Reset(7)
	env.handler.HandleUpdate(ctx, privateMsg(7, BtnWrite))

	if s := env.states.Get(7); s != domain.StateIdle {
		t.Fatalf("повторная инициация внутри окна не должна переводить в ожидание, получили %s", s)
	}
	replies := env.sender.textsFor(7)
	last := replies[len(replies)-1]
	if !strings.Contains(last, "30") {
		t.Fatalf("ответ должен содержать остаток охлаждения в минутах: %q", last)
	}
}

func TestLimiterFailureRejectsClosed(t *testing.T) {
	env := newTestEnv()
	env.limiter.err = errors.New("redis down")

	env.handler.HandleUpdate(context.Background(), privateMsg(7, BtnWrite))

	if s := env.states.Get(7); s != domain.StateIdle {
		t.Fatalf("при недоступном лимитере допуска быть не должно, получили %s", s)
	}
	replies := env.sender.textsFor(7)
	if replies[len(replies)-1] != msgTryLater {
		t.Fatalf("ожидали отказ с просьбой повторить позже, получили %q", replies[len(replies)-1])
	}
}

func TestTooLongTextRejectedWithoutLedgerRecord(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.handler.HandleUpdate(ctx, privateMsg(7, BtnWrite))
	long := strings.Repeat("я", testMaxLen+5)
	env.handler.HandleUpdate(ctx, privateMsg(7, long))

	if len(env.feedback.created) != 0 {
		t.Fatal("слишком длинный текст не должен попадать в журнал")
	}
	replies := env.sender.textsFor(7)
	last := replies[len(replies)-1]
	if !strings.Contains(last, fmt.Sprint(testMaxLen+5)) || !strings.Contains(last, fmt.Sprint(testMaxLen)) {
		t.Fatalf("ответ должен называть фактическую длину и лимит: %q", last)
	}
	if s := env.states.Get(7); s != domain.StateIdle {
		t.Fatalf("состояние должно сброситься даже при ошибке валидации, получили %s", s)
	}
}

func TestEmptyTextRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.handler.HandleUpdate(ctx, privateMsg(7, BtnWrite))
	env.handler.HandleUpdate(ctx, privateMsg(7, "   "))

	replies := env.sender.textsFor(7)
	if replies[len(replies)-1] != msgEmptyMessage {
		t.Fatalf("ожидали ответ о пустом сообщении, получили %q", replies[len(replies)-1])
	}
	if len(env.feedback.created) != 0 {
		t.Fatal("пустой текст не должен попадать в журнал")
	}
}

func TestCommandThroughFeedbackSlotRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.handler.HandleUpdate(ctx, privateMsg(7, BtnWrite))
	env.handler.HandleUpdate(ctx, privateMsg(7, "/ban"))

	replies := env.sender.textsFor(7)
	if replies[len(replies)-1] != msgUnknown {
		t.Fatalf("команда в слоте обращения должна отклоняться, получили %q", replies[len(replies)-1])
	}
	if len(env.feedback.created) != 0 {
		t.Fatal("команда не должна доставляться как обращение")
	}
}

func TestBannedUserCannotInitiate(t *testing.T) {
	env := newTestEnv()
	env.users.known[7] = true
	env.users.blocked[7] = true

	env.handler.HandleUpdate(context.Background(), privateMsg(7, BtnWrite))

	if s := env.states.Get(7); s != domain.StateIdle {
		t.Fatalf("заблокированный не должен переходить в ожидание, получили %s", s)
	}
	replies := env.sender.textsFor(7)
	if replies[len(replies)-1] != msgBlocked {
		t.Fatalf("ожидали ответ о блокировке, получили %q", replies[len(replies)-1])
	}
}

func TestBannedUserTextNotDelivered(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.users.known[7] = true
	env.states.Set(7, domain.StateAwaitingMessage)
	env.users.blocked[7] = true

	env.handler.HandleUpdate(ctx, privateMsg(7, "Hello"))

	if len(env.sender.textsFor(testAdminID)) != 0 || len(env.sender.textsFor(testGroupID)) != 0 {
		t.Fatal("текст заблокированного не должен доставляться адресатам")
	}
	if len(env.feedback.created) != 0 {
		t.Fatal("текст заблокированного не должен попадать в журнал")
	}
	replies := env.sender.textsFor(7)
	if replies[len(replies)-1] != msgBlocked {
		t.Fatalf("ожидали ответ о блокировке, получили %q", replies[len(replies)-1])
	}
}

func TestRegistryErrorRejectsFeedbackText(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.states.Set(7, domain.StateAwaitingMessage)
	env.users.blockedErr = errors.New("pg down")

	env.handler.HandleUpdate(ctx, privateMsg(7, "Hello"))

	if len(env.sender.textsFor(testAdminID)) != 0 || len(env.sender.textsFor(testGroupID)) != 0 {
		t.Fatal("при недоступном реестре текст не должен доставляться адресатам")
	}
	if len(env.feedback.created) != 0 {
		t.Fatal("при недоступном реестре журнал не должен пополняться")
	}
	replies := env.sender.textsFor(7)
	if replies[len(replies)-1] != msgTryLater {
		t.Fatalf("ожидали отказ с просьбой повторить позже, получили %q", replies[len(replies)-1])
	}
}

func TestStaffExemptFromLimitAndBan(t *testing.T) {
	env := newTestEnv()
	env.limiter.tickets[testAdminID] = true

	env.handler.HandleUpdate(context.Background(), privateMsg(testAdminID, BtnWrite))

	if s := env.states.Get(testAdminID); s != domain.StateAwaitingMessage {
		t.Fatalf("staff не подпадает под лимит, ожидали awaiting_message, получили %s", s)
	}
}

func TestPartialDeliveryStillSucceeds(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.sender.failChats[testGroupID] = errors.New("bot was kicked")

	env.handler.HandleUpdate(ctx, privateMsg(7, BtnWrite))
	env.handler.HandleUpdate(ctx, privateMsg(7, "Hello"))

	if len(env.feedback.delivered) != 1 {
		t.Fatal("доставка хотя бы одному адресату должна считаться успехом")
	}
	replies := env.sender.textsFor(7)
	if replies[len(replies)-1] != msgSentOK {
		t.Fatalf("пользователь должен получить подтверждение, получил %q", replies[len(replies)-1])
	}

	// Ответ по уцелевшей копии маршрутизируется к исходному пользователю.
	copies := env.sender.textsFor(testAdminID)
	if len(copies) != 1 {
		t.Fatalf("админ должен получить одну копию, получил %d", len(copies))
	}
	delete(env.sender.failChats, testGroupID)
	var copyID int
	for i, m := range env.sender.sent {
		if m.chatID == testAdminID {
			copyID = i + 1
		}
	}
	env.handler.HandleUpdate(ctx, replyInChat(testAdminID, testAdminID, copyID, "спасибо!"))
	userReplies := env.sender.textsFor(7)
	if !strings.Contains(userReplies[len(userReplies)-1], "спасибо!") {
		t.Fatalf("ответ автора должен дойти до пользователя: %v", userReplies)
	}
}

func TestTotalDeliveryFailure(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.sender.failChats[testAdminID] = errors.New("blocked")
	env.sender.failChats[testGroupID] = errors.New("kicked")

	env.handler.HandleUpdate(ctx, privateMsg(7, BtnWrite))
	env.handler.HandleUpdate(ctx, privateMsg(7, "Hello"))

	if len(env.feedback.failed) != 1 {
		t.Fatalf("полный провал должен попасть в журнал, отмечено %d", len(env.feedback.failed))
	}
	for _, summary := range env.feedback.failed {
		if !strings.Contains(summary, "chat") {
			t.Fatalf("сводка ошибок должна называть адресатов: %q", summary)
		}
	}
	replies := env.sender.textsFor(7)
	if replies[len(replies)-1] != msgSentFail {
		t.Fatalf("пользователь должен узнать о провале, получил %q", replies[len(replies)-1])
	}
}

func TestStaffBanByReply(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.users.known[7] = true
	_ = env.routes.Remember(ctx, testGroupID, 10, domain.Route{UserTGID: 7})

	env.handler.HandleUpdate(ctx, replyInChat(testGroupID, 2, 10, "/ban"))

	if !env.users.blocked[7] {
		t.Fatal("пользователь должен быть заблокирован")
	}
	groupReplies := env.sender.textsFor(testGroupID)
	if groupReplies[len(groupReplies)-1] != msgBanOK {
		t.Fatalf("staff должен получить подтверждение: %q", groupReplies[len(groupReplies)-1])
	}

	env.handler.HandleUpdate(ctx, replyInChat(testGroupID, 2, 10, "/unban"))
	if env.users.blocked[7] {
		t.Fatal("пользователь должен быть разблокирован")
	}
}

func TestBanUnknownUserReportsNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_ = env.routes.Remember(ctx, testGroupID, 10, domain.Route{UserTGID: 999})

	env.handler.HandleUpdate(ctx, replyInChat(testGroupID, 2, 10, "/ban"))

	groupReplies := env.sender.textsFor(testGroupID)
	if groupReplies[len(groupReplies)-1] != msgBanNotFound {
		t.Fatalf("бан неизвестного должен сообщать not-found: %q", groupReplies[len(groupReplies)-1])
	}
}

func TestBanOnExpiredRouteNeverTouchesRegistry(t *testing.T) {
	env := newTestEnv()

	env.handler.HandleUpdate(context.Background(), replyInChat(testGroupID, 2, 10, "/ban"))

	if env.users.banCalls != 0 {
		t.Fatal("при истёкшем маршруте реестр блокировок не должен вызываться")
	}
	groupReplies := env.sender.textsFor(testGroupID)
	if groupReplies[len(groupReplies)-1] != msgTargetNotFound {
		t.Fatalf("ожидали ответ target not found, получили %q", groupReplies[len(groupReplies)-1])
	}
}

func TestEmptyReplyCommandIsSilentNoop(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_ = env.routes.Remember(ctx, testGroupID, 10, domain.Route{UserTGID: 7})

	env.handler.HandleUpdate(ctx, replyInChat(testGroupID, 2, 10, "/reply"))

	if len(env.sender.sent) != 0 {
		t.Fatalf("пустой /reply должен молча игнорироваться, отправлено %d сообщений", len(env.sender.sent))
	}
}

func TestBareTextReplyAllowedOnlyInPrivate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_ = env.routes.Remember(ctx, testGroupID, 10, domain.Route{UserTGID: 7})
	_ = env.routes.Remember(ctx, testAdminID, 11, domain.Route{UserTGID: 7})

	// Голый текст в общем чате — молчание, чтобы не допустить случайной утечки.
	env.handler.HandleUpdate(ctx, replyInChat(testGroupID, 2, 10, "это внутренняя заметка"))
	if len(env.sender.textsFor(7)) != 0 {
		t.Fatal("голый текст из группы не должен уходить пользователю")
	}

	// В личной переписке с ботом голый текст равен /reply.
	env.handler.HandleUpdate(ctx, replyInChat(testAdminID, testAdminID, 11, "отвечаю лично"))
	userReplies := env.sender.textsFor(7)
	if len(userReplies) != 1 || !strings.Contains(userReplies[0], "отвечаю лично") {
		t.Fatalf("ответ из лички должен дойти до пользователя: %v", userReplies)
	}
	if !strings.HasPrefix(userReplies[0], strings.TrimSpace(replyPrefix)) {
		t.Fatalf("ответ автора должен нести фиксированный префикс: %q", userReplies[0])
	}
}

func TestUnknownTextAnsweredOnlyInPrivate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.handler.HandleUpdate(ctx, privateMsg(7, "что это такое"))
	replies := env.sender.textsFor(7)
	if len(replies) != 1 || replies[0] != msgUnknown {
		t.Fatalf("в личке ожидали ответ о нераспознанной команде: %v", replies)
	}

	groupNoise := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 3,
		From:      &tgbotapi.User{ID: 5},
		Chat:      &tgbotapi.Chat{ID: testGroupID, Type: "supergroup"},
		Text:      "просто болтовня",
	}}
	env.handler.HandleUpdate(ctx, groupNoise)
	if len(env.sender.textsFor(testGroupID)) != 0 {
		t.Fatal("болтовня в группе не должна получать ответов")
	}
}

func TestGetIDAdminOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.handler.HandleUpdate(ctx, privateMsg(7, "/getid"))
	if len(env.sender.textsFor(7)) != 0 {
		t.Fatal("для не-админа /getid молча игнорируется")
	}

	env.handler.HandleUpdate(ctx, privateMsg(testAdminID, "/getid"))
	replies := env.sender.textsFor(testAdminID)
	if len(replies) != 1 || !strings.Contains(replies[0], fmt.Sprint(testAdminID)) {
		t.Fatalf("админ должен увидеть id чата: %v", replies)
	}
}

func TestSplitCommand(t *testing.T) {
	cases := map[string][2]string{
		"/ban":                       {"/ban", ""},
		"/reply текст ответа":        {"/reply", "текст ответа"},
		"/reply\nмногострочный":      {"/reply", "многострочный"},
		"/reply@feedback_bot привет": {"/reply", "привет"},
		"просто текст":               {"", "просто текст"},
	}
	for input, expected := range cases {
		cmd, payload := splitCommand(input)
		if cmd != expected[0] || payload != expected[1] {
			t.Fatalf("для %q ожидали (%q, %q), получили (%q, %q)", input, expected[0], expected[1], cmd, payload)
		}
	}
}
