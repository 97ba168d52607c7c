package handler

import (
	"context"
	"errors"
	"time"

	tele "gopkg.in/telebot.v3"

	"telegram-karma-bot/internal/model"
	"telegram-karma-bot/internal/pkg/lock"
	"telegram-karma-bot/internal/repository"
	"telegram-karma-bot/internal/service"
	"telegram-karma-bot/internal/store"
)

var errChatNotFound = errors.New("chat not found")

type sent struct {
	to   tele.Recipient
	what interface{}
	opts []interface{}
	msg  *tele.Message
}

// fakeAPI records outgoing calls instead of talking to Telegram.
type fakeAPI struct {
	nextID  int
	sent    []sent
	edited  []string
	deleted []int
	chats   map[int64]*tele.Chat
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 100, chats: map[int64]*tele.Chat{}}
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.nextID++
	msg := &tele.Message{ID: f.nextID}
	if chat, ok := to.(*tele.Chat); ok {
		msg.Chat = chat
	}
	f.sent = append(f.sent, sent{to: to, what: what, opts: opts, msg: msg})
	return msg, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.edited = append(f.edited, what.(string))
	m, ok := msg.(*tele.Message)
	if !ok {
		return nil, errors.New("unexpected editable")
	}
	return m, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	m, ok := msg.(*tele.Message)
	if !ok {
		return errors.New("unexpected editable")
	}
	f.deleted = append(f.deleted, m.ID)
	return nil
}

func (f *fakeAPI) ChatByID(id int64) (*tele.Chat, error) {
	if chat, ok := f.chats[id]; ok {
		return chat, nil
	}
	return nil, errChatNotFound
}

func (f *fakeAPI) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	if s, ok := f.sent[len(f.sent)-1].what.(string); ok {
		return s
	}
	return ""
}

// fakeContext implements the parts of tele.Context the handlers use.
type fakeContext struct {
	tele.Context

	msg       *tele.Message
	callback  *tele.Callback
	args      []string
	replies   []string
	responses []*tele.CallbackResponse
}

func (c *fakeContext) Message() *tele.Message   { return c.msg }
func (c *fakeContext) Callback() *tele.Callback { return c.callback }
func (c *fakeContext) Args() []string           { return c.args }

func (c *fakeContext) Sender() *tele.User {
	if c.callback != nil {
		return c.callback.Sender
	}
	if c.msg != nil {
		return c.msg.Sender
	}
	return nil
}

func (c *fakeContext) Chat() *tele.Chat {
	if c.callback != nil && c.callback.Message != nil {
		return c.callback.Message.Chat
	}
	if c.msg != nil {
		return c.msg.Chat
	}
	return nil
}

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	if s, ok := what.(string); ok {
		c.replies = append(c.replies, s)
	}
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		c.responses = append(c.responses, &tele.CallbackResponse{})
		return nil
	}
	c.responses = append(c.responses, resp...)
	return nil
}

var (
	group = &tele.Chat{ID: -1001, Type: tele.ChatSuperGroup}
	alice = &tele.User{ID: 1, FirstName: "Alice", Username: "alice"}
	bob   = &tele.User{ID: 2, FirstName: "Bob", LastName: "Stone"}
)

type env struct {
	ctx      context.Context
	api      *fakeAPI
	ledger   *repository.Ledger
	transfer *service.TransferService
	ranking  *service.RankingService
	karma    *KarmaHandler
	group    *GroupHandler
	user     *UserHandler
	admin    *AdminHandler
}

func newEnv() *env {
	api := newFakeAPI()
	ledger := repository.NewLedger(store.NewMemoryBackend(), repository.DefaultLimits())
	locks := lock.NewUserLock()
	transfer := service.NewTransferService(ledger, locks)
	ranking := service.NewRankingService(ledger)
	notify := NewNotifier(ledger, api)

	return &env{
		ctx:      context.Background(),
		api:      api,
		ledger:   ledger,
		transfer: transfer,
		ranking:  ranking,
		karma:    NewKarmaHandler(transfer, notify, api),
		group:    NewGroupHandler(ranking, notify, api),
		user:     NewUserHandler(ranking),
		admin:    NewAdminHandler(service.NewAdminService(ledger, locks), api),
	}
}

func reply(from, to *tele.User, text string) *fakeContext {
	return &fakeContext{msg: &tele.Message{
		ID:      1,
		Sender:  from,
		Chat:    group,
		Text:    text,
		ReplyTo: &tele.Message{ID: 0, Sender: to, Chat: group},
	}}
}

// exhaust spends every up point of the user for today.
func (e *env) exhaust(userID int64) error {
	if err := e.ledger.SetLastGrant(e.ctx, userID, time.Now().Unix()); err != nil {
		return err
	}
	return e.ledger.SetQuota(e.ctx, userID, model.PolarityUp, 0)
}
