package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

// Result is the outcome of one inbound message. An empty Reply means no
// reply should be sent. Err is only set for failures the customer could
// not fix, and is meant for logs.
type Result struct {
	Reply string
	Err   error
}

// MenuSource provides today's menu snapshot.
type MenuSource interface {
	ActiveMenuForToday(ctx context.Context) (*MenuSnapshot, error)
}

// Finalizer turns a confirmed session into an order.
type Finalizer interface {
	Finalize(ctx context.Context, session *models.OrderSession) (*Confirmation, error)
}

// OrderingService runs the text ordering conversation.
type OrderingService struct {
	store     storage.Store
	sessions  storage.SessionStore
	locker    storage.Locker
	menus     MenuSource
	finalizer Finalizer

	lockWait time.Duration
	timeout  time.Duration
}

// OrderingOptions bounds how long a message may wait.
type OrderingOptions struct {
	LockWait          time.Duration
	DependencyTimeout time.Duration
}

// NewOrderingService wires the conversation to its collaborators
func NewOrderingService(store storage.Store, sessions storage.SessionStore, locker storage.Locker,
	menus MenuSource, finalizer Finalizer, opts OrderingOptions) *OrderingService {
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	if opts.DependencyTimeout <= 0 {
		opts.DependencyTimeout = 10 * time.Second
	}
	return &OrderingService{
		store:     store,
		sessions:  sessions,
		locker:    locker,
		menus:     menus,
		finalizer: finalizer,
		lockWait:  opts.LockWait,
		timeout:   opts.DependencyTimeout,
	}
}

// HandleInboundMessage classifies the text, applies the transition for the
// sender's session and returns the reply. It never panics; a failure
// while talking to a dependency leaves the session untouched and asks the
// customer to try again.
func (s *OrderingService) HandleInboundMessage(ctx context.Context, from, raw string) (res Result) {
	phone := models.NormalizePhone(from)
	if phone == "" {
		return Result{Err: newError(KindValidation, "handle message", errors.New("missing sender"))}
	}
	logger := log.With().Str("phone", phone).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered while handling message")
			res = Result{Reply: msgTryAgain, Err: fmt.Errorf("panic handling message: %v", r)}
		}
	}()

	intent := Classify(raw)

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	unlock, err := s.locker.Lock(lockCtx, phone)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msg("Could not lock session")
		if errors.Is(err, storage.ErrLockTimeout) {
			return Result{Reply: msgBusy, Err: newError(KindDependency, "lock session", err)}
		}
		return Result{Reply: msgTryAgain, Err: newError(KindDependency, "lock session", err)}
	}
	defer unlock()

	session, err := s.loadSession(ctx, phone)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load session")
		return Result{Reply: msgTryAgain, Err: err}
	}

	state := models.StateNoSession
	if session != nil {
		state = session.State
	}
	act := decide(state, intent.Kind)
	logger.Debug().Str("state", string(state)).Stringer("intent", intent.Kind).Stringer("action", act).Msg("Handling message")

	reply, err := s.execute(ctx, logger, act, phone, session, intent)
	if err != nil {
		logger.Error().Err(err).Stringer("action", act).Msg("Failed to handle message")
		return Result{Reply: msgTryAgain, Err: err}
	}
	return Result{Reply: reply}
}

func (s *OrderingService) execute(ctx context.Context, logger zerolog.Logger, act action, phone string,
	session *models.OrderSession, intent Intent) (string, error) {
	switch act {
	case actShowMenu:
		return s.showMenu(ctx, phone, session)
	case actSelect:
		return s.selectItems(ctx, session, intent.Numbers)
	case actConfirm:
		return s.confirm(ctx, logger, session)
	case actCancel:
		if err := s.deleteSession(ctx, phone); err != nil {
			return "", err
		}
		return msgCancelled, nil
	case actPromptSelection:
		return msgSelectionPrompt, nil
	case actPromptConfirm:
		return formatConfirmPrompt(session.Items, session.TotalAmountCents), nil
	case actHelp:
		return msgHelp, nil
	default:
		return msgStartPrompt, nil
	}
}

func (s *OrderingService) loadSession(ctx context.Context, phone string) (*models.OrderSession, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.sessions.Get(opCtx, phone)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(KindDependency, "load session", err)
	}
	return session, nil
}

func (s *OrderingService) saveSession(ctx context.Context, session *models.OrderSession) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sessions.Save(opCtx, session); err != nil {
		return newError(KindDependency, "save session", err)
	}
	return nil
}

func (s *OrderingService) deleteSession(ctx context.Context, phone string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sessions.Delete(opCtx, phone); err != nil {
		return newError(KindDependency, "delete session", err)
	}
	return nil
}

// showMenu starts a session on today's menu, replacing any existing one.
func (s *OrderingService) showMenu(ctx context.Context, phone string, existing *models.OrderSession) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snapshot, err := s.menus.ActiveMenuForToday(opCtx)
	if KindOf(err) == KindNotFound {
		if existing != nil {
			if err := s.deleteSession(ctx, phone); err != nil {
				return "", err
			}
		}
		return msgNoMenu, nil
	}
	if err != nil {
		return "", newError(KindDependency, "show menu", err)
	}

	customer, err := s.store.GetOrCreateCustomer(opCtx, phone)
	if err != nil {
		return "", newError(KindDependency, "show menu", err)
	}

	session := &models.OrderSession{
		Phone:        phone,
		CustomerID:   customer.CustomerID,
		MenuID:       snapshot.MenuID,
		MenuName:     snapshot.Name,
		MenuSnapshot: snapshot.Items,
		State:        models.StateAwaitingSelection,
	}
	if existing != nil {
		session.Version = existing.Version
	}
	session.SetItems(nil)

	if err := s.saveSession(ctx, session); err != nil {
		return "", err
	}
	return FormatMenu(snapshot), nil
}

// selectItems resolves 1-based positions against the menu the customer was
// shown. Out of range numbers are ignored.
func (s *OrderingService) selectItems(ctx context.Context, session *models.OrderSession, numbers []int) (string, error) {
	var items []models.SessionItem
	for _, n := range numbers {
		if n < 1 || n > len(session.MenuSnapshot) {
			continue
		}
		item := session.MenuSnapshot[n-1]
		items = append(items, models.SessionItem{
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			UnitPriceCents: item.PriceCents,
			Quantity:       1,
		})
	}
	if len(items) == 0 {
		return msgInvalidNumbers, nil
	}

	next := session.Clone()
	next.SetItems(items)
	next.State = models.StateConfirmingOrder
	if err := s.saveSession(ctx, next); err != nil {
		return "", err
	}
	return formatConfirmPrompt(next.Items, next.TotalAmountCents), nil
}

// confirm finalizes the order. The session is removed once the order is
// saved, whether or not a payment link could be created, so the customer
// never ends up confirming the same order twice.
func (s *OrderingService) confirm(ctx context.Context, logger zerolog.Logger, session *models.OrderSession) (string, error) {
	conf, err := s.finalizer.Finalize(ctx, session)
	if err != nil {
		if KindOf(err) == KindValidation {
			if err := s.deleteSession(ctx, session.Phone); err != nil {
				logger.Warn().Err(err).Msg("Failed to delete empty session")
			}
			return msgStartPrompt, nil
		}
		return "", err
	}

	if err := s.deleteSession(ctx, session.Phone); err != nil {
		logger.Warn().Err(err).Str("order_id", conf.Order.OrderID).Msg("Order placed but session not deleted")
	}
	return conf.Reply, nil
}
