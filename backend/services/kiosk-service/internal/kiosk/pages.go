// Package kiosk gives every connected page its own session controller, fed by the
// shared store and rendering to that page's websocket.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"solarcharge/backend/services/kiosk-service/internal/duration"
	"solarcharge/backend/services/kiosk-service/internal/payment"
	"solarcharge/backend/services/kiosk-service/internal/session"
	"solarcharge/backend/services/kiosk-service/internal/store"
	"solarcharge/backend/services/kiosk-service/internal/view"
	"solarcharge/backend/services/kiosk-service/internal/ws"
)

// ErrUnknownIntent is returned for intent types the page does not understand.
var ErrUnknownIntent = errors.New("unknown intent")

// Conn is the part of a websocket connection a page needs.
type Conn interface {
	ID() string
	Send(msg []byte)
}

// Pages creates and tracks per-connection pages.
type Pages struct {
	store    store.Store
	calc     *duration.Calculator
	payments payment.Generator
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	pages map[string]*Page
}

// NewPages builds the page registry.
func NewPages(st store.Store, calc *duration.Calculator, payments payment.Generator, logger *zap.Logger) *Pages {
	return &Pages{
		store:    st,
		calc:     calc,
		payments: payments,
		logger:   logger,
		now:      time.Now,
		pages:    make(map[string]*Page),
	}
}

// Page is one connected kiosk screen.
type Page struct {
	id       string
	ctrl     *session.Controller
	recorder *view.Recorder
}

// Bind implements ws.Binder.
func (p *Pages) Bind(ctx context.Context, conn *ws.Connection) (ws.IntentHandler, error) {
	return p.Open(ctx, conn)
}

// Open starts a page for conn; it lives until ctx ends.
func (p *Pages) Open(ctx context.Context, conn Conn) (*Page, error) {
	logger := p.logger.Named("session").With(zap.String("client_id", conn.ID()))
	recorder := view.NewRecorder(false)

	ctrl, err := session.New(session.Options{
		Store:      p.store,
		Calculator: p.calc,
		Payments:   p.payments,
		View:       view.Multi(view.NewJSONSink(conn, logger), recorder, view.NewLogSink(logger)),
		Logger:     logger,
		Now:        p.now,
	})
	if err != nil {
		return nil, fmt.Errorf("kiosk: new session: %w", err)
	}

	page := &Page{id: conn.ID(), ctrl: ctrl, recorder: recorder}
	p.mu.Lock()
	p.pages[page.id] = page
	p.mu.Unlock()

	go func() {
		defer p.remove(page.id)
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("session stopped", zap.Error(err))
		}
	}()
	return page, nil
}

func (p *Pages) remove(id string) {
	p.mu.Lock()
	delete(p.pages, id)
	p.mu.Unlock()
}

// PageState is the display state of one page.
type PageState struct {
	ID    string     `json:"id"`
	Stage string     `json:"stage"`
	View  view.State `json:"view"`
}

// States returns every open page's state ordered by id.
func (p *Pages) States() []PageState {
	p.mu.RLock()
	out := make([]PageState, 0, len(p.pages))
	for _, page := range p.pages {
		out = append(out, PageState{
			ID:    page.id,
			Stage: page.ctrl.Stage().String(),
			View:  page.recorder.State(),
		})
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HandleIntent implements ws.IntentHandler.
func (pg *Page) HandleIntent(ctx context.Context, intent ws.Intent) error {
	switch intent.Type {
	case ws.IntentRequestDuration:
		return pg.ctrl.RequestDuration(string(intent.Hours), string(intent.Minutes), string(intent.Seconds))
	case ws.IntentConfirmPayment:
		return pg.ctrl.ConfirmPayment()
	case ws.IntentStart:
		return pg.ctrl.StartCharging(ctx)
	case ws.IntentStop:
		return pg.ctrl.StopCharging(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIntent, intent.Type)
	}
}

// State returns the page's current display state.
func (pg *Page) State() view.State {
	return pg.recorder.State()
}

// Stage returns the page's session stage.
func (pg *Page) Stage() session.Stage {
	return pg.ctrl.Stage()
}
