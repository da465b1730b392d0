package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultDispatchTimeout = 60 * time.Second

// Dispatcher delivers finished reports to their destination chat.
type Dispatcher interface {
	DispatchReport(ctx context.Context, destination int64, text string, photoIDs []string) error
}

// ErrorHandler is told about reports that could not be delivered.
type ErrorHandler func(ctx context.Context, err *DispatchError)

// Aggregator merges the free-form messages of a finished dialogue into one
// report. The first fragment of a burst arms a single debounced flush; later
// fragments only append to the buffer.
type Aggregator struct {
	store           *Store
	composer        *Composer
	dispatcher      Dispatcher
	presenter       Presenter
	messages        Messages
	latency         time.Duration
	dispatchTimeout time.Duration
	onError         ErrorHandler
	log             *zap.Logger

	wg sync.WaitGroup
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithErrorHandler registers fn for failed dispatches.
func WithErrorHandler(fn ErrorHandler) AggregatorOption {
	return func(a *Aggregator) {
		a.onError = fn
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMessages overrides the acknowledgment texts.
func WithMessages(m Messages) AggregatorOption {
	return func(a *Aggregator) {
		a.messages = m.WithDefaults()
	}
}

// WithDispatchTimeout bounds a single dispatch call.
func WithDispatchTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.dispatchTimeout = d
		}
	}
}

// NewAggregator creates an Aggregator that waits latency after the first
// fragment before sending.
func NewAggregator(store *Store, composer *Composer, dispatcher Dispatcher, presenter Presenter, latency time.Duration, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:           store,
		composer:        composer,
		dispatcher:      dispatcher,
		presenter:       presenter,
		messages:        DefaultMessages(),
		latency:         latency,
		dispatchTimeout: defaultDispatchTimeout,
		log:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.Named("aggregator")
	return a
}

// Submit adds frag to key's pending report. Fragments with neither text nor
// photo are ignored.
func (a *Aggregator) Submit(ctx context.Context, key Key, frag Fragment) error {
	conv, ok := a.store.Get(key)
	if !ok {
		return ErrUnknownConversation
	}
	if frag.empty() {
		return nil
	}

	// Election and write-back share one critical section. Fragments that
	// arrive while a dispatch is running join the buffer without arming, so a
	// failed dispatch still holds them for the retry.
	conv.mu.Lock()
	if conv.phase != PhaseAwaitingSubmission && conv.phase != PhaseFlushing {
		conv.mu.Unlock()
		return ErrWrongPhase
	}
	first := conv.phase == PhaseAwaitingSubmission && !conv.buf.armed
	if frag.Text != "" {
		conv.buf.text = frag.Text
	}
	if frag.PhotoID != "" {
		conv.buf.photoIDs = append(conv.buf.photoIDs, frag.PhotoID)
	}
	if first {
		conv.buf.armed = true
	}
	conv.mu.Unlock()

	a.store.touch(conv)
	if first {
		a.log.Debug("flush armed", zap.String("conversation_id", conv.ID), zap.Duration("latency", a.latency))
		a.schedule(conv)
	}
	return nil
}

// Wait blocks until every armed flush has completed.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

func (a *Aggregator) schedule(conv *Conversation) {
	a.wg.Add(1)
	time.AfterFunc(a.latency, func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.dispatchTimeout)
		defer cancel()
		a.flush(ctx, conv)
	})
}

func (a *Aggregator) flush(ctx context.Context, conv *Conversation) {
	conv.mu.Lock()
	if conv.phase != PhaseAwaitingSubmission || !a.store.isCurrent(conv) {
		conv.mu.Unlock()
		a.log.Debug("flush skipped", zap.String("conversation_id", conv.ID))
		return
	}
	conv.phase = PhaseFlushing
	text := conv.buf.text
	photos := dedupe(conv.buf.photoIDs)
	fields := conv.fields.clone()
	dest := conv.destination
	conv.mu.Unlock()

	report := a.composer.Compose(conv.Sender, dest, fields, text, photos)
	a.log.Info("resent message",
		zap.String("username", conv.Sender.Username),
		zap.Int64("chat_id", conv.Key.ChatID),
		zap.String("conversation_id", conv.ID),
		zap.String("photos", strings.Join(photos, ", ")),
	)

	var err error
	if dest == 0 {
		err = ErrNoDestination
	} else {
		err = a.dispatcher.DispatchReport(ctx, report.Destination, report.Text, report.PhotoIDs)
	}
	if err != nil {
		conv.mu.Lock()
		if conv.phase == PhaseFlushing {
			conv.phase = PhaseAwaitingSubmission
			conv.buf.armed = false
		}
		conv.mu.Unlock()

		dErr := &DispatchError{ConversationID: conv.ID, Key: conv.Key, Destination: dest, Err: err}
		a.log.Error("dispatch failed", zap.Error(dErr))
		if a.onError != nil {
			a.onError(ctx, dErr)
		}
		return
	}

	conv.close()
	a.store.remove(conv)
	a.log.Info("resent to chat", zap.Int64("destination", dest), zap.String("conversation_id", conv.ID))

	if err := a.presenter.PresentAcknowledgment(ctx, conv.Key, a.messages.Accepted); err != nil {
		a.log.Warn("acknowledgment failed", zap.String("conversation_id", conv.ID), zap.Error(err))
	}
}
