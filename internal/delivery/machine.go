// Package delivery drives one contact through a conversation view and
// classifies the result.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/config"
	"github.com/xkilldash9x/bulksend/internal/locator"
)

// State is a step of the per-contact flow.
type State string

const (
	StateOpening          State = "Opening"
	StateCheckingValidity State = "CheckingValidity"
	StateSendingText      State = "SendingText"
	StateSendingMedia     State = "SendingMedia"
	StateClassifying      State = "Classifying"
	StateCleanup          State = "Cleanup"
	StateDone             State = "Done"
)

// Transition is reported to the transition hook on every state change.
type Transition struct {
	Contact schemas.Contact
	From    State
	To      State
}

// Settler waits after a successful send so the message can leave the outbox.
type Settler interface {
	Settle(ctx context.Context) error
}

// Machine runs contacts against one session. It is not safe for
// concurrent use; the session only has one conversation view.
type Machine struct {
	session      schemas.Session
	resolver     *locator.Resolver
	ladders      locator.Ladders
	cfg          config.LocatorConfig
	settler      Settler
	logger       *zap.Logger
	onTransition func(Transition)
}

// Option configures a Machine.
type Option func(*Machine)

// WithSettler sets the post-send wait.
func WithSettler(s Settler) Option { return func(m *Machine) { m.settler = s } }

// WithTransitionHook registers fn to observe state changes.
func WithTransitionHook(fn func(Transition)) Option {
	return func(m *Machine) { m.onTransition = fn }
}

// NewMachine creates a Machine.
func NewMachine(session schemas.Session, resolver *locator.Resolver, ladders locator.Ladders, cfg config.LocatorConfig, logger *zap.Logger, opts ...Option) *Machine {
	m := &Machine{
		session:  session,
		resolver: resolver,
		ladders:  ladders,
		cfg:      cfg,
		logger:   logger.Named("delivery"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// verdict is what the sending states observed, before classification.
type verdict struct {
	kind   schemas.OutcomeKind
	reason string
	err    error
}

// run holds the mutable state of one Machine.Run call.
type run struct {
	m       *Machine
	contact schemas.Contact
	intent  schemas.MessageIntent
	state   State
	log     *zap.Logger
}

// Run processes one contact and returns its single outcome. Cleanup runs on
// every path, including panics, which are left for the caller to recover.
func (m *Machine) Run(ctx context.Context, c schemas.Contact, intent schemas.MessageIntent) schemas.Outcome {
	r := &run{
		m:       m,
		contact: c,
		intent:  intent,
		log:     m.logger.With(zap.Int("row", c.Row), zap.String("number", c.Number())),
	}

	var outcome schemas.Outcome
	defer func() {
		r.cleanup(ctx)
		r.enter(StateDone)
		r.log.Info("Contact processed.",
			zap.String("outcome", outcome.Kind.String()),
			zap.String("reason", outcome.Reason))
	}()

	v := r.drive(ctx)
	r.enter(StateClassifying)
	outcome = classify(v)
	return outcome
}

func (r *run) enter(next State) {
	prev := r.state
	r.state = next
	r.log.Debug("State transition.", zap.String("from", string(prev)), zap.String("to", string(next)))
	if r.m.onTransition != nil {
		r.m.onTransition(Transition{Contact: r.contact, From: prev, To: next})
	}
}

func (r *run) drive(ctx context.Context) verdict {
	r.enter(StateOpening)
	if err := r.open(ctx); err != nil {
		return verdict{kind: schemas.OutcomeError, err: fmt.Errorf("open conversation: %w", err)}
	}

	r.enter(StateCheckingValidity)
	probe, err := r.m.resolver.Resolve(ctx, r.m.session, r.m.ladders.InvalidIndicator, r.m.cfg.ValidityProbeTimeout)
	if err != nil {
		return verdict{kind: schemas.OutcomeError, err: fmt.Errorf("validity probe: %w", err)}
	}
	if probe.Found {
		return verdict{kind: schemas.OutcomeInvalidNumber}
	}

	switch r.intent.Kind {
	case schemas.IntentMedia:
		r.enter(StateSendingMedia)
		return r.sendMedia(ctx)
	default:
		r.enter(StateSendingText)
		return r.sendText(ctx)
	}
}

func (r *run) open(ctx context.Context) error {
	number := r.contact.Number()
	if number == "" {
		return errors.New("contact has no phone number")
	}
	if !r.intent.Kind.IsValid() {
		return fmt.Errorf("unknown message kind %q", r.intent.Kind)
	}
	prefill := ""
	if r.intent.Kind == schemas.IntentText {
		prefill = r.intent.Body
	}
	return r.m.session.OpenConversation(ctx, number, prefill)
}

func (r *run) sendText(ctx context.Context) verdict {
	found, err := r.step(ctx, "send", r.m.ladders.Send, func(ctx context.Context, h schemas.ElementHandle) error {
		return h.Click(ctx)
	})
	if v, done := r.stepVerdict(found, err, "no send control found"); done {
		return v
	}
	return r.sent(ctx)
}

func (r *run) sendMedia(ctx context.Context) verdict {
	found, err := r.step(ctx, "attach", r.m.ladders.Attach, func(ctx context.Context, h schemas.ElementHandle) error {
		return h.Click(ctx)
	})
	if v, done := r.stepVerdict(found, err, "no attach control found"); done {
		return v
	}

	found, err = r.step(ctx, "file input", r.m.ladders.FileInput, func(ctx context.Context, h schemas.ElementHandle) error {
		return h.SetFiles(ctx, r.intent.MediaPath)
	})
	if v, done := r.stepVerdict(found, err, "no file input found"); done {
		return v
	}

	if r.intent.Body != "" {
		found, err = r.step(ctx, "caption", r.m.ladders.Caption, func(ctx context.Context, h schemas.ElementHandle) error {
			return h.SendKeys(ctx, r.intent.Body)
		})
		if err != nil {
			return verdict{kind: schemas.OutcomeError, err: err}
		}
		if !found {
			r.log.Warn("Caption field not found; sending media without caption.")
		}
	}

	found, err = r.step(ctx, "media send", r.m.ladders.MediaSend, func(ctx context.Context, h schemas.ElementHandle) error {
		return h.Click(ctx)
	})
	if v, done := r.stepVerdict(found, err, "no media send control found"); done {
		return v
	}
	return r.sent(ctx)
}

// stepVerdict maps a required step's result to a terminal verdict. done is
// false when the flow should continue.
func (r *run) stepVerdict(found bool, err error, missing string) (verdict, bool) {
	switch {
	case err != nil:
		return verdict{kind: schemas.OutcomeError, err: err}, true
	case !found:
		return verdict{kind: schemas.OutcomeSendFailed, reason: missing}, true
	}
	return verdict{}, false
}

// step resolves ladder and applies act to the element. A TransientUIError
// from either is handled by dismissing the interstitial and repeating the
// step, up to the configured retry budget.
func (r *run) step(ctx context.Context, name string, ladder locator.Ladder, act func(context.Context, schemas.ElementHandle) error) (bool, error) {
	for attempt := 0; ; attempt++ {
		res, err := r.m.resolver.Resolve(ctx, r.m.session, ladder, r.m.cfg.PerLocatorTimeout)
		if err == nil {
			if !res.Found {
				r.log.Info("Step found no usable element.", zap.String("step", name), zap.Strings("tried", ladder.Descriptions()))
				return false, nil
			}
			err = act(ctx, res.Handle)
			if err == nil {
				r.log.Debug("Step completed.", zap.String("step", name), zap.String("strategy", res.Strategy))
				return true, nil
			}
		}

		if !schemas.IsTransientUI(err) || attempt >= r.m.cfg.TransientRetryBudget {
			return false, fmt.Errorf("%s: %w", name, err)
		}
		r.log.Warn("Interstitial during step; dismissing and retrying.", zap.String("step", name), zap.Error(err))
		if derr := r.m.session.DismissInterstitial(ctx); derr != nil {
			return false, fmt.Errorf("%s: dismiss interstitial: %w", name, derr)
		}
	}
}

func (r *run) sent(ctx context.Context) verdict {
	if r.m.settler != nil {
		if err := r.m.settler.Settle(ctx); err != nil {
			r.log.Debug("Settle wait interrupted.", zap.Error(err))
		}
	}
	return verdict{kind: schemas.OutcomeSent}
}

func (r *run) cleanup(ctx context.Context) {
	r.enter(StateCleanup)
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.m.cfg.CleanupTimeout)
	defer cancel()
	if err := r.m.session.CloseConversation(cctx); err != nil {
		r.log.Error("Failed to close conversation view.", zap.Error(err))
	}
}

func classify(v verdict) schemas.Outcome {
	switch v.kind {
	case schemas.OutcomeSent:
		return schemas.Sent()
	case schemas.OutcomeInvalidNumber:
		return schemas.InvalidNumber()
	case schemas.OutcomeSendFailed:
		return schemas.SendFailed(v.reason)
	default:
		reason := v.reason
		if v.err != nil {
			reason = v.err.Error()
		}
		if reason == "" {
			reason = "unclassified failure"
		}
		return schemas.Failure(reason)
	}
}
