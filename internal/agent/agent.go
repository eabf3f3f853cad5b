package agent

import (
	"errors"
	"sync"

	"microtrader/internal/market"
	"microtrader/types"

	"github.com/rs/zerolog"
)

var NotReadyErr = errors.New("agent needs a feed, a portfolio handle and a policy before starting")

// State is the agent lifecycle. An agent is constructed AwaitingServices,
// becomes Ready once Start wires its feed subscription, alternates between
// Evaluating and Idle for every received quote, and ends Stopped.
type State string

const (
	StateAwaitingServices State = "AWAITING_SERVICES"
	StateReady            State = "READY"
	StateEvaluating       State = "EVALUATING"
	StateIdle             State = "IDLE"
	StateStopped          State = "STOPPED"
)

// Policy is the pluggable decision logic: given a quote and the current
// portfolio it returns a trade intent, or nil to skip this quote.
type Policy interface {
	Decide(quote types.Quote, view types.PortfolioView) *types.TradeIntent
}

// portfolioService is the slice of the ledger an agent trades against.
type portfolioService interface {
	Buy(amount int64, quote types.Quote) (types.PortfolioView, error)
	Sell(amount int64, quote types.Quote) (types.PortfolioView, error)
	Snapshot() types.PortfolioView
}

// Agent consumes quotes for one symbol and issues at most one buy or sell per
// quote. Agents never coordinate with each other; the ledger's atomicity is
// what makes concurrent agents safe.
type Agent struct {
	name      string
	symbol    string
	policy    Policy
	portfolio portfolioService
	feed      *market.Hub
	log       zerolog.Logger

	mu    sync.Mutex
	state State

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(name, symbol string, policy Policy, portfolio portfolioService, feed *market.Hub, log zerolog.Logger) *Agent {
	return &Agent{
		name:      name,
		symbol:    symbol,
		policy:    policy,
		portfolio: portfolio,
		feed:      feed,
		log:       log.With().Str("component", "agent").Str("agent", name).Logger(),
		state:     StateAwaitingServices,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the feed and launches the trading loop. It fails when
// any of the injected handles is missing.
func (a *Agent) Start() error {
	if a.feed == nil || a.portfolio == nil || a.policy == nil {
		return NotReadyErr
	}
	sub := a.feed.Subscribe(a.symbol)
	a.setState(StateReady)
	a.log.Info().Str("symbol", a.symbol).Msg("agent started")

	go a.run(sub)
	return nil
}

// Stop signals the trading loop to finish. The loop honors the signal between
// quote cycles only: an in-flight trade always completes first.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// Done is closed once the loop has fully exited.
func (a *Agent) Done() <-chan struct{} { return a.done }

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Agent) run(sub *market.Subscription) {
	defer close(a.done)
	defer a.setState(StateStopped)
	defer func() { sub.Close() }()

	for {
		select {
		case <-a.stop:
			a.log.Info().Msg("agent stopped")
			return
		case quote, ok := <-sub.Quotes():
			if !ok {
				// The hub dropped us for lagging. Treat it like a transient
				// feed outage: resubscribe and keep going.
				a.log.Warn().Msg("quote stream closed, resubscribing")
				sub = a.feed.Subscribe(a.symbol)
				continue
			}
			a.setState(StateEvaluating)
			a.handleQuote(quote)
			a.setState(StateIdle)
		}
	}
}

// handleQuote runs the policy and issues at most one trade. A rejected trade
// is logged and skipped; it never terminates the loop.
func (a *Agent) handleQuote(quote types.Quote) {
	intent := a.policy.Decide(quote, a.portfolio.Snapshot())
	if intent == nil {
		return
	}

	var err error
	switch intent.Side {
	case types.SideTypeBuy:
		_, err = a.portfolio.Buy(intent.Amount, intent.Quote)
	case types.SideTypeSell:
		_, err = a.portfolio.Sell(intent.Amount, intent.Quote)
	default:
		a.log.Error().Str("side", string(intent.Side)).Msg("policy produced an unknown side")
		return
	}

	if err != nil {
		a.log.Warn().Err(err).
			Str("side", string(intent.Side)).
			Int64("amount", intent.Amount).
			Str("symbol", intent.Symbol).
			Msg("trade rejected")
		return
	}
	a.log.Info().
		Str("side", string(intent.Side)).
		Int64("amount", intent.Amount).
		Str("symbol", intent.Symbol).
		Msg("trade committed")
}
