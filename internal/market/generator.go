package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"microtrader/types"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Company describes one simulated listing: the starting price, the walk
// amplitude and how often a new quote is produced.
type Company struct {
	Name      string
	Symbol    string
	Price     decimal.Decimal
	Variation int64
	Period    time.Duration
	Volume    int64
}

// Generator produces a continuous random-walk quote stream for a set of
// companies, one loop per company, publishing every quote on the hub.
// The walk is deliberately unrealistic; it only has to keep the agents busy.
type Generator struct {
	companies []Company
	hub       *Hub
	log       zerolog.Logger
	seed      int64
}

func NewGenerator(hub *Hub, companies []Company, log zerolog.Logger) *Generator {
	return &Generator{
		companies: companies,
		hub:       hub,
		log:       log.With().Str("component", "quote_generator").Logger(),
		seed:      time.Now().UnixNano(),
	}
}

// Run starts one quote loop per company and blocks until ctx is cancelled and
// every loop has stopped.
func (g *Generator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i, company := range g.companies {
		wg.Add(1)
		go func(company Company, seed int64) {
			defer wg.Done()
			g.walk(ctx, company, seed)
		}(company, g.seed+int64(i))
	}
	wg.Wait()
}

// walk is the per-company quote loop. State mirrors a drifting company value
// with bid and ask jittering around it; all three are floored at 1 so prices
// never go to zero or negative.
func (g *Generator) walk(ctx context.Context, company Company, seed int64) {
	rnd := rand.New(rand.NewSource(seed))

	value := company.Price
	ask := value.Add(jitter(rnd, company.Variation/2))
	bid := value.Add(jitter(rnd, company.Variation/2))
	share := company.Volume / 2

	g.log.Info().
		Str("symbol", company.Symbol).
		Str("price", company.Price.String()).
		Dur("period", company.Period).
		Msg("company quote loop started")

	ticker := time.NewTicker(company.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.log.Info().Str("symbol", company.Symbol).Msg("company quote loop stopped")
			return
		case <-ticker.C:
			value, bid, ask, share = nextTick(rnd, company, value, share)
			g.hub.Publish(types.Quote{
				Exchange:  "vert.x stock exchange",
				Symbol:    company.Symbol,
				Name:      company.Name,
				Bid:       bid,
				Ask:       ask,
				Open:      company.Price,
				Volume:    company.Volume,
				Shares:    share,
				Timestamp: time.Now(),
			})
		}
	}
}

// nextTick advances the walk by one step.
func nextTick(rnd *rand.Rand, company Company, value decimal.Decimal, share int64) (newValue, bid, ask decimal.Decimal, newShare int64) {
	if rnd.Intn(2) == 0 {
		value = value.Add(jitter(rnd, company.Variation))
		ask = value.Add(jitter(rnd, company.Variation/2))
		bid = value.Add(jitter(rnd, company.Variation/2))
	} else {
		value = value.Sub(jitter(rnd, company.Variation))
		ask = value.Sub(jitter(rnd, company.Variation/2))
		bid = value.Sub(jitter(rnd, company.Variation/2))
	}

	value = floorAtOne(value)
	ask = floorAtOne(ask)
	bid = floorAtOne(bid)

	// Occasionally drift the number of shares available on the market.
	if rnd.Intn(2) == 0 {
		drift := int64(rnd.Intn(100))
		if share+drift < company.Volume {
			share += drift
		}
	}
	return value, bid, ask, share
}

func jitter(rnd *rand.Rand, bound int64) decimal.Decimal {
	if bound <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(rnd.Int63n(bound))
}

var one = decimal.NewFromInt(1)

func floorAtOne(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(one) {
		return one
	}
	return d
}
