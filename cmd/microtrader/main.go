package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"microtrader/internal/agent"
	"microtrader/internal/audit"
	"microtrader/internal/config"
	"microtrader/internal/events"
	"microtrader/internal/ledger"
	"microtrader/internal/logger"
	"microtrader/internal/market"
	"microtrader/internal/rpc"
	"microtrader/internal/server"
	"microtrader/strategies/compulsive"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Environment overrides may live in a local .env file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	log.Info().Str("config", *configPath).Msg("Starting microtrader")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	marketHub := market.NewHub(log)
	eventHub := events.NewHub(log)
	book := ledger.New(cfg.InitialCash.Decimal, eventHub.Publish)

	// The ledger values the portfolio at the last quote it saw.
	go observeQuotes(ctx, book, marketHub, cfg.Symbols())

	var journal *audit.Journal
	if cfg.Audit.DSN != "" {
		db, err := audit.NewDatabase(ctx, cfg.Audit.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to the audit database")
		}
		defer db.Close()

		journal = audit.NewJournal(db, log)
		go journal.Run(ctx, eventHub.Subscribe())
	} else {
		log.Warn().Msg("AUDIT_DSN not set, trade auditing disabled")
	}

	generator := market.NewGenerator(marketHub, marketCompanies(cfg), log)
	go generator.Run(ctx)

	agents := startAgents(cfg, book, marketHub, log)

	srv := server.New(server.Config{
		Port:    cfg.HTTP.Port,
		Log:     log,
		Ledger:  book,
		Journal: journal,
		Market:  marketHub,
		Events:  eventHub,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	rpcServer := rpc.NewServer(book, log)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.RPC.Port))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open the RPC port")
	}
	go func() {
		if err := rpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("RPC server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	for _, a := range agents {
		a.Stop()
	}
	for _, a := range agents {
		<-a.Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shut down")
	}
	if err := rpcServer.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close the RPC listener")
	}

	cancel()
	log.Info().Msg("Stopped")
}

// observeQuotes keeps the ledger's view of the market current. A closed
// channel means the hub dropped the subscriber for lagging, so it
// resubscribes and carries on.
func observeQuotes(ctx context.Context, book *ledger.Ledger, hub *market.Hub, symbols []string) {
	for {
		sub := hub.Subscribe(symbols...)
		dropped := false
		for !dropped {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case quote, ok := <-sub.Quotes():
				if !ok {
					dropped = true
					break
				}
				book.ObserveQuote(quote)
			}
		}
	}
}

func marketCompanies(cfg *config.Config) []market.Company {
	companies := make([]market.Company, 0, len(cfg.Companies))
	for _, c := range cfg.Companies {
		companies = append(companies, market.Company{
			Name:      c.Name,
			Symbol:    c.Symbol,
			Price:     c.Price.Decimal,
			Variation: c.Variation,
			Period:    c.Period(),
			Volume:    c.Volume,
		})
	}
	return companies
}

func startAgents(cfg *config.Config, book *ledger.Ledger, hub *market.Hub, log zerolog.Logger) []*agent.Agent {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	symbols := cfg.Symbols()

	agents := make([]*agent.Agent, 0, cfg.Traders.Count)
	for i := 0; i < cfg.Traders.Count; i++ {
		symbol := compulsive.PickSymbol(symbols, rnd)
		shares := cfg.Traders.Shares
		if shares <= 0 {
			shares = compulsive.PickShares(rnd)
		}

		name := fmt.Sprintf("trader-%d", i+1)
		policy := compulsive.New(symbol, shares, rand.New(rand.NewSource(rnd.Int63())))
		a := agent.New(name, symbol, policy, book, hub, log)
		if err := a.Start(); err != nil {
			log.Fatal().Err(err).Str("agent", name).Msg("Failed to start trading agent")
		}
		log.Info().Str("agent", name).Str("symbol", symbol).Int64("shares", shares).Msg("Trading agent started")
		agents = append(agents, a)
	}
	return agents
}
