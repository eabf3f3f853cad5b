package rpc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"

	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc"
	"github.com/rs/zerolog"

	"microtrader/internal/ledger"
)

// portfolioService adapts the ledger to the net/rpc calling convention.
type portfolioService struct {
	ledger *ledger.Ledger
}

func (p *portfolioService) Buy(args TradeArgs, reply *PortfolioReply) error {
	quote, err := quoteFromWire(args.Quote)
	if err != nil {
		return fmt.Errorf("%w: %s", ledger.InvalidQuoteErr, err)
	}
	view, err := p.ledger.Buy(args.Amount, quote)
	if err != nil {
		return err
	}
	*reply = viewToWire(view)
	return nil
}

func (p *portfolioService) Sell(args TradeArgs, reply *PortfolioReply) error {
	quote, err := quoteFromWire(args.Quote)
	if err != nil {
		return fmt.Errorf("%w: %s", ledger.InvalidQuoteErr, err)
	}
	view, err := p.ledger.Sell(args.Amount, quote)
	if err != nil {
		return err
	}
	*reply = viewToWire(view)
	return nil
}

func (p *portfolioService) Get(args Empty, reply *PortfolioReply) error {
	*reply = viewToWire(p.ledger.Snapshot())
	return nil
}

func (p *portfolioService) Evaluate(args Empty, reply *EvaluateReply) error {
	reply.Value = p.ledger.Evaluate().String()
	return nil
}

// Server accepts msgpack RPC connections and serves the portfolio
// service on each of them.
type Server struct {
	rpc      *rpc.Server
	log      zerolog.Logger
	listener net.Listener
}

func NewServer(book *ledger.Ledger, log zerolog.Logger) *Server {
	s := &Server{
		rpc: rpc.NewServer(),
		log: log.With().Str("component", "rpc").Logger(),
	}
	// Register cannot fail here: the service has the right shape.
	if err := s.rpc.RegisterName("Portfolio", &portfolioService{ledger: book}); err != nil {
		panic(err)
	}
	return s
}

// Serve accepts connections until the listener closes. It takes
// ownership of the listener.
func (s *Server) Serve(lis net.Listener) error {
	s.listener = lis
	s.log.Info().Str("addr", lis.Addr().String()).Msg("Starting RPC server")

	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.rpc.ServeCodec(msgpackrpc.NewServerCodec(conn))
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	s.log.Info().Msg("Shutting down RPC server")
	return s.listener.Close()
}
