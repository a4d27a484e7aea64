// Command diiiscod is the node daemon: it wires the peer network, the
// quote auction and session workflow, the ledger/model collaborators,
// and the HTTP façade together, then blocks until an interrupt triggers
// the ordered shutdown in §5 (HTTP, timers, topics, network).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/Diiisco-Inc/diiisco-node/internal/auction"
	"github.com/Diiisco-Inc/diiisco-node/internal/config"
	"github.com/Diiisco-Inc/diiisco-node/internal/directproto"
	"github.com/Diiisco-Inc/diiisco-node/internal/facade"
	"github.com/Diiisco-Inc/diiisco-node/internal/identity"
	"github.com/Diiisco-Inc/diiisco-node/internal/ledger"
	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
	"github.com/Diiisco-Inc/diiisco-node/internal/model"
	"github.com/Diiisco-Inc/diiisco-node/internal/p2pnet"
	"github.com/Diiisco-Inc/diiisco-node/internal/processor"
	"github.com/Diiisco-Inc/diiisco-node/internal/pubsubbus"
	"github.com/Diiisco-Inc/diiisco-node/internal/reconnect"
	"github.com/Diiisco-Inc/diiisco-node/internal/rendezvous"
	"github.com/Diiisco-Inc/diiisco-node/internal/router"
	"github.com/Diiisco-Inc/diiisco-node/internal/session"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

var log = logctx.Logger(logctx.SubsystemDaemon)

// hostDialer adapts *p2pnet.Host to reconnect.Dialer, translating
// p2pnet.Connection to reconnect's own Connection so reconnect stays
// importable without p2pnet.
type hostDialer struct {
	host *p2pnet.Host
}

func (d *hostDialer) Dial(ctx context.Context, target string) (peer.ID, error) {
	return d.host.Dial(ctx, target)
}

func (d *hostDialer) DialBootstrap(ctx context.Context) int {
	return d.host.DialBootstrap(ctx)
}

func (d *hostDialer) Connections() []reconnect.Connection {
	conns := d.host.Connections()
	out := make([]reconnect.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, reconnect.Connection{Peer: c.Peer})
	}
	return out
}

// daemonMain is the true entry point; main defers to it so top-level
// defers still run on a graceful return.
func daemonMain() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	logctx.SetLevel(log, cfg.LogLevel)
	log.Infof("starting diiiscod")

	priv, err := identity.LoadOrCreate(cfg.IdentityPath)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	acct, err := ledger.AccountFromMnemonic(cfg.Algorand.Mnemonic)
	if err != nil {
		return fmt.Errorf("derive ledger account: %w", err)
	}
	if acct.Address() != cfg.Algorand.Addr {
		return fmt.Errorf(
			"configured algorand.addr %s does not match the address derived from algorand.mnemonic (%s)",
			cfg.Algorand.Addr, acct.Address(),
		)
	}

	algodURL := fmt.Sprintf("%s:%d", cfg.Algorand.Client.Host, cfg.Algorand.Client.Port)
	ledgerClient := ledger.NewAlgodClient(algodURL, acct, 10*time.Second)

	modelClient := model.NewHTTPClient(cfg.Models.BaseURL, cfg.Models.APIKey, 30*time.Second)

	servedModels := map[string]bool{}
	if cfg.Models.Enabled {
		startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		models, err := modelClient.GetModels(startupCtx)
		cancel()
		if err != nil {
			log.Warnf("could not list local models at startup, serving none until retried: %v", err)
		}
		for _, m := range models {
			servedModels[m.ID] = true
		}
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host, err := p2pnet.New(p2pnet.Config{
		ListenAddrs:           []string{fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.Node.Port)},
		Bootstrap:             cfg.Bootstrap,
		MinConnections:        cfg.Node.MinConnections,
		MaxConnections:        cfg.Node.MaxConnections,
		EnableRelayServer:     cfg.Relay.EnableRelayServer,
		EnableRelayClient:     cfg.Relay.EnableRelayClient,
		EnableDCUtR:           cfg.Relay.EnableDCUtR,
		MaxRelayedConnections: cfg.Relay.MaxRelayedConnections,
	}, priv, ledgerClient)
	if err != nil {
		return fmt.Errorf("build peer network: %w", err)
	}
	if err := host.Start(rootCtx); err != nil {
		return fmt.Errorf("start peer network: %w", err)
	}
	log.Infof("node id %s listening on %v", host.ID(), host.Listen())

	if _, err := host.StartMDNS(); err != nil {
		log.Warnf("local discovery unavailable: %v", err)
	}
	if n := host.DialBootstrap(rootCtx); n > 0 {
		log.Infof("connected to %d bootstrap peers", n)
	}

	bus, err := pubsubbus.New(rootCtx, host.Libp2pHost(), pubsubbus.DefaultTopic)
	if err != nil {
		return fmt.Errorf("join pubsub topic: %w", err)
	}

	rz := rendezvous.New()
	sessions := session.New()
	accum := model.NewAccumulator(cfg.QuoteEngine.WaitTime, rz)

	auctionEngine, err := auction.New(auction.Config{
		WaitTime:        cfg.QuoteEngine.WaitTime,
		SelectionPolicy: cfg.QuoteEngine.QuoteSelectionFunction,
		AssetID:         cfg.Algorand.ProtocolAssetID,
	}, ledgerClient, rz)
	if err != nil {
		return fmt.Errorf("build auction engine: %w", err)
	}

	var direct *directproto.Protocol
	if cfg.DirectMessaging.Enabled {
		direct = directproto.New(
			host,
			protocol.ID(cfg.DirectMessaging.Protocol),
			int(cfg.DirectMessaging.MaxMessageSize),
			cfg.DirectMessaging.Timeout,
		)
	}

	msgRouter := router.New(router.Config{
		DirectMessagingEnabled: cfg.DirectMessaging.Enabled,
		FallbackToGossipsub:    cfg.DirectMessaging.FallbackToGossipsub,
	}, direct, bus)

	proc := processor.New(processor.Config{
		ProtocolAssetID:  cfg.Algorand.ProtocolAssetID,
		ChargePerMillion: cfg.Models.ChargePer1MTokens,
		OwnWalletAddr:    acct.Address(),
		ServedModels:     servedModels,
	}, ledgerClient, modelClient, msgRouter, auctionEngine, sessions, accum, rz, host.ID())

	ingress := func(from peer.ID, data []byte) {
		env, err := wireproto.Unpack(data)
		if err != nil {
			log.Errorf("discarding malformed message from %s: %v", from, err)
			return
		}
		if err := proc.Process(rootCtx, env, from); err != nil {
			log.Errorf("process %s from %s: %v", env.Role, from, err)
		}
	}
	bus.Start(rootCtx, ingress)
	if direct != nil {
		direct.RegisterHandler(ingress)
	}

	supervisor := reconnect.New(reconnect.Config{MinConnections: cfg.Node.MinConnections}, &hostDialer{host: host})
	supervisor.Start(rootCtx)

	events := host.Events()
	go func() {
		for {
			select {
			case <-rootCtx.Done():
				return
			case ev := <-events.Discovery:
				supervisor.OnDiscovery(ev.Peer, ev.Addrs)
			case ev := <-events.Connect:
				supervisor.OnConnect(ev.Peer)
			case ev := <-events.Disconnect:
				supervisor.OnDisconnect(ev.Peer)
			}
		}
	}()

	var httpFacade *facade.Facade
	if cfg.API.Enabled {
		httpFacade = facade.New(facade.Config{
			Port:              cfg.API.Port,
			BearerAuthEnabled: cfg.API.BearerAuthentication,
			Keys:              cfg.API.Keys,
			OwnWalletAddr:     acct.Address(),
			AuctionWaitTime:   cfg.QuoteEngine.WaitTime,
			MeshWaitTimeout:   cfg.DirectMessaging.Timeout,
			OuterDeadline:     cfg.QuoteEngine.WaitTime + cfg.DirectMessaging.Timeout + 30*time.Second,
		}, host, bus, msgRouter, rz, sessions, accum, ledgerClient)

		go func() {
			if err := httpFacade.Serve(); err != nil {
				log.Errorf("request façade stopped: %v", err)
			}
		}()
		httpFacade.MarkReady()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown
	log.Infof("shutdown signal received")

	runShutdown([]shutdownStep{
		{name: "http", fn: func() error {
			if httpFacade == nil {
				return nil
			}
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			return httpFacade.Stop(stopCtx)
		}},
		{name: "timers", fn: func() error {
			supervisor.Stop()
			auctionEngine.Stop()
			return nil
		}},
		{name: "topics", fn: bus.Close},
		{name: "network", fn: host.Stop},
	})

	log.Infof("shutdown complete")
	return nil
}

// shutdownStep is one named, awaitable stage of graceful shutdown.
type shutdownStep struct {
	name string
	fn   func() error
}

// runShutdown executes steps strictly in order. The daemon passes: stop
// accepting HTTP, cancel the supervisor and auction timers, unsubscribe
// topics, stop the peer network. The keep-alive loop is not stopped in
// the timers step; it ends with the peer network in the last step.
// A failing step is logged, never aborts the remaining steps —
// a stuck component must not prevent the rest of shutdown from running.
func runShutdown(steps []shutdownStep) {
	for _, s := range steps {
		if err := s.fn(); err != nil {
			log.Errorf("shutdown step %s: %v", s.name, err)
		}
	}
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := daemonMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
