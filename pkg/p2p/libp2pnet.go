package p2p

import (
	"context"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/matching"
)

const (
	topicOrders  = "hyperdrive-orders"
	topicCancels = "hyperdrive-cancels"
)

// Handlers receive gossiped intents. Receivers must validate before acting;
// gossip delivers whatever peers publish.
type Handlers struct {
	OnOrder  func(ctx context.Context, o *matching.OrderIntent)
	OnCancel func(ctx context.Context, o *matching.OrderIntent)
}

// Net gossips signed order intents and cancellations over libp2p pubsub, so
// any node can collect both sides of a match regardless of where the traders
// submitted them.
type Net struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	tOrders, tCancels     *pubsub.Topic
	subOrders, subCancels *pubsub.Subscription

	muH      sync.RWMutex
	handlers Handlers
}

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

func NewNet(ctx context.Context, cfg Config) (*Net, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	net := &Net{h: h, ps: ps, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if err := net.joinTopics(ctx); err != nil {
		return nil, err
	}
	go net.handleOrders(ctx)
	go net.handleCancels(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return net, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (n *Net) joinTopics(ctx context.Context) error {
	var err error
	if n.tOrders, err = n.ps.Join(topicOrders); err != nil {
		return err
	}
	if n.tCancels, err = n.ps.Join(topicCancels); err != nil {
		return err
	}
	if n.subOrders, err = n.tOrders.Subscribe(); err != nil {
		return err
	}
	if n.subCancels, err = n.tCancels.Subscribe(); err != nil {
		return err
	}
	return nil
}

func (n *Net) SetHandlers(h Handlers) { n.muH.Lock(); n.handlers = h; n.muH.Unlock() }

func (n *Net) Host() host.Host { return n.h }

func (n *Net) Close() error { return n.h.Close() }

// PublishOrder gossips a signed intent to the order topic.
func (n *Net) PublishOrder(ctx context.Context, o *matching.OrderIntent) error {
	data, err := gobEncode(toWire(o))
	if err != nil {
		return err
	}
	return n.tOrders.Publish(ctx, data)
}

// PublishCancel gossips a cancellation carrying the signed intent it voids.
func (n *Net) PublishCancel(ctx context.Context, o *matching.OrderIntent) error {
	data, err := gobEncode(CancelWire{Order: toWire(o)})
	if err != nil {
		return err
	}
	return n.tCancels.Publish(ctx, data)
}

func (n *Net) handleOrders(ctx context.Context) {
	for {
		msg, err := n.subOrders.Next(ctx)
		if err != nil {
			return
		}
		var w OrderWire
		if err := gobDecode(msg.Data, &w); err != nil {
			if n.log != nil {
				n.log.Warnw("bad_order_wire", "from", msg.ReceivedFrom.String(), "err", err)
			}
			continue
		}

		n.muH.RLock()
		h := n.handlers
		n.muH.RUnlock()
		if h.OnOrder != nil {
			h.OnOrder(ctx, fromWire(w))
		}
	}
}

func (n *Net) handleCancels(ctx context.Context) {
	for {
		msg, err := n.subCancels.Next(ctx)
		if err != nil {
			return
		}
		var w CancelWire
		if err := gobDecode(msg.Data, &w); err != nil {
			if n.log != nil {
				n.log.Warnw("bad_cancel_wire", "from", msg.ReceivedFrom.String(), "err", err)
			}
			continue
		}

		n.muH.RLock()
		h := n.handlers
		n.muH.RUnlock()
		if h.OnCancel != nil {
			h.OnCancel(ctx, fromWire(w.Order))
		}
	}
}
