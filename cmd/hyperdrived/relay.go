package main

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/delvtech/hyperdrive-sub010/pkg/api"
	"github.com/delvtech/hyperdrive-sub010/pkg/crypto"
	"github.com/delvtech/hyperdrive-sub010/pkg/matching"
	"github.com/delvtech/hyperdrive-sub010/pkg/storage"
)

// relay crosses gossiped intents. Incoming orders are tried against every
// resting order on the opposite side; whatever cannot settle rests until a
// counterparty arrives, the order expires, or its signer cancels.
type relay struct {
	engine *matching.Engine
	domain *crypto.EIP712Signer
	store  *storage.Store
	api    *api.Server
	log    *zap.SugaredLogger

	mu      sync.Mutex
	resting []*matching.OrderIntent
}

func newRelay(engine *matching.Engine, domain *crypto.EIP712Signer, store *storage.Store, apiServer *api.Server, log *zap.SugaredLogger) *relay {
	return &relay{
		engine: engine,
		domain: domain,
		store:  store,
		api:    apiServer,
		log:    log,
	}
}

func (r *relay) handleOrder(ctx context.Context, o *matching.OrderIntent) {
	hash, err := o.Hash(r.domain)
	if err != nil {
		r.log.Warnw("order_hash_failed", "err", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.orderDead(o) {
		r.log.Debugw("order_dropped", "hash", hash.Hex())
		return
	}

	keep := r.resting[:0]
	for i, res := range r.resting {
		if isLongSide(res.OrderType) == isLongSide(o.OrderType) {
			keep = append(keep, res)
			continue
		}

		long, short := o, res
		if !isLongSide(o.OrderType) {
			long, short = res, o
		}

		result, err := r.engine.MatchOrders(long, short)
		if err != nil {
			// Dead resting orders fall out of the book; everything else
			// just failed to cross this particular pair.
			if errors.Is(err, matching.ErrOrderCancelled) ||
				errors.Is(err, matching.ErrOrderFullyExecuted) ||
				errors.Is(err, matching.ErrExpiredOrder) {
				if r.orderDead(res) {
					continue
				}
			}
			keep = append(keep, res)
			continue
		}

		longHash, _ := long.Hash(r.domain)
		shortHash, _ := short.Hash(r.domain)
		r.log.Infow("gossip_match_settled",
			"long", longHash.Hex(), "short", shortHash.Hex(),
			"bonds", result.BondsFilled, "maturity", result.Maturity)
		r.persistFill(longHash)
		r.persistFill(shortHash)
		if r.api != nil {
			r.api.BroadcastFill(longHash, shortHash, result)
			r.api.BroadcastPool()
		}

		if !r.orderDead(res) {
			keep = append(keep, res)
		}
		if r.orderDead(o) {
			keep = append(keep, r.resting[i+1:]...)
			r.resting = keep
			return
		}
	}
	r.resting = keep

	if !r.orderDead(o) {
		r.resting = append(r.resting, o)
		r.log.Debugw("order_resting", "hash", hash.Hex(), "type", o.OrderType.String())
	}
}

func (r *relay) handleCancel(ctx context.Context, o *matching.OrderIntent) {
	hash, err := o.Hash(r.domain)
	if err != nil {
		r.log.Warnw("cancel_hash_failed", "err", err)
		return
	}
	if err := r.engine.Cancel(o); err != nil {
		r.log.Warnw("cancel_rejected", "hash", hash.Hex(), "err", err)
		return
	}
	if err := r.store.SetCancelled(hash); err != nil {
		r.log.Warnw("cancel_persist_failed", "hash", hash.Hex(), "err", err)
	}
}

// orderDead reports whether an order can never fill again.
func (r *relay) orderDead(o *matching.OrderIntent) bool {
	hash, err := o.Hash(r.domain)
	if err != nil {
		return true
	}
	if r.engine.Amounts().IsCancelled(hash) {
		return true
	}
	remaining, err := r.engine.Amounts().Remaining(o, hash)
	if err != nil {
		return true
	}
	return remaining.IsZero()
}

func (r *relay) persistFill(hash common.Hash) {
	bonds, funds := r.engine.Amounts().Used(hash)
	if err := r.store.SaveFill(hash, bonds, funds); err != nil {
		r.log.Warnw("fill_persist_failed", "err", err)
	}
}

func isLongSide(t matching.OrderType) bool {
	return t == matching.OpenLong || t == matching.CloseLong
}
