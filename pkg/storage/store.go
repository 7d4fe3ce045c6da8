package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/delvtech/hyperdrive-sub010/pkg/fixedpoint"
	"github.com/delvtech/hyperdrive-sub010/pkg/hyperdrive"
)

var ErrNotFound = errors.New("storage: not found")

// Store persists pool snapshots, checkpoints, and order-fill accounting in
// Pebble so a node can restart without losing fill history.
//
// Key schema:
//
//	st            → PoolState snapshot
//	cp:<time>     → Checkpoint
//	fill:<hash>   → cumulative order fill
//	cxl:<hash>    → cancellation marker
type Store struct {
	db *pebble.DB
}

func NewStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func kState() []byte               { return []byte("st") }
func kCheckpoint(t uint64) []byte  { return append([]byte("cp:"), timeKey(t)...) }
func kFill(h common.Hash) []byte   { return append([]byte("fill:"), h[:]...) }
func kCancel(h common.Hash) []byte { return append([]byte("cxl:"), h[:]...) }

// checkpointRecord is the wire form of a checkpoint; fixed-point values
// travel as big-endian 32-byte words.
type checkpointRecord struct {
	Time                 uint64
	VaultSharePrice      [32]byte
	LongOpenSharePrice   [32]byte
	MaturedLongProceeds  [32]byte
	MaturedShortProceeds [32]byte
}

type fillRecord struct {
	Bonds [32]byte
	Funds [32]byte
}

type stateRecord struct {
	ShareReserves                   [32]byte
	BondReserves                    [32]byte
	VaultSharePrice                 [32]byte
	LPTotalSupply                   [32]byte
	LongsOutstanding                [32]byte
	ShortsOutstanding               [32]byte
	WithdrawalSharesOutstanding     [32]byte
	WithdrawalSharesReadyToWithdraw [32]byte
	WithdrawalSharesProceeds        [32]byte
}

// SaveCheckpoint writes a checkpoint durably.
func (s *Store) SaveCheckpoint(cp hyperdrive.Checkpoint) error {
	val, err := encodeGob(checkpointRecord{
		Time:                 cp.Time,
		VaultSharePrice:      cp.VaultSharePrice.Bytes32(),
		LongOpenSharePrice:   cp.LongOpenSharePrice.Bytes32(),
		MaturedLongProceeds:  cp.MaturedLongProceeds.Bytes32(),
		MaturedShortProceeds: cp.MaturedShortProceeds.Bytes32(),
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return s.db.Set(kCheckpoint(cp.Time), val, pebble.Sync)
}

// GetCheckpoint loads the checkpoint stored for a time, or ErrNotFound.
func (s *Store) GetCheckpoint(t uint64) (hyperdrive.Checkpoint, error) {
	var rec checkpointRecord
	if err := s.get(kCheckpoint(t), &rec); err != nil {
		return hyperdrive.Checkpoint{}, err
	}
	return hyperdrive.Checkpoint{
		Time:                 rec.Time,
		VaultSharePrice:      fromWord(rec.VaultSharePrice),
		LongOpenSharePrice:   fromWord(rec.LongOpenSharePrice),
		MaturedLongProceeds:  fromWord(rec.MaturedLongProceeds),
		MaturedShortProceeds: fromWord(rec.MaturedShortProceeds),
	}, nil
}

// SaveFill records the cumulative amounts executed against an order hash.
func (s *Store) SaveFill(hash common.Hash, bonds, funds fixedpoint.FixedPoint) error {
	val, err := encodeGob(fillRecord{Bonds: bonds.Bytes32(), Funds: funds.Bytes32()})
	if err != nil {
		return fmt.Errorf("encode fill: %w", err)
	}
	return s.db.Set(kFill(hash), val, pebble.Sync)
}

// GetFill loads the cumulative fill for an order hash, or ErrNotFound.
func (s *Store) GetFill(hash common.Hash) (bonds, funds fixedpoint.FixedPoint, err error) {
	var rec fillRecord
	if err := s.get(kFill(hash), &rec); err != nil {
		return fixedpoint.FixedPoint{}, fixedpoint.FixedPoint{}, err
	}
	return fromWord(rec.Bonds), fromWord(rec.Funds), nil
}

// SetCancelled marks an order hash permanently cancelled.
func (s *Store) SetCancelled(hash common.Hash) error {
	return s.db.Set(kCancel(hash), []byte{1}, pebble.Sync)
}

// IsCancelled reports whether an order hash carries a cancellation marker.
func (s *Store) IsCancelled(hash common.Hash) (bool, error) {
	_, closer, err := s.db.Get(kCancel(hash))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

// SavePoolState snapshots the pool reserves and supplies.
func (s *Store) SavePoolState(st hyperdrive.PoolState) error {
	val, err := encodeGob(stateRecord{
		ShareReserves:                   st.ShareReserves.Bytes32(),
		BondReserves:                    st.BondReserves.Bytes32(),
		VaultSharePrice:                 st.VaultSharePrice.Bytes32(),
		LPTotalSupply:                   st.LPTotalSupply.Bytes32(),
		LongsOutstanding:                st.LongsOutstanding.Bytes32(),
		ShortsOutstanding:               st.ShortsOutstanding.Bytes32(),
		WithdrawalSharesOutstanding:     st.WithdrawalSharesOutstanding.Bytes32(),
		WithdrawalSharesReadyToWithdraw: st.WithdrawalSharesReadyToWithdraw.Bytes32(),
		WithdrawalSharesProceeds:        st.WithdrawalSharesProceeds.Bytes32(),
	})
	if err != nil {
		return fmt.Errorf("encode pool state: %w", err)
	}
	return s.db.Set(kState(), val, pebble.Sync)
}

// GetPoolState loads the last snapshot, or ErrNotFound.
func (s *Store) GetPoolState() (hyperdrive.PoolState, error) {
	var rec stateRecord
	if err := s.get(kState(), &rec); err != nil {
		return hyperdrive.PoolState{}, err
	}
	return hyperdrive.PoolState{
		ShareReserves:                   fromWord(rec.ShareReserves),
		BondReserves:                    fromWord(rec.BondReserves),
		VaultSharePrice:                 fromWord(rec.VaultSharePrice),
		LPTotalSupply:                   fromWord(rec.LPTotalSupply),
		LongsOutstanding:                fromWord(rec.LongsOutstanding),
		ShortsOutstanding:               fromWord(rec.ShortsOutstanding),
		WithdrawalSharesOutstanding:     fromWord(rec.WithdrawalSharesOutstanding),
		WithdrawalSharesReadyToWithdraw: fromWord(rec.WithdrawalSharesReadyToWithdraw),
		WithdrawalSharesProceeds:        fromWord(rec.WithdrawalSharesProceeds),
	}, nil
}

func (s *Store) get(key []byte, out any) error {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return decodeGob(val, out)
}
