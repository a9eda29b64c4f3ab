package blockchain

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"hash"
	"strconv"

	"github.com/dgraph-io/badger"
	"github.com/gologme/log"
	abci "github.com/tendermint/tendermint/abci/types"

	"github.com/gregorybednov/bountychain/account"
	"github.com/gregorybednov/bountychain/fault"
	"github.com/gregorybednov/bountychain/kv"
	"github.com/gregorybednov/bountychain/ledger"
	"github.com/gregorybednov/bountychain/metrics"
)

// Codespace is reported with every failed ABCI response.
const Codespace = "bounty"

const appVersion = "0.1"

var (
	heightKey    = []byte("meta:height")
	appHashKey   = []byte("meta:app_hash")
	blockTimeKey = []byte("meta:block_time")
)

// Room kept in every block batch for the metadata Commit writes.
const (
	commitReserveCount = 8
	commitReserveSize  = 1 << 10
)

type BountyApp struct {
	db           *badger.DB
	logger       *log.Logger
	metrics      *metrics.Collector
	currentBatch *badger.Txn
	batch        *kv.Txn

	height    int64
	appHash   []byte
	blockTime int64
	hasher    hash.Hash

	// last committed block, as seen by Info and Query
	lastHeight    int64
	lastBlockTime int64
}

var _ abci.Application = (*BountyApp)(nil)

// NewBountyApp restores the last committed height, block time and app hash
// from db. collector may be nil.
func NewBountyApp(db *badger.DB, logger *log.Logger, collector *metrics.Collector) (*BountyApp, error) {
	app := &BountyApp{db: db, logger: logger, metrics: collector}
	err := db.View(func(txn *badger.Txn) error {
		st := kv.NewTxn(txn)
		var err error
		if app.lastHeight, err = getInt(st, heightKey); err != nil {
			return err
		}
		if app.lastBlockTime, err = getInt(st, blockTimeKey); err != nil {
			return err
		}
		app.appHash, err = st.Get(appHashKey)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	app.height = app.lastHeight
	app.blockTime = app.lastBlockTime
	return app, nil
}

func getInt(st kv.Store, key []byte) (int64, error) {
	v, err := st.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(v), 10, 64)
}

func putInt(st kv.Store, key []byte, n int64) error {
	return st.Set(key, []byte(strconv.FormatInt(n, 10)))
}

// openBatch starts the write transaction for the next block.
func (app *BountyApp) openBatch() {
	if app.currentBatch != nil {
		app.currentBatch.Discard()
	}
	app.currentBatch = app.db.NewTransaction(true)
	app.batch = kv.NewBlockTxn(app.db, app.currentBatch, commitReserveCount, commitReserveSize)
}

func (app *BountyApp) Info(req abci.RequestInfo) abci.ResponseInfo {
	return abci.ResponseInfo{
		Data:             "bountychain",
		Version:          appVersion,
		LastBlockHeight:  app.lastHeight,
		LastBlockAppHash: app.appHash,
	}
}

func (app *BountyApp) SetOption(req abci.RequestSetOption) abci.ResponseSetOption {
	return abci.ResponseSetOption{}
}

func (app *BountyApp) InitChain(req abci.RequestInitChain) abci.ResponseInitChain {
	state, err := ParseAppState(req.AppStateBytes)
	if err != nil {
		app.logger.Errorf("InitChain: %v", err)
		panic(err)
	}
	txn := app.db.NewTransaction(true)
	defer txn.Discard()
	err = applyGenesis(kv.NewTxn(txn), state)
	if errors.Is(err, fault.ErrAlreadyGenesis) {
		// crashed between InitChain and the first commit
		app.logger.Warnln("Genesis already applied, skipping")
		return abci.ResponseInitChain{}
	}
	if err != nil {
		app.logger.Errorf("InitChain: %v", err)
		panic(err)
	}
	if err := txn.Commit(); err != nil {
		panic(err)
	}
	app.logger.Infof("Genesis applied: owner %s, %d token(s)", state.Owner, len(state.Tokens))
	return abci.ResponseInitChain{}
}

func (app *BountyApp) CheckTx(req abci.RequestCheckTx) abci.ResponseCheckTx {
	tx, err := decodeTx(req.Tx)
	if err == nil {
		err = app.db.View(func(txn *badger.Txn) error {
			next, err := getNonce(kv.NewTxn(txn), tx.Caller)
			if err != nil {
				return err
			}
			// later nonces may wait in the mempool behind earlier ones
			if tx.Nonce < next {
				return nonceError(tx.Nonce, next)
			}
			return nil
		})
	}
	if err != nil {
		return abci.ResponseCheckTx{Code: resultCode(err), Codespace: Codespace, Log: err.Error()}
	}
	return abci.ResponseCheckTx{Code: fault.CodeOK, GasWanted: 1}
}

func (app *BountyApp) BeginBlock(req abci.RequestBeginBlock) abci.ResponseBeginBlock {
	app.openBatch()
	app.height = req.Header.Height
	app.blockTime = req.Header.Time.Unix()

	app.hasher = sha256.New()
	app.hasher.Write(app.appHash)
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], uint64(req.Header.Height))
	app.hasher.Write(h[:])
	return abci.ResponseBeginBlock{}
}

func (app *BountyApp) DeliverTx(req abci.RequestDeliverTx) abci.ResponseDeliverTx {
	if app.currentBatch == nil {
		app.openBatch()
	}
	if app.hasher == nil {
		app.hasher = sha256.New()
		app.hasher.Write(app.appHash)
	}

	txType := "invalid"
	data, events, err := app.deliver(req.Tx, &txType)
	code := resultCode(err)

	sum := sha256.Sum256(req.Tx)
	app.hasher.Write(sum[:])
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], code)
	app.hasher.Write(c[:])

	if app.metrics != nil {
		app.metrics.TxDelivered(txType, strconv.FormatUint(uint64(code), 10))
	}
	if err != nil {
		app.logger.Warnf("DeliverTx %s rejected: %v", txType, err)
		return abci.ResponseDeliverTx{Code: code, Codespace: Codespace, Log: err.Error()}
	}
	if app.metrics != nil {
		for _, e := range events {
			app.metrics.Observe(e)
		}
	}
	return abci.ResponseDeliverTx{Code: fault.CodeOK, Data: data, Events: toABCIEvents(events)}
}

// deliver runs one tx against the block batch. The operation's writes and
// the nonce bump reach the batch together or not at all. A failed operation
// still uses up its nonce, unless the batch has no room even for that.
func (app *BountyApp) deliver(raw []byte, txType *string) ([]byte, []ledger.Event, error) {
	tx, err := decodeTx(raw)
	if err != nil {
		return nil, nil, err
	}
	*txType = tx.Type

	next, err := getNonce(app.batch, tx.Caller)
	if err != nil {
		return nil, nil, err
	}
	if tx.Nonce != next {
		return nil, nil, nonceError(tx.Nonce, next)
	}

	cache := kv.NewCache(app.batch)
	data, events, err := execute(cache, ledger.Env{Caller: tx.Caller, Now: app.blockTime}, tx)
	if err == nil {
		if err = setNonce(cache, tx.Caller, next+1); err == nil {
			err = cache.Write()
		}
	}
	if err != nil {
		cache.Discard()
		if nerr := setNonce(app.batch, tx.Caller, next+1); nerr != nil {
			return nil, nil, nerr
		}
		return nil, nil, err
	}
	return data, events, nil
}

func (app *BountyApp) EndBlock(req abci.RequestEndBlock) abci.ResponseEndBlock {
	app.height = req.Height
	return abci.ResponseEndBlock{}
}

func (app *BountyApp) Commit() abci.ResponseCommit {
	if app.currentBatch == nil {
		app.openBatch()
	}
	if app.hasher != nil {
		app.appHash = app.hasher.Sum(nil)
	}

	// the metadata goes into the room the block batch kept aside
	store := kv.NewTxn(app.currentBatch)
	err := putInt(store, heightKey, app.height)
	if err == nil {
		err = putInt(store, blockTimeKey, app.blockTime)
	}
	if err == nil {
		err = store.Set(appHashKey, app.appHash)
	}
	if err == nil {
		err = app.currentBatch.Commit()
	} else {
		app.currentBatch.Discard()
	}
	if err != nil {
		// the block is final in consensus; a node that cannot persist it
		// must not go on
		app.logger.Errorf("Commit error at height %d: %v", app.height, err)
		panic(err)
	}
	app.currentBatch = nil
	app.batch = nil
	app.hasher = nil
	app.lastHeight = app.height
	app.lastBlockTime = app.blockTime

	app.logger.Debugf("Committed height %d, app hash %X", app.height, app.appHash)
	if app.metrics != nil {
		app.metrics.Committed(app.height)
	}
	return abci.ResponseCommit{Data: app.appHash}
}

func (app *BountyApp) ListSnapshots(req abci.RequestListSnapshots) abci.ResponseListSnapshots {
	return abci.ResponseListSnapshots{}
}

func (app *BountyApp) OfferSnapshot(req abci.RequestOfferSnapshot) abci.ResponseOfferSnapshot {
	return abci.ResponseOfferSnapshot{Result: abci.ResponseOfferSnapshot_REJECT}
}

func (app *BountyApp) LoadSnapshotChunk(req abci.RequestLoadSnapshotChunk) abci.ResponseLoadSnapshotChunk {
	return abci.ResponseLoadSnapshotChunk{}
}

func (app *BountyApp) ApplySnapshotChunk(req abci.RequestApplySnapshotChunk) abci.ResponseApplySnapshotChunk {
	return abci.ResponseApplySnapshotChunk{Result: abci.ResponseApplySnapshotChunk_ACCEPT}
}

func toABCIEvents(events []ledger.Event) []abci.Event {
	out := make([]abci.Event, 0, len(events))
	for _, e := range events {
		attrs := make([]abci.EventAttribute, 0, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs = append(attrs, abci.EventAttribute{Key: []byte(a.Key), Value: []byte(a.Value), Index: true})
		}
		out = append(out, abci.Event{Type: e.Type, Attributes: attrs})
	}
	return out
}

func nonceKey(addr account.Address) []byte {
	return []byte("nonce:" + addr.String())
}

func getNonce(st kv.Store, addr account.Address) (uint64, error) {
	v, err := st.Get(nonceKey(addr))
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(v), 10, 64)
}

func setNonce(st kv.Store, addr account.Address, n uint64) error {
	return st.Set(nonceKey(addr), []byte(strconv.FormatUint(n, 10)))
}
