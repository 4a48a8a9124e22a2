package vault

import (
	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/buffer"
	"github.com/bankofchain/vaultd/internal/dripper"
	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/strategy"
	"github.com/bankofchain/vaultd/internal/token"
	"github.com/bankofchain/vaultd/internal/treasury"
)

// journalEntry is the write-ahead copy of the ledger taken at the start of
// every mutating operation. Strategy positions are in-process adapters, so
// they journal like the rest of the ledger: a redemption that divests the
// queue and then fails puts every drained position back.
type journalEntry struct {
	params    Params
	assetSet  map[string]bool
	assetList []string
	idle      map[string]decimal.Decimal
	entries   map[string]strategyEntry // impl pointers shared, records copied
	positions map[string]strategy.State
	queue     []string
	pending   map[string]model.PendingReport
	adjusting bool
	paused    bool

	token    token.State
	buffer   buffer.State
	dripper  dripper.State
	treasury treasury.State
}

func (v *Vault) journal() journalEntry {
	assetSet := make(map[string]bool, len(v.assetSet))
	for k := range v.assetSet {
		assetSet[k] = true
	}
	idle := make(map[string]decimal.Decimal, len(v.idle))
	for k, q := range v.idle {
		idle[k] = q
	}
	entries := make(map[string]strategyEntry, len(v.strategies))
	positions := make(map[string]strategy.State, len(v.strategies))
	for name, e := range v.strategies {
		entries[name] = *e
		positions[name] = e.impl.Snapshot()
	}
	pending := make(map[string]model.PendingReport, len(v.pending))
	for name, p := range v.pending {
		pending[name] = p
	}
	return journalEntry{
		params:    v.params,
		assetSet:  assetSet,
		assetList: append([]string(nil), v.assetList...),
		idle:      idle,
		entries:   entries,
		positions: positions,
		queue:     append([]string(nil), v.queue...),
		pending:   pending,
		adjusting: v.adjusting,
		paused:    v.paused,
		token:     v.token.Snapshot(),
		buffer:    v.buffer.Snapshot(),
		dripper:   v.dripper.Snapshot(),
		treasury:  v.treasury.Snapshot(),
	}
}

func (v *Vault) rollback(j journalEntry) {
	v.params = j.params
	v.assetSet = j.assetSet
	v.assetList = j.assetList
	v.idle = j.idle
	v.strategies = make(map[string]*strategyEntry, len(j.entries))
	for name, e := range j.entries {
		entry := e
		entry.impl.Restore(j.positions[name])
		v.strategies[name] = &entry
	}
	v.queue = j.queue
	v.pending = j.pending
	v.adjusting = j.adjusting
	v.paused = j.paused
	v.token.Restore(j.token)
	v.buffer.Restore(j.buffer)
	v.dripper.Restore(j.dripper)
	v.treasury.Restore(j.treasury)
}

// run executes op under the vault lock with write-ahead rollback.
func (v *Vault) run(op func() error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	pre := v.journal()
	if err := op(); err != nil {
		v.rollback(pre)
		return err
	}
	return nil
}
