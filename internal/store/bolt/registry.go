// Package bolt implements the factory's round registry on an embedded bbolt
// database. The registry survives restarts without the reporting database and
// is the factory's authoritative address book.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bbolt "go.etcd.io/bbolt"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

var roundsBucket = []byte("rounds")

// registryEntry is the stored JSON form of a round record.
type registryEntry struct {
	Address     string    `json:"address"`
	Operator    string    `json:"operator"`
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol"`
	StartBlock  uint64    `json:"startBlock"`
	EndBlock    uint64    `json:"endBlock"`
	TicketPrice string    `json:"ticketPrice"`
	BaseURI     string    `json:"baseUri"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Registry implements domain.RegistryStore with bbolt.
type Registry struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the registry database at path.
func Open(path string) (*Registry, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(roundsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}
	return &Registry{db: db}, nil
}

// Put records a deployed round keyed by its address.
func (r *Registry) Put(_ context.Context, rec domain.RoundRecord) error {
	entry := registryEntry{
		Address:     rec.Address.Hex(),
		Operator:    rec.Operator.Hex(),
		Name:        rec.Name,
		Symbol:      rec.Symbol,
		StartBlock:  rec.StartBlock,
		EndBlock:    rec.EndBlock,
		TicketPrice: rec.TicketPrice.String(),
		BaseURI:     rec.BaseURI,
		CreatedAt:   rec.CreatedAt,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("bolt: marshal round %s: %w", entry.Address, err)
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(roundsBucket).Put(rec.Address.Bytes(), data)
	})
	if err != nil {
		return fmt.Errorf("bolt: put round %s: %w", entry.Address, err)
	}
	return nil
}

// Has reports whether a round at addr was recorded.
func (r *Registry) Has(_ context.Context, addr common.Address) (bool, error) {
	var found bool
	err := r.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(roundsBucket).Get(addr.Bytes()) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("bolt: has round %s: %w", addr.Hex(), err)
	}
	return found, nil
}

// Addresses returns every recorded round address.
func (r *Registry) Addresses(_ context.Context) ([]common.Address, error) {
	var addrs []common.Address
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(roundsBucket).ForEach(func(k, _ []byte) error {
			addrs = append(addrs, common.BytesToAddress(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list rounds: %w", err)
	}
	return addrs, nil
}

// Get returns the recorded round at addr.
func (r *Registry) Get(_ context.Context, addr common.Address) (domain.RoundRecord, error) {
	var data []byte
	err := r.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(roundsBucket).Get(addr.Bytes()); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return domain.RoundRecord{}, fmt.Errorf("bolt: get round %s: %w", addr.Hex(), err)
	}
	if data == nil {
		return domain.RoundRecord{}, domain.ErrNotFound
	}

	var entry registryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.RoundRecord{}, fmt.Errorf("bolt: unmarshal round %s: %w", addr.Hex(), err)
	}

	price, ok := new(big.Int).SetString(entry.TicketPrice, 10)
	if !ok {
		return domain.RoundRecord{}, fmt.Errorf("bolt: bad ticket price %q", entry.TicketPrice)
	}
	return domain.RoundRecord{
		Address:     common.HexToAddress(entry.Address),
		Operator:    common.HexToAddress(entry.Operator),
		Name:        entry.Name,
		Symbol:      entry.Symbol,
		StartBlock:  entry.StartBlock,
		EndBlock:    entry.EndBlock,
		TicketPrice: price,
		BaseURI:     entry.BaseURI,
		CreatedAt:   entry.CreatedAt,
	}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

var _ domain.RegistryStore = (*Registry)(nil)
