package devicestore

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/consent-lineage/consent-sync-service/domain"
)

type leveldbStore leveldb.DB

// OpenLevelDB opens (or creates) a leveldb-backed device store at path.
func OpenLevelDB(path string) (Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return Wrap(db), nil
}

// Wrap uses a leveldb.DB as a devicestore.Store, with synced writes.
func Wrap(db *leveldb.DB) Store {
	return (*leveldbStore)(db)
}

func (db *leveldbStore) Get(key []byte) ([]byte, error) {
	value, err := (*leveldb.DB)(db).Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return value, nil
}

func (db *leveldbStore) Put(key, value []byte) error {
	if err := (*leveldb.DB)(db).Put(key, value, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (db *leveldbStore) Close() error {
	return (*leveldb.DB)(db).Close()
}
