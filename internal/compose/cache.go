package compose

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/tliron/commonlog"

	"kanso-verify/internal/report"
	"kanso-verify/internal/spec"
)

// Cache stores verdicts by content fingerprint. Only Verified and
// Falsified verdicts are stored; errors are always retried.
type Cache interface {
	Get(ctx context.Context, key string) (report.Verdict, bool, error)
	Put(ctx context.Context, key string, v report.Verdict) error
	Close() error
}

const cachePrefix = "verdict/"

// BadgerCache is a persistent Cache backed by BadgerDB.
type BadgerCache struct {
	db *badger.DB
}

// OpenCache opens or creates the cache directory.
func OpenCache(dir string) (*BadgerCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return openBadger(badger.DefaultOptions(dir))
}

// OpenMemoryCache returns a cache that lives as long as the process.
func OpenMemoryCache() (*BadgerCache, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (*BadgerCache, error) {
	opts = opts.WithLogger(&badgerLogger{log: commonlog.GetLogger("kanso.verify.cache")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open verdict cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Get(ctx context.Context, key string) (report.Verdict, bool, error) {
	var v report.Verdict
	if err := ctx.Err(); err != nil {
		return v, false, err
	}
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cachePrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (c *BadgerCache) Put(ctx context.Context, key string, v report.Verdict) error {
	if v.Kind == report.Error {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cachePrefix+key), data)
	})
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// badgerLogger routes BadgerDB's logging through commonlog. Badger's info
// output is demoted to debug.
type badgerLogger struct {
	log commonlog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warningf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(strings.TrimSpace(format), args...)
}

// fingerprint identifies a verification task by everything its verdict
// depends on: the lowered body after inlining, its contract, the contracts
// of the callees it relies on and the verifier settings.
func fingerprint(body string, fs *spec.FunctionSpec, summaries map[string]*spec.FunctionSpec, settings string) string {
	h := sha256.New()
	fmt.Fprintf(h, "settings\n%s\n", settings)
	fmt.Fprintf(h, "spec\n%s\n", fs)
	fmt.Fprintf(h, "body\n%s\n", body)

	names := make([]string, 0, len(summaries))
	for n := range summaries {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(h, "callee %s\n%s\n", n, summaries[n])
	}
	return hex.EncodeToString(h.Sum(nil))
}
