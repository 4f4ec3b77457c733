package storage

// PrefixDB is a namespace inside a shared database. The keyring and the
// note store each get one over the wallet database.
//
// Keys passed in and handed back are relative to the namespace.
type PrefixDB struct {
	inner  BatchDB
	prefix []byte
}

var _ BatchDB = (*PrefixDB)(nil)

// NewPrefixDB returns the namespace prefix of inner. Nesting a PrefixDB
// concatenates the prefixes over the same underlying database.
func NewPrefixDB(inner BatchDB, prefix []byte) *PrefixDB {
	if outer, ok := inner.(*PrefixDB); ok {
		return &PrefixDB{inner: outer.inner, prefix: outer.key(prefix)}
	}
	return &PrefixDB{inner: inner, prefix: append([]byte{}, prefix...)}
}

// Prefix returns the absolute key prefix of the namespace.
func (p *PrefixDB) Prefix() []byte {
	return append([]byte{}, p.prefix...)
}

func (p *PrefixDB) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	return append(append(out, p.prefix...), k...)
}

func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.key(key))
}

func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.key(key), value)
}

func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.key(key))
}

func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.key(key))
}

// ForEach iterates the namespace keys starting with prefix. fn sees keys
// without the namespace prefix.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// Close does nothing. The shared database is closed by its owner.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns a batch of the underlying database scoped to the namespace.
func (p *PrefixDB) NewBatch() Batch {
	return &prefixBatch{ns: p, inner: p.inner.NewBatch()}
}

type prefixBatch struct {
	ns    *PrefixDB
	inner Batch
}

func (b *prefixBatch) Put(key, value []byte) error {
	return b.inner.Put(b.ns.key(key), value)
}

func (b *prefixBatch) Delete(key []byte) error {
	return b.inner.Delete(b.ns.key(key))
}

func (b *prefixBatch) Commit() error {
	return b.inner.Commit()
}
