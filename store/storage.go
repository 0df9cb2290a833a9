package store

// storage is the sorted key-value layer under Store. Buckets are addressed by
// a root name and an optional nested name; Store keeps objects in root
// buckets and index rows in nested ones.
type storage interface {
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	// Bucket returns nil when the bucket does not exist. sub is "" for the
	// root bucket itself.
	Bucket(name, sub string) storageBucket

	// CreateBucket creates the root bucket and, when sub is non-empty, the
	// nested one, as needed.
	CreateBucket(name, sub string) (storageBucket, error)

	Commit() error

	// Rollback is a no-op on a finished tx.
	Rollback() error
}

type storageBucket interface {
	// Get returns nil for a missing key. The result is valid until the tx
	// ends and must not be modified.
	Get(key []byte) []byte
	Put(key, value []byte) error
	// Delete of a missing key is not an error.
	Delete(key []byte) error
	Cursor() storageCursor
}

// storageCursor walks a bucket in key order. All methods return a nil key
// past the end.
type storageCursor interface {
	First() (key, value []byte)
	// Seek positions at the first key >= seek.
	Seek(seek []byte) (key, value []byte)
	Next() (key, value []byte)
}
