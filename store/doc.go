/*
Package store is a local record store for riakconv Objects, backed by Bolt or
kept in memory.

Objects live in buckets under string keys, like in Riak. Every write gets a
vector clock descending from the one it was given and the stored one, so
fetch-modify-store cycles keep their causal context; with
Options.RejectStaleVClock, writes based on an outdated clock are refused.
Deletes leave a tombstone behind.

Secondary indexes from Object.Indexes are kept in separate Bolt buckets, one
per index name and kind, with rows made of the order-preserving encoding of
the value followed by the object key. Each record remembers the rows written
for it, so replacing or deleting it removes stale rows.

Typed wraps a bucket and a riakconv.Converter for domain-level access.
*/
package store
