// Package cache keeps recently read blocks of survey tiles in memory.
//
// Tiles on remote stores are read in fixed-size blocks; neighbouring targets
// usually hit the same tile rows, so caching the blocks saves range requests.
// ShardedLRUBlockCache spreads keys over independent LRU shards to keep lock
// contention low when many stitch workers read at once. Memory held by the
// cache is charged against a resource.Controller when one is given; Set
// never blocks, so a controller shared with blocking acquirers should
// instead reserve the full capacity up front and pass nil here.
package cache
