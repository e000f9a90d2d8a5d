// Package state tracks durable crawl progress for one locale.
//
// A CrawlState records every discovered node of the catalog hierarchy in
// discovery order, whether its record has been written, and the children it
// produced. Pending nodes are iterated breadth-first, and nodes discovered
// during iteration are yielded in the same pass.
//
// Snapshots are persisted through a Store. FileStore writes one JSON file per
// locale, replaced atomically and protected by a BLAKE2b checksum. MemoryStore
// satisfies the same contract for tests.
package state
