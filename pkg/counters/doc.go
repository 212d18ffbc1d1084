// Package counters stores per-session analytics counters.
//
// Each session id maps to an Entry holding a view counter, an event counter
// and the unix time of its last modification. Counters only move forward:
// the single mutation path is Increment, which is linearizable per session id
// and returns the updated Entry so callers always observe their own increment.
//
// Entries are created explicitly with Create or lazily with RestoreIfAbsent,
// and are evicted by a background sweep once they have been idle for longer
// than Config.SessionMaxAge.
//
// Two implementations ship with the package:
//
//   - MemoryStore keeps entries in a sharded in-memory map. Each shard has its
//     own lock so unrelated sessions never serialize on a global mutex.
//   - RedisStore keeps each entry in a redis hash under
//     "<namespace>:<session id>" and uses lua scripts for atomic updates.
//
// # Usage
//
//	store := counters.NewMemoryStore(counters.DefaultConfig())
//	defer store.Close()
//
//	if _, err := store.RestoreIfAbsent(ctx, sid); err != nil {
//	    return err
//	}
//	entry, err := store.Increment(ctx, sid, counters.View)
//
// # Errors
//
//   - ErrNotFound: no entry for the session id
//   - ErrInvalidSessionID: empty session id
//   - ErrInvalidKind: unknown counter kind
package counters
