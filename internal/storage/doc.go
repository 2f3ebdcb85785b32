// Package storage provides the durable key/value slots the cart is persisted
// to, and the change notifications that keep several kleis processes in
// step.
//
// # Slots
//
// A Slot holds whole serialized values under string keys. Three backends
// exist:
//
//   - FileSlot: one JSON file per key in ~/.local/share/kleis. Writes go to
//     a temp file that is renamed into place.
//   - RedisSlot: keys in a Redis database, shared by every process pointed
//     at the same server.
//   - MemorySlot: handles on an in-process MemoryBus, used by tests and by
//     the "memory" backend.
//
// Every backend enforces a byte quota (DefaultMaxBytes unless configured)
// and returns ErrQuotaExceeded when a value is too large, the same failure a
// browser raises when local storage is full.
//
// # External changes
//
// Each slot also implements Watcher. OnExternalChange reports the key of a
// value that was written by someone else:
//
//	FileSlot:   polls the directory and compares contents against the last
//	            value this slot read or wrote
//	RedisSlot:  Set/Delete publish {origin, key} on a pub/sub channel; a
//	            slot ignores envelopes carrying its own origin
//	MemorySlot: the bus announces writes to every other handle
//
// Notifications are asynchronous and carry only the key. Consumers reload
// the value themselves. There is no ordering guarantee between processes:
// the last write to the slot wins.
package storage
