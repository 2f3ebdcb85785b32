// Package cart holds the shopping cart: its line items, the sanitizer that
// turns untrusted data into line items, the persistence adapter and the
// Store that owns the in-memory cart.
//
// # Store
//
// Store is the only writer of the cart. Each mutation builds a new slice,
// swaps it in, saves it through the Persister and then calls every
// subscriber:
//
//	AddItem / RemoveItem / UpdateItemQuantity / ClearCart / SetCart / ApplyStock
//	      ↓
//	validate + clamp → new []LineItem → Persister.Save → subscribers
//
// A slice returned by Snapshot is never modified afterwards, so comparing
// snapshots (or the version returned by State) tells a reader whether
// anything changed. Mutations that would not change the cart commit
// nothing: no save, no notification.
//
// Business rules enforced at mutation time:
//
//   - at most one line item per id
//   - at most MaxItems distinct items; AddItem reports AddCartFull instead
//   - 1 <= quantity <= stock; the stock value is a client-side hint only,
//     final availability is checked at checkout
//
// Invalid arguments (zero quantities, unknown ids, non-array SetCart input)
// are ignored rather than reported as errors.
//
// # Persistence
//
// Adapter stores the cart as a JSON array under a single key of a
// storage.Slot. Load never fails: missing data is an empty cart, corrupt
// data is deleted, and individual malformed entries are dropped by
// Sanitize. Save logs write failures, including quota errors, and leaves the
// in-memory cart untouched.
//
// # Other processes
//
// When Options.Changes is set the store follows writes made by other kleis
// processes sharing the slot. On a change to its key it reloads through the
// Persister and commits the result without saving it again, but only when
// the reloaded ids or quantities differ (see Equal). Between processes the
// last write wins.
package cart
