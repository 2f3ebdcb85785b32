// Package ui is the kleis terminal interface, built on Bubble Tea.
//
// # CartHook
//
// CartHook is the binding between a cart.Store and the UI. It exposes the
// current items together with values derived from them (ItemCount,
// TotalPrice, GetItemByID, IsItemInCart), recomputed only when the store's
// commit version moves. The mutation methods forward to the store.
//
// A hook built with a nil store behaves as an empty, read-only cart. This is
// what headless renders see.
//
// Listen subscribes the hook to the store; WaitForChange turns the next
// commit into a CartChangedMsg for the Bubble Tea loop. Bursts of commits
// collapse into a single pending message, and the model re-issues
// WaitForChange after handling each one:
//
//	store commit → Subscribe callback → changed (buffered, cap 1)
//	      ↓
//	WaitForChange cmd → CartChangedMsg → Model.Update → WaitForChange
//
// Commits made by another kleis process arrive the same way once the store
// has reloaded them.
//
// # Cart screen
//
// Model renders the cart as a table (item, variant, unit price, quantity,
// stock status, line total) under a header carrying the item count and
// total. Keys are declared in keys.go with bubbles/key and rendered by
// bubbles/help; quantity edits and product lookups use bubbles/textinput.
// Quantities typed by the user go through cart.ParseQuantity, so "2.5"
// becomes 3 and "0" removes the item.
//
// The optional activity pane tails the kleis log file through logtail,
// showing cart analytics events and persistence warnings.
//
// Themes and the activity toggle are saved with prefs.
package ui
