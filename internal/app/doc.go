// Package app wires kleis together.
//
// Run is the composition root:
//
//	config.Load ─> logging.New ─> openBackend (file | redis | memory)
//	      │
//	      ├─> cart.NewAdapter(slot) ─> cart.NewStore(adapter, Changes: slot)
//	      ├─> catalog.NewClient
//	      ├─> StartStockPoller      refresh live stock in the background
//	      └─> ui.Run                Bubble Tea cart screen (blocks)
//
// # Stock poller
//
// Every poll interval (30s unless configured) the poller fetches live stock
// for each distinct product in the cart and hands the levels to
// Store.ApplyStock, which lowers quantities to what is available and drops
// items that sold out. Consecutive failures double the wait up to five
// minutes; a successful poll resets it. Products the catalog no longer knows
// keep their recorded stock.
//
// # Errors
//
// Configuration, logging and storage failures are returned from Run before
// the UI starts. Once running, catalog and persistence failures are logged
// and never stop the program.
package app
