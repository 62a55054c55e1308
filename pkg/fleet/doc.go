// Package fleet provides type-safe Go definitions and Redis schema patterns
// for the Warren task fleet backing store.
//
// # Overview
//
// A Warren fleet is a set of independently running worker services connected
// through a flat Redis record store. Producers write task records, workers
// consume them according to their declared binds, and the dashboard
// reconstructs queue and analysis views from the raw records on demand.
// This package is the single place where the store's keys, record formats
// and access operations are defined; every other component (aggregator,
// graph builder, dashboard, CLI) goes through the Client defined here.
//
// # Core concepts
//
// TaskRecords are stored as JSON strings. Each record carries its own
// lineage (parent and root task IDs) and a headers map whose "receiver"
// entry names the queue identity the task is routed to. Records without a
// receiver are unroutable and ignored by consumers of this store.
//
// Binds are declarative registrations: a service identity, the set of
// filters describing which task shapes it accepts, and static metadata.
// Output declarations are the mirror image: the shapes an identity may
// produce. Neither implies the other; both are stored in per-fleet hashes.
//
// Replica liveness is tracked with short-lived heartbeat keys. A consumer
// announces itself periodically and its replica is counted for as long as
// the key lives; a crashed consumer simply ages out.
//
// # Multi-instance support
//
// All Redis keys are namespaced by instance name so that multiple fleets
// can safely coexist on a single Redis server. Each instance has complete
// isolation of its data.
package fleet
