// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - Provider: Reads, translates and persists one entity kind
//   - ProviderLookup: Gives providers access to other kinds during a run
//   - LiveStore: The CMS database accessor (memory or SQLite)
//   - RecordStore: Transfer-file persistence of exported records
//   - ChangeSource: Notifications when transfer files change
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or provider package
package driven
