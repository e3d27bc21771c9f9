// Package services holds the migration engine: the provider registry, the
// dependency graph, the synchronizer and validator, and the orchestrator and
// import watcher the CLI drives.
//
// Services only talk to the outside through the driven ports. Live data
// goes through providers, transfer files through driven.RecordStore.
package services
