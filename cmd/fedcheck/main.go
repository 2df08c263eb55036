// Package main provides the entry point for the fedcheck CLI.
//
// fedcheck validates the URLs declared in federated identity metadata
// (privacy statements, information pages) and caches the results so
// repeated runs over large federations stay cheap.
//
// Usage:
//
//	fedcheck validate targets.csv
//	fedcheck plan targets.csv
//
// See --help for all available options.
package main

// main is the entry point for fedcheck.
func main() {
	Execute()
}
