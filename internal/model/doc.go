// Package model defines the core data structures used throughout fedcheck.
//
// This package contains the following main types:
//   - ValidationTarget: A privacy-statement URL together with its owning entity
//   - ValidationOutcome: The result of checking one target, live or from cache
//   - ErrorKind: Classification of expected probe failures
//   - Plan: A dry-run estimate of validation cost
//   - Summary: Aggregated accessible/broken counts per federation
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (cache, scheduler, aggregate, export) need
// to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for result export and
// cache storage.
package model
