// Package types defines the daybook record model, the RecordStore contract,
// configuration, and the standard errors shared by the codec, the overlay,
// the streak tracker, and the storage backends.
package types
