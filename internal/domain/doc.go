// Package domain models the events the radar ETL service consumes and emits.
//
// # File notifications
//
// Upstream ingesters drop CINRAD base-data files on shared storage and publish
// one JSON notification per file to the source topic:
//
//	{"path": "/data/radar/Z9250/Z_RADR_I_Z9250_20240601060000_O_DOR_SA_CAP.bin.bz2",
//	 "station": "Z9250"}
//
// The path is required. The station is optional and only used to label the
// output when the decoded file carries no site code of its own.
//
// # Product events
//
// Every decoded volume produces one [ProductEvent] summarizing the volume
// (site, format, scan strategy, sweeps, time span) and each gridded product
// (name, shape, valid cell count, maximum). Grids themselves are not
// published; consumers that need them decode the file again.
//
// Missing values never reach JSON: a product with no valid cell omits its
// maximum.
//
// # Keys
//
// Event keys are "<station>-<volume start, RFC 3339 UTC>", so replays of the
// same file land on the same partition and downstream upserts stay
// idempotent. See [EventKey].
package domain
