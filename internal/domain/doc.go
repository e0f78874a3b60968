// Package domain models crowd-sourced urban noise reports and their hourly
// aggregates.
//
// # Data Source
//
// Noise reports are written by the map application's end users. Each report
// carries a GeoPoint location, a category (trafic, santier, muzica,
// eveniment, altul), a decibel reading, and a server-side timestamp. The data
// is noisy in every sense: locations may be missing, categories may be blank,
// and several client versions serialized the location under different field
// names ({latitude, longitude} vs {_latitude, _longitude}). [ParseReportDoc]
// normalizes all known shapes into a single RawReport so downstream code is
// shape-agnostic.
//
// # Buckets
//
// The aggregation unit is the (hour, zone) bucket. The hour is the report
// timestamp truncated to the start of its hour in an explicitly configured
// timezone; the zone is either an administrative sector id ("1".."6"), a
// synthetic grid-cell id ("grid_0p01_4443_2610"), or empty when no zone can
// be resolved. An empty zone is a valid bucket of its own, rendered as
// "global" in document ids.
//
// # ID Generation
//
// Bucket ids are deterministic: "{zone}_{YYYYMMDD}_{HH}". Re-running the job
// over the same input produces the same ids, so batched Set writes replace
// prior aggregates instead of duplicating them. See [BucketID].
package domain
