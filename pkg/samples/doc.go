// Package samples stores soil samples.
//
// Samples are visible to every member of the owning organization and
// writable only by agronomists and organization admins. The uploader must
// be a member of the sample's organization; the insert enforces this in
// the same statement.
package samples
