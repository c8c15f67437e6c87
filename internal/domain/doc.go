// Package domain models public-safety incident records and the geocoding
// results attached to them.
//
// # Data Source
//
// Incidents come from a county dispatch feed that publishes active calls with
// a free-text address, a city/community "area", and the responding station.
// The feed is not a geocoder's friend: addresses are generalized or masked
// before publication to protect callers.
//
// # Address Conventions
//
// Block generalization:
//
//	"4100 *** BLOCK COUNTY CENTER DR"  ->  "4100 COUNTY CENTER DR"
//	"100 BLK OF MAIN ST"               ->  "100 MAIN ST"
//
// Masked digits:
//
//	"41XX MAIN ST" or "41** MAIN ST"   ->  "4100 MAIN ST"
//
// Placeholders ("UNKNOWN", "CONFIDENTIAL", "ADDRESS WITHHELD") and addresses
// shorter than [MinAddressLength] are rejected before any provider call, as
// are redacted addresses with no street name left once markers are stripped
// (e.g. "*** BLOCK"). See [RejectAddress] and [CleanAddress].
//
// # Cache Keys
//
// [CacheKey] is derived from the case-folded, whitespace-collapsed address and
// area only. Station biases provider queries but does not change which
// physical address is being resolved, so it is not part of the key.
//
// # Strategies
//
// Every [GeocodeResult] records exactly one [Strategy]: the provider that
// produced the coordinates (apple, census, nominatim), the regional centroid
// fallback (always approximate), or none when nothing could be resolved.
package domain
