// Package conditions decides whether a fragment should run for the current
// request.
//
// A fragment carries a serialized rule set of independent predicate families
// (page type, content type, user role, auth status, device type, URL pattern,
// date range). A family passes when any of its listed values matches the
// request (OR within the family); all present families must pass (AND across
// families); absent families are skipped. A payload that fails to parse is
// treated as "no conditions" so a bad edit never silently kills a working
// fragment.
//
// The current request is described by a RequestContext provided by the host.
package conditions
