/*
Package gateway orchestrates fragment execution during a host request.

# Overview

The gateway is the bridge between stored fragments and the host's render
cycle. The host calls Pass once per injection stage; the gateway fetches
active fragments, evaluates their display conditions against the request,
executes the ones that qualify, and returns the merged output for that
stage wrapped per kind.

On-demand fragments never run during a pass. They execute only where the
host's content carries an explicit marker, via RenderMarker.

# Circuit breaker

A server-logic fragment that fails at runtime during a pass is disabled
in place and a diagnostic is recorded for the admin surface. Static
refusals and client-side kinds never trip the breaker.

# Exactly-once

Each host request carries one PassContext. A fragment executes at most
once per request through the ambient path, no matter how many times the
host fires a stage hook.
*/
package gateway
