/*
Package sandbox executes stored code fragments with tight blast-radius
control.

# Overview

The executor takes a fragment through a fixed state machine:

	Validating → Filtering → Executing → {Succeeded | Failed}

Validating decodes storage-level entity encoding (repeatedly, to defeat
double encoding) and runs the syntax validator. Filtering is per kind:

  - server-logic: deny-list scan for process/shell invocation and dynamic
    code generation; a match refuses execution outright
  - script: nested script-tag wrappers stripped
  - stylesheet: remote @import directives and expression() constructs removed
  - markup: conservative allow-list sanitization (bluemonday), extended to
    permit inline script/style tags with a small attribute allow-list

Executing runs server-logic on an isolated goja VM with captured print
output, nulled host globals, and an interrupt-based timeout. For the other
kinds "executing" means producing the filtered text; no interpretation
occurs.

# Failure semantics

Runtime errors and panics never propagate to the host: they are converted to
a failed Result carrying the error message, and buffered output from a
failed run is discarded. A deny-list refusal is distinct from a runtime
failure — the cause is static, the fragment stays active, and the caller's
circuit breaker must not trip.

# Security model

The deny-list filter is best-effort, not a security boundary. True isolation
(separate process, resource limits) is out of scope; the VM-level controls
(removed globals, interrupt timeout) are the second layer of defense.
*/
package sandbox
