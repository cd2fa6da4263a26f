/*
Package http implements the admin REST surface.

# Overview

All routes live under /api/v1. The surface covers fragment CRUD with trash
and restore, revision history, syntax validation, one-off test runs,
diagnostics pickup, and JSON import/export.

Handlers speak plain JSON and map store errors to HTTP status codes;
business rules live in the fragment, store, and gateway packages.
*/
package http
