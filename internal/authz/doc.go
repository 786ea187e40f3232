// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package authz authorizes admin API requests with Casbin RBAC.

The model (model.conf) matches a request subject against policy subjects
through the role graph, the request path against policy paths with keyMatch,
and the action exactly. Actions are derived from the HTTP method:

	GET, HEAD, OPTIONS  -> read
	POST, PUT, PATCH    -> write
	DELETE              -> delete

Two roles ship in the embedded policy (policy.csv):

	admin     read, write and delete on /api/v1/admin/*
	operator  read on /api/v1/admin/dlq and /api/v1/admin/drift

Users are bound to roles at startup from the ADMIN_USERS and OPERATOR_USERS
lists. CASBIN_MODEL_PATH and CASBIN_POLICY_PATH replace the embedded files;
a configured path that cannot be read is a startup error rather than a
silent fallback.

Decisions are cached per (subject, object, action) in an LRU with
CASBIN_CACHE_TTL expiry. Any role change drops the whole cache.
*/
package authz
