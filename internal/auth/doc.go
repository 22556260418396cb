// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package auth provides account registration, credential checks and
// session tokens for GeekCraft.
//
// # Storage
//
// Persistence goes through the Backend interface. Each storage engine has
// its own adapter package:
//   - memory - process-local maps, non-durable
//   - postgres, sqlite - relational tables with unique and foreign-key constraints
//   - redis - hashes for users, per-key TTL for sessions
//   - mongo - collections with a TTL index on session expiry
//
// Exactly one adapter is active per process. The authdb package selects it.
//
// # Services
//
// Service is the only type external callers use. It validates input,
// hashes passwords, mints tokens and maps storage failures to generic
// messages so engine details never reach clients.
//
// Sweeper periodically removes expired sessions for engines that do not
// evict them on their own.
package auth
