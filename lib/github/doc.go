// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package github is a typed client for the parts of the GitHub REST
// API a release pipeline touches: releases and their assets, git refs
// (to remove a rotated tag) and commit statuses.
//
// The client authenticates with a bearer token, tracks rate limits
// from X-RateLimit-* headers and backs off once on a rate-limited
// response, follows RFC 5988 Link pagination, and revalidates GETs
// with ETags. Asset uploads go to a separate upload host that GitHub
// names in each release's upload_url.
//
// Every request is made over HTTPS; non-HTTPS base or upload URLs are
// refused at construction time.
package github
