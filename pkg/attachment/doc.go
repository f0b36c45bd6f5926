// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package attachment models binary content carried out of band in an XOP package.

# Binary Objects

An [Object] is either eager or lazy:

	obj := attachment.Eager(data)
	obj := attachment.Lazy{Handle: attachment.NewDeferred(fetch)}

Eager objects hold their bytes. Lazy objects hold a [Handle] that can report
whether its bytes are materialized and fetch them on demand. Use [Load] and
[Loaded] instead of switching on the concrete type at call sites.

# Providers

A [Provider] resolves a Content-ID to the bytes of a MIME part:

	if parts.IsLoaded("payload-1@example.org") {
	    // no I/O needed
	}
	data, err := parts.Get("payload-1@example.org")

Unknown Content-IDs fail with [ErrNotFound]. I/O failures are reported as a
[*LoadError] carrying the Content-ID and matching [ErrLoad].

Nothing in this package is safe for concurrent use.
*/
package attachment
