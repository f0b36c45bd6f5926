// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mime handles MIME multipart packaging for XOP.

This package builds and parses XOP packages: a multipart/related message
whose root part is the XOP infoset and whose other parts carry the binary
content referenced by xop:Include elements.

# MIME Structure

	Content-Type: multipart/related;
	    type="application/xop+xml";
	    start="root.8f1c...@xop.siros.org";
	    start-info="text/xml";
	    boundary="----=_Part_..."

	------=_Part_...
	Content-Type: application/xop+xml; charset=UTF-8; type="text/xml"
	Content-ID: <root.8f1c...@xop.siros.org>

	[XOP infoset]

	------=_Part_...
	Content-Type: application/octet-stream
	Content-ID: <photo-1@example.org>
	Content-Transfer-Encoding: binary

	[Binary part]

# Creating Packages

Build a package from an encoder's registered parts. Parts are written in
the order their xop:Include elements appear:

	msg, err := mime.FromRegistry(infoset, mime.ContentTypeTextXML, encoder)
	body, contentType, err := msg.Serialize()

# Parsing Packages

	msg, err := mime.Parse(body, contentType)
	dec := xop.NewDecoder(reader, msg.Provider())

The provider returned by [Message.Provider] decompresses gzip-encoded parts
on first access.

# Content IDs

Part Content-IDs are stored without angle brackets, exactly as referenced
from cid: URLs. Brackets are added when the package is serialized.

# References

  - XOP packages: https://www.w3.org/TR/xop10/#xop_packages
  - MIME multipart/related: https://datatracker.ietf.org/doc/html/rfc2387
  - GZIP RFC 1952: https://datatracker.ietf.org/doc/html/rfc1952
*/
package mime
