// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package xop converts between XML event streams that carry binary content and
XOP packages, where the binary content travels as separate MIME parts
referenced by xop:Include elements.

# XOP Infoset

An optimized element has a single xop:Include child pointing at a part:

	<m:photo><xop:Include xmlns:xop="http://www.w3.org/2004/08/xop/include"
	    href="cid:photo-1@example.org"/></m:photo>

The xop:Include element must be empty and must be the only child of its
parent. Only '%' is escaped in the cid: URL.

# Decoding

A [Decoder] reads an XOP infoset and replaces every xop:Include with a
binary character event. The part is fetched from an
[attachment.Provider] only when the caller asks for the bytes or the text:

	dec := xop.NewDecoder(reader, parts)
	for {
	    kind, err := dec.Next()
	    ...
	    if bin, ok := dec.Binary(); ok {
	        data, err := attachment.Load(bin.Object)
	    }
	}

# Encoding

Two encoders produce XOP infosets. [EncodingReader] wraps an
[xmlstream.BinaryReader] and turns binary events into xop:Include elements.
[EncodingWriter] wraps an [xmlstream.Writer] and turns WriteBinary calls
into xop:Include elements. Both register the binary content in their own
[Registry], which lists Content-IDs in the order the markers were produced:

	enc, err := xop.NewEncodingReader(src, xop.WithPolicy(xop.PolicyAll))
	...
	for _, id := range enc.ContentIDs() {
	    data, err := enc.Get(id)
	}

# Policies

A [ContentIDGenerator] picks the Content-ID of each part and an
[OptimizationPolicy] decides which binary content is sent as a part:

  - [PolicyDefault]: follow the producer's hint
  - [PolicyAll]: always optimize
  - [ThresholdPolicy]: optimize eligible content of at least n bytes

# Adapting Streams

[Adapt] turns any reader into an [EncodedStream], wrapping binary-capable
readers in an encoder and unwrapping decoders.

Streams are not safe for concurrent use.

# References

  - XML-binary Optimized Packaging: https://www.w3.org/TR/xop10/
  - SOAP MTOM: https://www.w3.org/TR/soap12-mtom/
  - Content-ID URLs: https://datatracker.ietf.org/doc/html/rfc2392
*/
package xop
