// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package goxop implements XML-binary Optimized Packaging (XOP) for streaming
XML processing.

# Overview

go-xop converts between an XML infoset whose binary content is carried as
base64 character data and an XOP infoset in which that content has been moved
out to MIME parts and replaced by xop:Include references. Both directions work
on pull-style event readers, so documents are transcoded without building an
intermediate object model.

# Specifications Implemented

  - XML-binary Optimized Packaging: https://www.w3.org/TR/xop10/
  - SOAP Message Transmission Optimization Mechanism: https://www.w3.org/TR/soap12-mtom/
  - Describing Media Content of Binary Data in XML: https://www.w3.org/TR/xml-media-types/
  - Content-ID and Message-ID URLs (RFC 2392): https://www.rfc-editor.org/rfc/rfc2392
  - MIME multipart/related (RFC 2387): https://www.rfc-editor.org/rfc/rfc2387

# Package Structure

	github.com/sirosfoundation/go-xop/pkg/xmlstream  - Pull reader and writer interfaces, etree adapters
	github.com/sirosfoundation/go-xop/pkg/attachment - Binary objects and part providers
	github.com/sirosfoundation/go-xop/pkg/xop        - XOP decoder, encoders, Content-ID registry
	github.com/sirosfoundation/go-xop/pkg/mime       - multipart/related packaging and GZIP parts

# Quick Start

To turn a document into an XOP package:

	src, _ := xmlstream.ParseTree(file)
	enc, _ := xop.NewEncodingReader(src, xop.WithPolicy(xop.PolicyAll))

	infoset := xmlstream.NewTreeWriter()
	_, _ = xmlstream.Copy(infoset, enc)
	root, _ := infoset.Bytes()

	msg, _ := mime.FromRegistry(root, mime.ContentTypeSOAPXML, enc)
	body, contentType, _ := msg.Serialize()

To read it back:

	msg, _ := mime.Parse(body, contentType)
	src, _ := xmlstream.ParseTree(bytes.NewReader(msg.Root))
	dec := xop.NewDecoder(src, msg.Provider())

	plain := xmlstream.NewTreeWriter()
	_, _ = xmlstream.Copy(plain, dec)

# Command Line

The xopctl command wraps both directions and can keep parts in MongoDB GridFS
instead of the MIME package. See cmd/xopctl.

# License

BSD-2-Clause License
*/
package goxop
