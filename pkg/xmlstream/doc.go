// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package xmlstream provides a pull-based XML event stream and a push-based
event sink.

# Reading

A [Reader] is a cursor over XML events. [Reader.Next] advances it and returns
the kind of the new current event; the accessors then describe that event:

	for {
	    kind, err := r.Next()
	    if err == io.EOF {
	        break
	    }
	    if err != nil {
	        return err
	    }
	    if kind == xmlstream.KindStartElement {
	        name, _ := r.Name()
	        fmt.Println(name.Local)
	    }
	}

Accessors that do not apply to the current event fail with [ErrInvalidState].

# Binary Content

Readers that can carry binary content without base64 text implement
[BinaryReader]. For the current character event, Binary reports the content,
its Content-ID if any, and whether the producer marked it as eligible for
optimization. Text on such an event still returns the base64 form.

Writers that accept binary content implement [BinaryWriter].

# Implementations

  - [TreeReader] walks a github.com/beevik/etree document. Elements carrying
    an xmime:contentType attribute are reported as binary content.
  - [TreeWriter] builds an etree document.
  - [EventReader] replays an in-memory event list; [Collect] records one.

[Copy] pumps every event from a Reader into a Writer.
*/
package xmlstream
