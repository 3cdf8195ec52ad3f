// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package frame

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecoder_ReadFrame_Basic(t *testing.T) {
	r := strings.NewReader("{\"a\":1}\n{\"b\":2}\n")
	d := NewDecoder(r)

	first, err := d.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(first) != `{"a":1}` {
		t.Errorf("first frame = %q, want %q", first, `{"a":1}`)
	}

	second, err := d.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(second) != `{"b":2}` {
		t.Errorf("second frame = %q, want %q", second, `{"b":2}`)
	}

	if _, err := d.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() at end = %v, want io.EOF", err)
	}
}

func TestDecoder_ReadFrame_SkipsEmptyFrames(t *testing.T) {
	r := strings.NewReader("\n\n{\"a\":1}\n\n")
	d := NewDecoder(r)

	got, err := d.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("frame = %q, want %q", got, `{"a":1}`)
	}

	if _, err := d.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() at end = %v, want io.EOF", err)
	}
}

func TestDecoder_ReadFrame_OversizeIsFatal(t *testing.T) {
	big := strings.Repeat("a", MaxFrameSize+1)
	r := strings.NewReader(big + "\n")
	d := NewDecoder(r)

	_, err := d.ReadFrame()
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("ReadFrame() error = %v, want *frame.Error", err)
	}
}

func TestDecoder_ReadFrame_InvalidUTF8(t *testing.T) {
	r := bytes.NewReader([]byte{'{', 0xff, 0xfe, '}', '\n'})
	d := NewDecoder(r)

	_, err := d.ReadFrame()
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("ReadFrame() error = %v, want *frame.Error", err)
	}
}

func TestDecoder_ReadFrame_UnterminatedFrameIsUnexpectedEOF(t *testing.T) {
	r := strings.NewReader(`{"a":1}`)
	d := NewDecoder(r)

	_, err := d.ReadFrame()
	if err != io.ErrUnexpectedEOF {
		t.Errorf("ReadFrame() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestDecoder_ReadFrame_RetainsResidueAcrossReads(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewDecoder(pr)

	go func() {
		_, _ = pw.Write([]byte(`{"a":1}`))
		_, _ = pw.Write([]byte("\n{\"b\":2}\n"))
		_ = pw.Close()
	}()

	first, err := d.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(first) != `{"a":1}` {
		t.Errorf("first frame = %q", first)
	}

	second, err := d.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(second) != `{"b":2}` {
		t.Errorf("second frame = %q", second)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if buf.String() != "{\"a\":1}\n" {
		t.Errorf("Encode() wrote %q", buf.String())
	}
}

func TestEncode_OversizeRejected(t *testing.T) {
	big := make([]byte, MaxFrameSize+1)
	var buf bytes.Buffer
	err := Encode(&buf, big)
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("Encode() error = %v, want *frame.Error", err)
	}
}
