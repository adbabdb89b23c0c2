package state

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ShapeKind tags how a response body was recognized.
type ShapeKind int

const (
	ShapeUnrecognized ShapeKind = iota
	ShapeSequence
	ShapeMapping
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeSequence:
		return "sequence"
	case ShapeMapping:
		return "mapping"
	default:
		return "unrecognized"
	}
}

// Shape is a classified response body. Records holds the normalized sequence for
// recognized shapes; a mapping contributes its values in document order.
type Shape struct {
	Kind    ShapeKind
	Records []json.RawMessage
}

// ClassifyShape inspects raw without failing; anything but a JSON array or object is
// ShapeUnrecognized.
func ClassifyShape(raw json.RawMessage) Shape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Shape{Kind: ShapeUnrecognized}
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return Shape{Kind: ShapeUnrecognized}
		}
		if records == nil {
			records = []json.RawMessage{}
		}
		return Shape{Kind: ShapeSequence, Records: records}
	case '{':
		records, err := mappingValues(trimmed)
		if err != nil {
			return Shape{Kind: ShapeUnrecognized}
		}
		return Shape{Kind: ShapeMapping, Records: records}
	}
	return Shape{Kind: ShapeUnrecognized}
}

// NormalizeRecords returns the records of raw as a sequence or an error wrapping
// ErrInvalidShape naming the resource type.
func NormalizeRecords(rt ResourceType, raw json.RawMessage) ([]json.RawMessage, error) {
	shape := ClassifyShape(raw)
	if shape.Kind == ShapeUnrecognized {
		return nil, fmt.Errorf("%w: invalid %s data received", ErrInvalidShape, rt)
	}
	return shape.Records, nil
}

// mappingValues streams an object so values keep the order the server sent them in.
func mappingValues(obj []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	records := []json.RawMessage{}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		records = append(records, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return records, nil
}
