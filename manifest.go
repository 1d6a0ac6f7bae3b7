package jsonnet

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/google/jsonnet-sub000/ast"
)

const manifestIndentStep = "   "

// manifestJSON writes v's JSON rendering to buf, 3-space indented with
// alphabetically sorted object keys. indent is the current
// indentation prefix; callers pass "" at the top level.
func (i *interpreter) manifestJSON(v Value, indent string, buf *bytes.Buffer) error {
	return i.manifestJSONIndent(v, indent, manifestIndentStep, buf)
}

// manifestJSONIndent is manifestJSON parametrized by the per-level
// indentation string, backing std.manifestJsonEx's caller-chosen indent.
func (i *interpreter) manifestJSONIndent(v Value, indent, step string, buf *bytes.Buffer) error {
	switch val := v.(type) {
	case *valueNull:
		buf.WriteString("null")
	case *valueBoolean:
		if val.value {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case *valueNumber:
		buf.WriteString(formatNumber(val.value))
	case *valueString:
		writeQuotedString(buf, val.goString())
	case *valueArray:
		return i.manifestArray(val, indent, step, buf)
	case objectValue:
		return i.manifestObject(val, indent, step, buf)
	case Function:
		return i.runtimeError(ast.LocationRange{}, "Couldn't manifest function in JSON output.")
	default:
		return fmt.Errorf("INTERNAL ERROR: cannot manifest value of type %T", v)
	}
	return nil
}

func (i *interpreter) manifestArray(arr *valueArray, indent, step string, buf *bytes.Buffer) error {
	if len(arr.elements) == 0 {
		buf.WriteString("[ ]")
		return nil
	}
	childIndent := indent + step
	buf.WriteString("[\n")
	for idx, elemThunk := range arr.elements {
		v, err := i.force(elemThunk, ast.LocationRange{}, "")
		if err != nil {
			return err
		}
		buf.WriteString(childIndent)
		if err := i.manifestJSONIndent(v, childIndent, step, buf); err != nil {
			return err
		}
		if idx != len(arr.elements)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString(indent)
	buf.WriteString("]")
	return nil
}

func (i *interpreter) manifestObject(obj objectValue, indent, step string, buf *bytes.Buffer) error {
	if err := i.ensureAsserts(obj); err != nil {
		return err
	}
	names := visibleFieldNames(obj)
	if len(names) == 0 {
		buf.WriteString("{ }")
		return nil
	}
	childIndent := indent + step
	buf.WriteString("{\n")
	for idx, name := range names {
		v, err := i.indexObject(obj, name, ast.LocationRange{})
		if err != nil {
			return err
		}
		buf.WriteString(childIndent)
		writeQuotedString(buf, name)
		buf.WriteString(": ")
		if err := i.manifestJSONIndent(v, childIndent, step, buf); err != nil {
			return err
		}
		if idx != len(names)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString(indent)
	buf.WriteString("}")
	return nil
}

// formatNumber prints integral values without a decimal point and
// otherwise uses Go's shortest-round-trip formatting (equivalent in
// effect to a 17-significant-digit-then-trim approach).
func formatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeQuotedString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		case '\r':
			buf.WriteString(`\r`)
		case '\f':
			buf.WriteString(`\f`)
		case '\b':
			buf.WriteString(`\b`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// manifestMulti renders a top-level object as one JSON document per
// field, for the `-m`/`--multi` CLI mode: each visible field's
// value becomes the contents of a file named after the field.
func (i *interpreter) manifestMulti(v Value) (map[string]string, error) {
	obj, ok := v.(objectValue)
	if !ok {
		return nil, i.runtimeError(ast.LocationRange{}, "Multi-file output mode requires a top-level object.")
	}
	names := visibleFieldNames(obj)
	sort.Strings(names)
	out := make(map[string]string, len(names))
	for _, name := range names {
		fv, err := i.indexObject(obj, name, ast.LocationRange{})
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := i.manifestJSON(fv, "", &buf); err != nil {
			return nil, err
		}
		buf.WriteString("\n")
		out[name] = buf.String()
	}
	return out, nil
}

// manifestStream renders a top-level array as a sequence of JSON
// documents, for the `-y`/`--yaml-stream` and `-S` adjacent stream mode.
func (i *interpreter) manifestStream(v Value) ([]string, error) {
	arr, ok := v.(*valueArray)
	if !ok {
		return nil, i.runtimeError(ast.LocationRange{}, "Stream output mode requires a top-level array.")
	}
	out := make([]string, 0, len(arr.elements))
	for _, elemThunk := range arr.elements {
		ev, err := i.force(elemThunk, ast.LocationRange{}, "")
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := i.manifestJSON(ev, "", &buf); err != nil {
			return nil, err
		}
		out = append(out, buf.String())
	}
	return out, nil
}
