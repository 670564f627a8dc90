package schema

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"
)

type keyFrame struct {
	object       bool
	keys         map[string]struct{}
	expectingKey bool
	key          string
	index        int
}

// duplicateKeys returns the JSON pointer of every object key that repeats
// within its object. Decoding keeps the last value, so repeats are otherwise
// lost without notice.
func duplicateKeys(data []byte) ([]string, error) {
	dec := j.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var stack []*keyFrame
	var dups []string
	valueDone := func() {
		if len(stack) == 0 {
			return
		}
		top := stack[len(stack)-1]
		if top.object {
			top.expectingKey = true
		} else {
			top.index++
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return dups, nil
		}
		if err != nil {
			return dups, err
		}
		switch v := tok.(type) {
		case j.Delim:
			switch v {
			case '{':
				stack = append(stack, &keyFrame{object: true, keys: make(map[string]struct{}), expectingKey: true})
			case '[':
				stack = append(stack, &keyFrame{})
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				valueDone()
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].object && stack[n-1].expectingKey {
				top := stack[n-1]
				top.key = v
				top.expectingKey = false
				if _, dup := top.keys[v]; dup {
					dups = append(dups, pointer(stack))
				}
				top.keys[v] = struct{}{}
				continue
			}
			valueDone()
		default:
			valueDone()
		}
	}
}

var tokenEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// pointer renders the stack as an RFC 6901 JSON pointer.
func pointer(stack []*keyFrame) string {
	var b strings.Builder
	for _, f := range stack {
		b.WriteByte('/')
		if f.object {
			b.WriteString(tokenEscaper.Replace(f.key))
		} else {
			b.WriteString(strconv.Itoa(f.index))
		}
	}
	return b.String()
}
