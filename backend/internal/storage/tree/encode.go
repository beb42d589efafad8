package tree

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// SortKeys orders object keys numerically when every key is a decimal
// index and lexically otherwise, so that array-like objects read back in
// index order ("2" before "10").
func SortKeys(keys []string) {
	for _, k := range keys {
		if _, err := strconv.Atoi(k); err != nil {
			sort.Strings(keys)
			return
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
}

// Encode serializes a normalized node. Object keys follow SortKeys at every
// level; everything else encodes as json.Marshal would.
func Encode(node any) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := encodeNode(&buf, node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, node any) error {
	switch n := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		SortKeys(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := encodeNode(buf, n[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, v := range n {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeNode(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return nil
}
