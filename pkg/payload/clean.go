// Package payload holds transforms applied to decoded upstream JSON before
// it is handed back to the agent.
package payload

// Clean drops empty strings, empty slices and empty maps from a decoded JSON
// value. Nested values are cleaned first, so a map that only held empty
// values disappears as well. Zero numbers, false and nil are kept.
//
// The input is not modified.
func Clean(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			cleaned := Clean(val)
			if isEmpty(cleaned) {
				continue
			}
			out[k] = cleaned
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(t))
		for _, val := range t {
			cleaned := Clean(val)
			if isEmpty(cleaned) {
				continue
			}
			out = append(out, cleaned)
		}
		return out
	default:
		return v
	}
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	default:
		return false
	}
}
