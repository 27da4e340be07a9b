package validate

import "encoding/json"

// Result holds one validation slot per field of a step. An empty message
// means the field is valid. The zero Result means validation has not run.
type Result struct {
	order []string
	msgs  map[string]string
}

func newResult(keys []string) Result {
	r := Result{order: keys, msgs: make(map[string]string, len(keys))}
	for _, k := range keys {
		r.msgs[k] = ""
	}
	return r
}

func (r Result) fail(key, msg string) {
	if _, ok := r.msgs[key]; ok && r.msgs[key] == "" {
		r.msgs[key] = msg
	}
}

// Ran reports whether the result came from a validation pass.
func (r Result) Ran() bool { return r.msgs != nil }

// Valid reports whether every slot is empty.
func (r Result) Valid() bool {
	for _, m := range r.msgs {
		if m != "" {
			return false
		}
	}
	return true
}

// Err returns the message for key, or "" when the field is valid or unknown.
func (r Result) Err(key string) string { return r.msgs[key] }

// Has reports whether key has a slot in this result.
func (r Result) Has(key string) bool {
	_, ok := r.msgs[key]
	return ok
}

// Keys returns the field keys in step order.
func (r Result) Keys() []string {
	return append([]string(nil), r.order...)
}

// FieldError is a failing slot of a Result.
type FieldError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Key + ": " + e.Message }

// Errors returns the failing slots in step order.
func (r Result) Errors() []FieldError {
	var out []FieldError
	for _, k := range r.order {
		if m := r.msgs[k]; m != "" {
			out = append(out, FieldError{Key: k, Message: m})
		}
	}
	return out
}

// Messages returns a copy of every slot.
func (r Result) Messages() map[string]string {
	if r.msgs == nil {
		return nil
	}
	out := make(map[string]string, len(r.msgs))
	for k, v := range r.msgs {
		out[k] = v
	}
	return out
}

// Clear returns a copy of r with key's slot emptied.
func (r Result) Clear(key string) Result {
	if !r.Has(key) {
		return r
	}
	out := Result{order: r.order, msgs: r.Messages()}
	out.msgs[key] = ""
	return out
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.msgs)
}
