package value

// Record is a set of uniquely keyed fields that iterates in insertion order.
// The zero value is an empty record ready to use.
//
// Set mutates the record and is meant for building a value before it is
// attached to an event. Once shared, derive copies with With or Without.
type Record struct {
	keys   []string
	fields map[string]Value
}

// Field is a key/value pair used to build records.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for constructing a Field.
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// NewRecord builds a record from fields in order. A repeated key keeps its
// first position and takes the last value.
func NewRecord(fields ...Field) *Record {
	r := &Record{fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		r.Set(f.Key, f.Value)
	}
	return r
}

func (*Record) Kind() Kind { return KindRecord }
func (*Record) sealed()    {}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.fields[key]
	return v, ok
}

// Set stores v under key. Existing keys keep their position.
func (r *Record) Set(key string, v Value) {
	if v == nil {
		v = Null{}
	}
	if r.fields == nil {
		r.fields = make(map[string]Value)
	}
	if _, exists := r.fields[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = v
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Range calls fn for each field in insertion order until fn returns false.
func (r *Record) Range(fn func(key string, v Value) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.fields[k]) {
			return
		}
	}
}

// Clone returns a shallow copy: the field set is new, values are shared.
func (r *Record) Clone() *Record {
	out := &Record{
		keys:   make([]string, len(r.keysOrNil())),
		fields: make(map[string]Value, r.Len()),
	}
	copy(out.keys, r.keysOrNil())
	if r != nil {
		for k, v := range r.fields {
			out.fields[k] = v
		}
	}
	return out
}

// With returns a copy of r with key set to v.
func (r *Record) With(key string, v Value) *Record {
	out := r.Clone()
	out.Set(key, v)
	return out
}

// Without returns a copy of r without key.
func (r *Record) Without(key string) *Record {
	out := r.Clone()
	if _, ok := out.fields[key]; !ok {
		return out
	}
	delete(out.fields, key)
	for i, k := range out.keys {
		if k == key {
			out.keys = append(out.keys[:i], out.keys[i+1:]...)
			break
		}
	}
	return out
}

func (r *Record) keysOrNil() []string {
	if r == nil {
		return nil
	}
	return r.keys
}
