package domain

// Base field names, in header order.
const (
	FieldDispatch   = "Dispatch"
	FieldEvent      = "Event"
	FieldAddress    = "Address"
	FieldCallType   = "Call Type"
	FieldCapturedAt = "Scraped_Timestamp"
)

// CapturedAtLayout is the text layout of the capture timestamp field.
const CapturedAtLayout = "2006-01-02 15:04:05"

// Field is one named value of a record.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is a single call for service. The zero value has no fields.
// Records are values: methods never mutate the receiver's backing array.
type Record struct {
	fields []Field
}

// NewRecord builds a record with the five base fields.
func NewRecord(dispatch, event, address, callType, capturedAt string) Record {
	return Record{fields: []Field{
		{Name: FieldDispatch, Value: dispatch},
		{Name: FieldEvent, Value: event},
		{Name: FieldAddress, Value: address},
		{Name: FieldCallType, Value: callType},
		{Name: FieldCapturedAt, Value: capturedAt},
	}}
}

// Get returns the value of the named field.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// EventID returns the dedup key. Missing means the empty identifier.
func (r Record) EventID() string {
	v, _ := r.Get(FieldEvent)
	return v
}

// Address returns the address text.
func (r Record) Address() string {
	v, _ := r.Get(FieldAddress)
	return v
}

// With returns a copy of r with the named field set. An existing field keeps
// its position; a new field is appended at the end.
func (r Record) With(name, value string) Record {
	out := make([]Field, len(r.fields), len(r.fields)+1)
	copy(out, r.fields)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return Record{fields: out}
		}
	}
	return Record{fields: append(out, Field{Name: name, Value: value})}
}

// Fields returns a copy of the record's fields in insertion order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Names returns the field names in insertion order; used as the header row.
func (r Record) Names() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Name
	}
	return out
}

// Values returns the field values in insertion order.
func (r Record) Values() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Value
	}
	return out
}

// Map returns the record as a name→value map, the shape rows are read back in.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		out[f.Name] = f.Value
	}
	return out
}
