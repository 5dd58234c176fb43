package verification

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/simplesurance/commitqueue/internal/orderedmap"
)

// Records maps verifier names to their records. Iteration is in the order
// the verifiers first set their record, that is the configured order of the
// verifiers.
type Records struct {
	m *orderedmap.Map[string, Record]
}

func (r *Records) Get(name string) Record {
	if r.m == nil {
		return nil
	}

	return r.m.Get(name)
}

// Set stores rec for name. A replaced record keeps its position.
func (r *Records) Set(name string, rec Record) {
	if r.m == nil {
		r.m = orderedmap.New[string, Record]()
	}

	r.m.Set(name, rec)
}

func (r *Records) Len() int {
	if r.m == nil {
		return 0
	}

	return r.m.Len()
}

// Names returns the verifier names in order.
func (r *Records) Names() []string {
	if r.m == nil {
		return nil
	}

	return r.m.Keys()
}

// Foreach calls fn for every record in order until fn returns false.
func (r *Records) Foreach(fn func(name string, rec Record) bool) {
	if r.m == nil {
		return
	}

	r.m.Foreach(fn)
}

// MarshalJSON encodes the records as JSON object in order.
func (r Records) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	var err error

	buf.WriteByte('{')

	r.Foreach(func(name string, rec Record) bool {
		var k, v []byte

		if k, err = json.Marshal(name); err != nil {
			return false
		}

		if v, err = json.Marshal(rec); err != nil {
			err = fmt.Errorf("encoding verification %q failed: %w", name, err)
			return false
		}

		if buf.Len() > 1 {
			buf.WriteByte(',')
		}

		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)

		return true
	})

	if err != nil {
		return nil, err
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
