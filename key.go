package querycache

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key identifies one cached read: an entity type plus ordered params.
// Equality is structural; two keys built from equal params are the same key.
type Key struct {
	entity string
	params []string
	id     string
}

// NewKey canonicalises params: strings are quoted, numbers and bools are
// formatted, nil is "null", anything else is "%T:%v".
func NewKey(entity string, params ...any) Key {
	k := Key{entity: entity, params: make([]string, len(params))}
	for i, p := range params {
		k.params[i] = canonParam(p)
	}
	k.id = entity + "[" + strings.Join(k.params, ",") + "]"
	return k
}

func (k Key) Entity() string   { return k.entity }
func (k Key) String() string   { return k.id }
func (k Key) Equal(o Key) bool { return k.id == o.id }
func (k Key) IsZero() bool     { return k.entity == "" }
func (k Key) ParamCount() int  { return len(k.params) }

// HasPrefix reports whether k has p's entity type and starts with p's params.
// A key with no params is a prefix of every key of its entity type.
func (k Key) HasPrefix(p Key) bool {
	if k.entity != p.entity || len(p.params) > len(k.params) {
		return false
	}
	for i := range p.params {
		if k.params[i] != p.params[i] {
			return false
		}
	}
	return true
}

func canonParam(p any) string {
	switch v := p.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return strconv.Quote(v.String())
	default:
		return strconv.Quote(fmt.Sprintf("%T:%v", v, v))
	}
}
