package canon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_KeyOrderInvariant(t *testing.T) {
	a, err := Decode([]byte(`{"market":{"arv":350000,"aiv":300000},"debt":{"payoff":210000}}`))
	require.NoError(t, err)
	b, err := Decode([]byte(`{"debt":{"payoff":210000},"market":{"aiv":300000,"arv":350000}}`))
	require.NoError(t, err)

	assert.Equal(t, Encode(a), Encode(b))
	assert.Equal(t, Hash(a), Hash(b))
}

func TestEncode_ArrayOrderPreserved(t *testing.T) {
	a := Array(Number(1), Number(2))
	b := Array(Number(2), Number(1))
	assert.NotEqual(t, Encode(a), Encode(b))
}

func TestEncode_NumberForms(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"integer", 288000, "288000"},
		{"negative zero", math.Copysign(0, -1), "0"},
		{"zero", 0, "0"},
		{"fraction", 7.8333, "7.8333"},
		{"negative", -42.5, "-42.5"},
		{"large integer", 9007199254740992, "9.007199254740992e+15"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(Encode(Number(tc.in))))
		})
	}
}

func TestEncode_StringEscaping(t *testing.T) {
	assert.Equal(t, `"a\"b\\c\nd"`, string(Encode(String("a\"b\\c\nd"))))
	assert.Equal(t, "\"\\u0001\"", string(Encode(String("\x01"))))
	assert.Equal(t, "\"\\u001f\"", string(Encode(String("\x1f"))))
}

func TestFromAny_SupportedKinds(t *testing.T) {
	v, err := FromAny(map[string]any{
		"s":    "x",
		"i":    int64(7),
		"f":    1.5,
		"b":    true,
		"nil":  nil,
		"list": []any{1, "two"},
	})
	require.NoError(t, err)

	n, ok := v.NumberAt("i")
	require.True(t, ok)
	assert.Equal(t, 7.0, n)

	arr, ok := v.At("list").AsArray()
	require.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestFromAny_RejectsNonFinite(t *testing.T) {
	_, err := FromAny(math.NaN())
	require.Error(t, err)
	_, err = FromAny(math.Inf(1))
	require.Error(t, err)
}

func TestFromAny_RejectsCycle(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	_, err := FromAny(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}

func TestFromAny_RejectsUnsupportedType(t *testing.T) {
	_, err := FromAny(make(chan int))
	require.Error(t, err)
}

func TestFromAny_SharedSubtreeIsNotACycle(t *testing.T) {
	shared := map[string]any{"x": 1}
	_, err := FromAny(map[string]any{"a": shared, "b": shared})
	require.NoError(t, err)
}

func TestHash_DiffersOnValueChange(t *testing.T) {
	a, err := Decode([]byte(`{"outputs":{"cap":288000}}`))
	require.NoError(t, err)
	b, err := Decode([]byte(`{"outputs":{"cap":288001}}`))
	require.NoError(t, err)
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestHash_Stable(t *testing.T) {
	v := Object(map[string]Value{"a": Number(1), "b": String("x")})
	assert.Equal(t, Hash(v), Hash(v))
	assert.Len(t, Hash(v), 64)
}

func TestAt_MissingPathIsNull(t *testing.T) {
	v, err := Decode([]byte(`{"market":{"aiv":300000}}`))
	require.NoError(t, err)

	assert.True(t, v.At("market", "arv").IsNull())
	assert.True(t, v.At("nope", "deep", "path").IsNull())

	aiv, ok := v.NumberAt("market", "aiv")
	require.True(t, ok)
	assert.Equal(t, 300000.0, aiv)

	_, ok = v.NumberAt("market", "arv")
	assert.False(t, ok)
}

func TestBoolAt_AcceptsStringForms(t *testing.T) {
	v, err := Decode([]byte(`{"a":true,"b":"false","c":"yes"}`))
	require.NoError(t, err)

	b, ok := v.BoolAt("a")
	require.True(t, ok)
	assert.True(t, b)

	b, ok = v.BoolAt("b")
	require.True(t, ok)
	assert.False(t, b)

	_, ok = v.BoolAt("c")
	assert.False(t, ok)
}

func TestInterface_RoundTrip(t *testing.T) {
	v, err := Decode([]byte(`{"n":1.25,"s":"x","list":[true,null]}`))
	require.NoError(t, err)

	back, err := FromAny(v.Interface())
	require.NoError(t, err)
	assert.Equal(t, Encode(v), Encode(back))
}
