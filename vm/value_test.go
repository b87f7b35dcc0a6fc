package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueConversions(t *testing.T) {
	cases := []struct {
		in     Value
		num    float64
		str    string
		truthy bool
	}{
		{Undefined, math.NaN(), "undefined", false},
		{Null, 0, "null", false},
		{True, 1, "true", true},
		{IntValue(-3), -3, "-3", true},
		{UintValue(4000000000), 4000000000, "4000000000", true},
		{NumberValue(1.5), 1.5, "1.5", true},
		{NumberValue(0), 0, "0", false},
		{StringValue(""), 0, "", false},
		{StringValue(" 0x1F "), 31, " 0x1F ", true},
		{StringValue("Infinity"), math.Inf(1), "Infinity", true},
		{StringValue("inf"), math.NaN(), "inf", true},
	}
	for _, c := range cases {
		if math.IsNaN(c.num) {
			assert.True(t, math.IsNaN(c.in.ToNumber()), c.in.String())
		} else {
			assert.Equal(t, c.num, c.in.ToNumber(), c.in.String())
		}
		assert.Equal(t, c.str, c.in.ToString())
		assert.Equal(t, c.truthy, c.in.ToBoolean(), c.in.String())
	}
}

func TestIntegerWrapping(t *testing.T) {
	assert.Equal(t, int32(-1), NumberValue(4294967295).ToInt32())
	assert.Equal(t, uint32(4294967295), IntValue(-1).ToUint32())
	assert.Equal(t, int32(0), NumberValue(math.NaN()).ToInt32())
	assert.Equal(t, int32(3), StringValue("3.9").ToInt32())
	assert.Equal(t, "NaN", NumberValue(math.NaN()).ToString())
	assert.Equal(t, "-Infinity", NumberValue(math.Inf(-1)).ToString())
}

func TestObjectValues(t *testing.T) {
	assert.True(t, ObjectValue(nil).IsNull())

	obj := NewScriptObjectWithVTable(nil, NewEmptyVTable())
	v := ObjectValue(obj)
	assert.Equal(t, KindObject, v.Kind())
	assert.Same(t, obj, v.AsObject())
	assert.Equal(t, "[object Object]", v.ToString())
	assert.True(t, v.ToBoolean())
	assert.Nil(t, IntValue(1).AsObject())
}
