package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoteTypes(t *testing.T) {
	tests := []struct {
		a, b, want DataType
	}{
		{TypeInt8, TypeInt8, TypeInt8},
		{TypeInt8, TypeInt32, TypeInt32},
		{TypeInt64, TypeInt16, TypeInt64},
		{TypeInt32, TypeFloat64, TypeFloat64},
		{TypeFloat64, TypeFloat64, TypeFloat64},
	}
	for _, tt := range tests {
		got, err := PromoteTypes(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := PromoteTypes(TypeVarchar, TypeInt32)
	assert.Error(t, err)
}

func TestArithmetic(t *testing.T) {
	v, err := Arithmetic("+", NewInt8Value(1), NewInt32Value(2))
	require.NoError(t, err)
	assert.Equal(t, TypeInt32, v.Type)
	assert.Equal(t, int64(3), v.Int)

	v, err = Arithmetic("*", NewInt32Value(3), NewInt32Value(4))
	require.NoError(t, err)
	assert.Equal(t, int64(12), v.Int)

	v, err = Arithmetic("/", NewFloat64Value(1), NewInt32Value(2))
	require.NoError(t, err)
	assert.Equal(t, TypeFloat64, v.Type)
	assert.Equal(t, 0.5, v.Float)

	// 空值传播
	v, err = Arithmetic("+", NewNullValue(TypeInt32), NewInt32Value(1))
	require.NoError(t, err)
	assert.True(t, v.Null)
	assert.Equal(t, TypeInt32, v.Type)

	// 除零得到空值
	v, err = Arithmetic("/", NewInt32Value(1), NewInt32Value(0))
	require.NoError(t, err)
	assert.True(t, v.Null)
}

func TestCompare(t *testing.T) {
	c, err := NewInt16Value(5).Compare(NewInt64Value(7))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = NewVarcharValue("b").Compare(NewVarcharValue("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = NewFloat64Value(1.5).Compare(NewInt32Value(1))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = NewNullValue(TypeInt32).Compare(NewInt32Value(1))
	assert.Error(t, err)

	_, err = NewVarcharValue("x").Compare(NewInt32Value(1))
	assert.Error(t, err)
}

func TestCastValue(t *testing.T) {
	v, err := CastValue(NewInt32Value(42), TypeInt64)
	require.NoError(t, err)
	assert.Equal(t, TypeInt64, v.Type)
	assert.Equal(t, int64(42), v.Int)

	v, err = CastValue(NewVarcharValue("12"), TypeInt32)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v.Int)

	v, err = CastValue(NewInt32Value(7), TypeVarchar)
	require.NoError(t, err)
	assert.Equal(t, "7", v.Str)

	v, err = CastValue(NewNullValue(TypeInt32), TypeFloat64)
	require.NoError(t, err)
	assert.True(t, v.Null)
	assert.Equal(t, TypeFloat64, v.Type)

	_, err = CastValue(NewVarcharValue("abc"), TypeInt32)
	assert.Error(t, err)
}

func TestSchemaEqualAndLookup(t *testing.T) {
	s1 := NewSchema([]Column{
		{Table: "t", Name: "a", Type: TypeInt32},
		{Table: "t", Name: "b", Type: TypeVarchar, Nullable: true},
	})
	s2 := NewSchema([]Column{
		{Table: "t", Name: "a", Type: TypeInt32},
		{Table: "t", Name: "b", Type: TypeVarchar, Nullable: true},
	})
	assert.True(t, s1.Equal(s2))

	s3 := s1.Qualify("u")
	assert.False(t, s1.Equal(s3))

	i, err := s1.FindColumn("", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	i, err = s1.FindColumn("t", "a")
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	_, err = s1.FindColumn("", "missing")
	assert.Error(t, err)

	joined := s1.Join(s1)
	_, err = joined.FindColumn("", "a")
	assert.Error(t, err, "bare name across both sides must be ambiguous")
}

func TestTupleConstruction(t *testing.T) {
	s := NewSchema([]Column{
		{Name: "a", Type: TypeInt32},
		{Name: "b", Type: TypeVarchar, Nullable: true},
	})
	tu, err := NewTuple(s, []Value{NewInt32Value(1), NewNullValue(TypeVarchar)})
	require.NoError(t, err)
	assert.True(t, tu.Value(1).Null)

	_, err = NewTuple(s, []Value{NewInt32Value(1)})
	assert.Error(t, err)

	_, err = NewTuple(s, []Value{NewVarcharValue("x"), NewVarcharValue("y")})
	assert.Error(t, err)
}
