package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/kasuganosora/pagedb/pkg/types"
)

// 元组序列化格式：空值位图（每列 1 位，按字节对齐）+ 非空列值按 Schema 顺序编码。
// 定长类型按自然宽度小端编码，Varchar 以 2 字节大端长度为前缀。

// EncodeTuple 编码元组
func EncodeTuple(t *types.Tuple) ([]byte, error) {
	n := t.Schema.Len()
	bitmapLen := (n + 7) / 8
	buf := make([]byte, bitmapLen, bitmapLen+16*n)

	for i := 0; i < n; i++ {
		v := t.Values[i]
		if v.Null {
			buf[i/8] |= 1 << uint(i%8)
			continue
		}
		col := t.Schema.Columns[i]
		if v.Type != col.Type {
			return nil, fmt.Errorf("value type %s does not match column %s type %s", v.Type, col.Name, col.Type)
		}
		switch col.Type {
		case types.TypeBoolean:
			if v.Bool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case types.TypeInt8:
			buf = append(buf, byte(int8(v.Int)))
		case types.TypeInt16:
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(v.Int)))
		case types.TypeInt32:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(v.Int)))
		case types.TypeInt64:
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v.Int))
		case types.TypeFloat64:
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float))
		case types.TypeVarchar:
			if len(v.Str) > math.MaxUint16 {
				return nil, fmt.Errorf("varchar value of %d bytes exceeds max length", len(v.Str))
			}
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(v.Str)))
			buf = append(buf, v.Str...)
		default:
			return nil, fmt.Errorf("cannot encode type %s", col.Type)
		}
	}
	return buf, nil
}

// DecodeTuple 解码元组，返回消费的字节数
func DecodeTuple(data []byte, schema *types.Schema) (*types.Tuple, int, error) {
	n := schema.Len()
	bitmapLen := (n + 7) / 8
	if len(data) < bitmapLen {
		return nil, 0, fmt.Errorf("tuple data truncated: %d bytes, need %d byte null bitmap", len(data), bitmapLen)
	}
	bitmap := data[:bitmapLen]
	pos := bitmapLen

	values := make([]types.Value, n)
	for i := 0; i < n; i++ {
		col := schema.Columns[i]
		if bitmap[i/8]&(1<<uint(i%8)) != 0 {
			values[i] = types.NewNullValue(col.Type)
			continue
		}
		switch col.Type {
		case types.TypeBoolean:
			if pos+1 > len(data) {
				return nil, 0, truncatedErr(col.Name)
			}
			values[i] = types.NewBooleanValue(data[pos] != 0)
			pos++
		case types.TypeInt8:
			if pos+1 > len(data) {
				return nil, 0, truncatedErr(col.Name)
			}
			values[i] = types.NewInt8Value(int8(data[pos]))
			pos++
		case types.TypeInt16:
			if pos+2 > len(data) {
				return nil, 0, truncatedErr(col.Name)
			}
			values[i] = types.NewInt16Value(int16(binary.LittleEndian.Uint16(data[pos : pos+2])))
			pos += 2
		case types.TypeInt32:
			if pos+4 > len(data) {
				return nil, 0, truncatedErr(col.Name)
			}
			values[i] = types.NewInt32Value(int32(binary.LittleEndian.Uint32(data[pos : pos+4])))
			pos += 4
		case types.TypeInt64:
			if pos+8 > len(data) {
				return nil, 0, truncatedErr(col.Name)
			}
			values[i] = types.NewInt64Value(int64(binary.LittleEndian.Uint64(data[pos : pos+8])))
			pos += 8
		case types.TypeFloat64:
			if pos+8 > len(data) {
				return nil, 0, truncatedErr(col.Name)
			}
			values[i] = types.NewFloat64Value(math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8])))
			pos += 8
		case types.TypeVarchar:
			if pos+2 > len(data) {
				return nil, 0, truncatedErr(col.Name)
			}
			strLen := int(binary.BigEndian.Uint16(data[pos : pos+2]))
			pos += 2
			if pos+strLen > len(data) {
				return nil, 0, truncatedErr(col.Name)
			}
			raw := data[pos : pos+strLen]
			if !utf8.Valid(raw) {
				return nil, 0, fmt.Errorf("column %s holds invalid UTF-8", col.Name)
			}
			values[i] = types.NewVarcharValue(string(raw))
			pos += strLen
		default:
			return nil, 0, fmt.Errorf("cannot decode type %s", col.Type)
		}
	}
	return &types.Tuple{Schema: schema, Values: values}, pos, nil
}

func truncatedErr(column string) error {
	return fmt.Errorf("tuple data truncated at column %s", column)
}
