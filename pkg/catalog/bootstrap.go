package catalog

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/kasuganosora/pagedb/pkg/storage"
	"github.com/kasuganosora/pagedb/pkg/table"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// 目录页布局：next_page_id u32 LE + entry_count u16 LE + 目录项序列。
// 目录项：表名 + first_page_id u32 + 列数 u16 + 逐列（列名、表限定名、
// 类型 u8、可空 u8、默认值）。字符串一律为 u16 LE 长度前缀。
const catalogPageHeaderSize = 6

func appendString(buf []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, fmt.Errorf("string of %d bytes too long for catalog", len(s))
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

func readString(data []byte, pos int) (string, int, error) {
	if pos+2 > len(data) {
		return "", 0, fmt.Errorf("catalog entry truncated")
	}
	n := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if pos+n > len(data) {
		return "", 0, fmt.Errorf("catalog entry truncated")
	}
	return string(data[pos : pos+n]), pos + n, nil
}

func appendValue(buf []byte, v types.Value) ([]byte, error) {
	if v.Null {
		return append(buf, 1), nil
	}
	buf = append(buf, 0)
	switch v.Type {
	case types.TypeBoolean:
		if v.Bool {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case types.TypeInt8:
		return append(buf, byte(int8(v.Int))), nil
	case types.TypeInt16:
		return binary.LittleEndian.AppendUint16(buf, uint16(int16(v.Int))), nil
	case types.TypeInt32:
		return binary.LittleEndian.AppendUint32(buf, uint32(int32(v.Int))), nil
	case types.TypeInt64:
		return binary.LittleEndian.AppendUint64(buf, uint64(v.Int)), nil
	case types.TypeFloat64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float)), nil
	case types.TypeVarchar:
		return appendString(buf, v.Str)
	default:
		return nil, fmt.Errorf("cannot encode default of type %s", v.Type)
	}
}

func readValue(data []byte, pos int, t types.DataType) (types.Value, int, error) {
	if pos+1 > len(data) {
		return types.Value{}, 0, fmt.Errorf("catalog entry truncated")
	}
	null := data[pos] != 0
	pos++
	if null {
		return types.NewNullValue(t), pos, nil
	}
	need := t.Width()
	if t != types.TypeVarchar && pos+need > len(data) {
		return types.Value{}, 0, fmt.Errorf("catalog entry truncated")
	}
	switch t {
	case types.TypeBoolean:
		return types.NewBooleanValue(data[pos] != 0), pos + 1, nil
	case types.TypeInt8:
		return types.NewInt8Value(int8(data[pos])), pos + 1, nil
	case types.TypeInt16:
		return types.NewInt16Value(int16(binary.LittleEndian.Uint16(data[pos:]))), pos + 2, nil
	case types.TypeInt32:
		return types.NewInt32Value(int32(binary.LittleEndian.Uint32(data[pos:]))), pos + 4, nil
	case types.TypeInt64:
		return types.NewInt64Value(int64(binary.LittleEndian.Uint64(data[pos:]))), pos + 8, nil
	case types.TypeFloat64:
		return types.NewFloat64Value(math.Float64frombits(binary.LittleEndian.Uint64(data[pos:]))), pos + 8, nil
	case types.TypeVarchar:
		s, next, err := readString(data, pos)
		if err != nil {
			return types.Value{}, 0, err
		}
		return types.NewVarcharValue(s), next, nil
	default:
		return types.Value{}, 0, fmt.Errorf("cannot decode default of type %s", t)
	}
}

func encodeEntry(info *TableInfo) ([]byte, error) {
	buf, err := appendString(nil, info.Name)
	if err != nil {
		return nil, err
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(info.FirstPageID))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(info.Schema.Len()))
	for _, col := range info.Schema.Columns {
		if buf, err = appendString(buf, col.Name); err != nil {
			return nil, err
		}
		if buf, err = appendString(buf, col.Table); err != nil {
			return nil, err
		}
		buf = append(buf, byte(col.Type))
		if col.Nullable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		if buf, err = appendValue(buf, col.Default); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func decodeEntry(data []byte, pos int) (name string, firstPage storage.PageID, schema *types.Schema, next int, err error) {
	name, pos, err = readString(data, pos)
	if err != nil {
		return
	}
	if pos+6 > len(data) {
		err = fmt.Errorf("catalog entry truncated")
		return
	}
	firstPage = storage.PageID(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	numCols := int(binary.LittleEndian.Uint16(data[pos:]))
	pos += 2

	columns := make([]types.Column, 0, numCols)
	for i := 0; i < numCols; i++ {
		var colName, colTable string
		colName, pos, err = readString(data, pos)
		if err != nil {
			return
		}
		colTable, pos, err = readString(data, pos)
		if err != nil {
			return
		}
		if pos+2 > len(data) {
			err = fmt.Errorf("catalog entry truncated")
			return
		}
		col := types.Column{
			Name:     colName,
			Table:    colTable,
			Type:     types.DataType(data[pos]),
			Nullable: data[pos+1] != 0,
		}
		pos += 2
		col.Default, pos, err = readValue(data, pos, col.Type)
		if err != nil {
			return
		}
		columns = append(columns, col)
	}
	return name, firstPage, types.NewSchema(columns), pos, nil
}

// persist 将全部目录项重写到目录页链。调用方需持有 c.mu。
func (c *Catalog) persist() error {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([][]byte, 0, len(names))
	for _, name := range names {
		entry, err := encodeEntry(c.tables[name])
		if err != nil {
			return err
		}
		if len(entry) > storage.PageSize-catalogPageHeaderSize {
			return fmt.Errorf("catalog entry for %s exceeds page size", name)
		}
		entries = append(entries, entry)
	}

	// 回收旧链页号以便复用
	oldPages, err := c.chainPages()
	if err != nil {
		return err
	}

	// 按页切分目录项
	type pageContent struct {
		count int
		data  []byte
	}
	pages := make([]*pageContent, 0, 1)
	current := &pageContent{}
	for _, entry := range entries {
		if catalogPageHeaderSize+len(current.data)+len(entry) > storage.PageSize {
			pages = append(pages, current)
			current = &pageContent{}
		}
		current.data = append(current.data, entry...)
		current.count++
	}
	pages = append(pages, current)

	// 逐页落盘，优先复用旧链页
	ids := make([]storage.PageID, len(pages))
	for i := range pages {
		if i < len(oldPages) {
			ids[i] = oldPages[i]
		} else {
			id, err := c.disk.AllocatePage()
			if err != nil {
				return err
			}
			ids[i] = id
		}
	}
	for i, pc := range pages {
		buf := make([]byte, storage.PageSize)
		next := storage.InvalidPageID
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		binary.LittleEndian.PutUint32(buf[0:4], uint32(next))
		binary.LittleEndian.PutUint16(buf[4:6], uint16(pc.count))
		copy(buf[catalogPageHeaderSize:], pc.data)
		if err := c.disk.WritePage(ids[i], buf); err != nil {
			return err
		}
	}
	for _, id := range oldPages[min(len(pages), len(oldPages)):] {
		if err := c.disk.DeallocatePage(id); err != nil {
			return err
		}
	}
	return c.disk.SetCatalogRoot(ids[0])
}

// chainPages 返回当前目录页链上的页号
func (c *Catalog) chainPages() ([]storage.PageID, error) {
	ids := make([]storage.PageID, 0, 2)
	buf := make([]byte, storage.PageSize)
	for id := c.disk.CatalogRoot(); id != storage.InvalidPageID; {
		ids = append(ids, id)
		if err := c.disk.ReadPage(id, buf); err != nil {
			return nil, err
		}
		id = storage.PageID(binary.LittleEndian.Uint32(buf[0:4]))
	}
	return ids, nil
}

// load 扫描目录页链重建目录
func (c *Catalog) load() error {
	buf := make([]byte, storage.PageSize)
	for id := c.disk.CatalogRoot(); id != storage.InvalidPageID; {
		if err := c.disk.ReadPage(id, buf); err != nil {
			return err
		}
		count := int(binary.LittleEndian.Uint16(buf[4:6]))
		pos := catalogPageHeaderSize
		for i := 0; i < count; i++ {
			name, firstPage, schema, next, err := decodeEntry(buf, pos)
			if err != nil {
				return err
			}
			pos = next
			c.tables[name] = &TableInfo{
				Name:        name,
				Schema:      schema,
				FirstPageID: firstPage,
				Heap:        table.NewTableHeap(c.pool, schema, firstPage),
			}
		}
		id = storage.PageID(binary.LittleEndian.Uint32(buf[0:4]))
	}
	return nil
}
