package storage

import (
	"encoding/binary"
	"fmt"
)

// 表堆页布局：
//   页头 12 字节：next_page_id u32 LE | num_tuples u16 LE | num_deleted u16 LE | 保留 u32
//   槽数组自页头之后向后增长，每槽 6 字节：offset u16 | length u16 | flags u16
//   元组体自页尾向前增长
const (
	tablePageHeaderSize = 12
	slotSize            = 6

	slotFlagDeleted uint16 = 1 << 0
)

// TablePage 槽式表堆页，直接操作页缓冲区
type TablePage struct {
	data []byte
}

// AsTablePage 将页缓冲区视为表堆页
func AsTablePage(data []byte) *TablePage {
	if len(data) != PageSize {
		panic(fmt.Sprintf("table page buffer must be %d bytes, got %d", PageSize, len(data)))
	}
	return &TablePage{data: data}
}

// Init 初始化为空页
func (p *TablePage) Init(next PageID) {
	for i := range p.data {
		p.data[i] = 0
	}
	p.SetNextPageID(next)
}

// NextPageID 链表后继页号，0 表示链尾
func (p *TablePage) NextPageID() PageID {
	return PageID(binary.LittleEndian.Uint32(p.data[0:4]))
}

// SetNextPageID 设置链表后继页号
func (p *TablePage) SetNextPageID(id PageID) {
	binary.LittleEndian.PutUint32(p.data[0:4], uint32(id))
}

// NumTuples 槽数量（含已删除）
func (p *TablePage) NumTuples() uint16 {
	return binary.LittleEndian.Uint16(p.data[4:6])
}

func (p *TablePage) setNumTuples(n uint16) {
	binary.LittleEndian.PutUint16(p.data[4:6], n)
}

// NumDeleted 已删除槽数量
func (p *TablePage) NumDeleted() uint16 {
	return binary.LittleEndian.Uint16(p.data[6:8])
}

func (p *TablePage) setNumDeleted(n uint16) {
	binary.LittleEndian.PutUint16(p.data[6:8], n)
}

func (p *TablePage) slot(i uint16) (offset, length, flags uint16) {
	base := tablePageHeaderSize + int(i)*slotSize
	offset = binary.LittleEndian.Uint16(p.data[base : base+2])
	length = binary.LittleEndian.Uint16(p.data[base+2 : base+4])
	flags = binary.LittleEndian.Uint16(p.data[base+4 : base+6])
	return
}

func (p *TablePage) setSlot(i uint16, offset, length, flags uint16) {
	base := tablePageHeaderSize + int(i)*slotSize
	binary.LittleEndian.PutUint16(p.data[base:base+2], offset)
	binary.LittleEndian.PutUint16(p.data[base+2:base+4], length)
	binary.LittleEndian.PutUint16(p.data[base+4:base+6], flags)
}

// tupleTop 元组区的起始偏移（最低的元组体偏移）
func (p *TablePage) tupleTop() uint16 {
	top := uint16(PageSize)
	n := p.NumTuples()
	for i := uint16(0); i < n; i++ {
		offset, _, _ := p.slot(i)
		if offset < top {
			top = offset
		}
	}
	return top
}

// FreeSpace 槽数组与元组区之间的剩余空间（字节）
func (p *TablePage) FreeSpace() int {
	lower := tablePageHeaderSize + int(p.NumTuples())*slotSize
	return int(p.tupleTop()) - lower
}

// HasSpaceFor 是否能容纳指定大小的元组体与对应槽
func (p *TablePage) HasSpaceFor(bodyLen int) bool {
	return p.FreeSpace() >= bodyLen+slotSize
}

// Insert 插入元组体，返回槽号
func (p *TablePage) Insert(body []byte) (uint16, error) {
	if !p.HasSpaceFor(len(body)) {
		return 0, fmt.Errorf("page has no space for %d byte tuple", len(body))
	}
	offset := p.tupleTop() - uint16(len(body))
	copy(p.data[offset:int(offset)+len(body)], body)
	slot := p.NumTuples()
	p.setSlot(slot, offset, uint16(len(body)), 0)
	p.setNumTuples(slot + 1)
	return slot, nil
}

// Tuple 读取槽对应的元组体
func (p *TablePage) Tuple(slot uint16) (body []byte, deleted bool, err error) {
	if slot >= p.NumTuples() {
		return nil, false, fmt.Errorf("slot %d out of range (%d tuples)", slot, p.NumTuples())
	}
	offset, length, flags := p.slot(slot)
	if int(offset)+int(length) > PageSize {
		return nil, false, fmt.Errorf("slot %d points past page end", slot)
	}
	return p.data[offset : offset+length], flags&slotFlagDeleted != 0, nil
}

// MarkDeleted 标记槽为已删除，空间不回收
func (p *TablePage) MarkDeleted(slot uint16) error {
	if slot >= p.NumTuples() {
		return fmt.Errorf("slot %d out of range (%d tuples)", slot, p.NumTuples())
	}
	offset, length, flags := p.slot(slot)
	if flags&slotFlagDeleted != 0 {
		return nil
	}
	p.setSlot(slot, offset, length, flags|slotFlagDeleted)
	p.setNumDeleted(p.NumDeleted() + 1)
	return nil
}

// UpdateInPlace 原地覆盖元组体，仅当新体不超过原槽长度时成功
func (p *TablePage) UpdateInPlace(slot uint16, body []byte) (bool, error) {
	if slot >= p.NumTuples() {
		return false, fmt.Errorf("slot %d out of range (%d tuples)", slot, p.NumTuples())
	}
	offset, length, flags := p.slot(slot)
	if flags&slotFlagDeleted != 0 {
		return false, fmt.Errorf("slot %d is deleted", slot)
	}
	if len(body) > int(length) {
		return false, nil
	}
	copy(p.data[offset:int(offset)+len(body)], body)
	p.setSlot(slot, offset, uint16(len(body)), flags)
	return true, nil
}
