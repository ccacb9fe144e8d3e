package storage

import (
	"encoding/binary"
	"fmt"
)

// 空闲页链表页头：next_page_id u32 + current_size u32 + max_size u32
const freelistPageHeaderSize = 12

// FreelistPageMaxSize 单个空闲页链表页可容纳的页号数量
const FreelistPageMaxSize = (PageSize - freelistPageHeaderSize) / 4

// FreelistPage 空闲页链表页
type FreelistPage struct {
	Next    PageID
	PageIDs []PageID
}

// NewFreelistPage 创建空的空闲页链表页
func NewFreelistPage(next PageID) *FreelistPage {
	return &FreelistPage{Next: next}
}

// Full 是否已容纳到上限
func (p *FreelistPage) Full() bool {
	return len(p.PageIDs) >= FreelistPageMaxSize
}

// Push 追加一个空闲页号
func (p *FreelistPage) Push(id PageID) error {
	if p.Full() {
		return fmt.Errorf("freelist page is full (%d entries)", len(p.PageIDs))
	}
	p.PageIDs = append(p.PageIDs, id)
	return nil
}

// Pop 弹出最近追加的空闲页号
func (p *FreelistPage) Pop() (PageID, bool) {
	if len(p.PageIDs) == 0 {
		return InvalidPageID, false
	}
	id := p.PageIDs[len(p.PageIDs)-1]
	p.PageIDs = p.PageIDs[:len(p.PageIDs)-1]
	return id, true
}

// EncodeFreelistPage 编码为页大小的字节块
func EncodeFreelistPage(p *FreelistPage) []byte {
	data := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(data[0:4], uint32(p.Next))
	binary.LittleEndian.PutUint32(data[4:8], uint32(len(p.PageIDs)))
	binary.LittleEndian.PutUint32(data[8:12], uint32(FreelistPageMaxSize))
	for i, id := range p.PageIDs {
		off := freelistPageHeaderSize + i*4
		binary.LittleEndian.PutUint32(data[off:off+4], uint32(id))
	}
	return data
}

// DecodeFreelistPage 从页字节块解码
func DecodeFreelistPage(data []byte) (*FreelistPage, error) {
	if len(data) < freelistPageHeaderSize {
		return nil, fmt.Errorf("freelist page too short: %d bytes", len(data))
	}
	size := binary.LittleEndian.Uint32(data[4:8])
	if size > FreelistPageMaxSize {
		return nil, fmt.Errorf("freelist page size %d exceeds max %d", size, FreelistPageMaxSize)
	}
	p := &FreelistPage{
		Next:    PageID(binary.LittleEndian.Uint32(data[0:4])),
		PageIDs: make([]PageID, 0, size),
	}
	for i := 0; i < int(size); i++ {
		off := freelistPageHeaderSize + i*4
		p.PageIDs = append(p.PageIDs, PageID(binary.LittleEndian.Uint32(data[off:off+4])))
	}
	return p, nil
}
