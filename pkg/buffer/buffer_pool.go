package buffer

import (
	"fmt"
	"sync"

	"github.com/kasuganosora/pagedb/pkg/storage"
)

// Page 缓冲池中的一页。引用计数为 0 之前不得被淘汰，
// 脏页淘汰前必须先写回磁盘。
type Page struct {
	id       storage.PageID
	data     [storage.PageSize]byte
	pinCount int
	dirty    bool
}

// ID 页号
func (p *Page) ID() storage.PageID {
	return p.id
}

// Data 页内容
func (p *Page) Data() []byte {
	return p.data[:]
}

// PinCount 引用计数
func (p *Page) PinCount() int {
	return p.pinCount
}

// IsDirty 是否为脏页
func (p *Page) IsDirty() bool {
	return p.dirty
}

func (p *Page) reset() {
	p.id = storage.InvalidPageID
	p.data = [storage.PageSize]byte{}
	p.pinCount = 0
	p.dirty = false
}

// BufferPool 固定容量的页缓冲池：页号到帧的映射、引用计数、LRU-K 置换
type BufferPool struct {
	mu        sync.Mutex
	frames    []*Page
	pageTable map[storage.PageID]FrameID
	freeList  []FrameID
	replacer  *LRUKReplacer
	disk      *storage.DiskManager
}

// NewBufferPool 创建缓冲池，K 取默认值
func NewBufferPool(poolSize int, disk *storage.DiskManager) *BufferPool {
	return NewBufferPoolWithK(poolSize, DefaultK, disk)
}

// NewBufferPoolWithK 创建指定历史深度的缓冲池
func NewBufferPoolWithK(poolSize, k int, disk *storage.DiskManager) *BufferPool {
	frames := make([]*Page, poolSize)
	freeList := make([]FrameID, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = &Page{}
		freeList = append(freeList, FrameID(i))
	}
	return &BufferPool{
		frames:    frames,
		pageTable: make(map[storage.PageID]FrameID, poolSize),
		freeList:  freeList,
		replacer:  NewLRUKReplacer(k),
		disk:      disk,
	}
}

// FetchPage 获取并固定一页；不在池中时从磁盘读入
func (bp *BufferPool) FetchPage(id storage.PageID) (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frame, ok := bp.pageTable[id]; ok {
		page := bp.frames[frame]
		page.pinCount++
		bp.replacer.RecordAccess(frame)
		bp.replacer.SetEvictable(frame, false)
		return page, nil
	}

	frame, err := bp.obtainFrame()
	if err != nil {
		return nil, err
	}
	page := bp.frames[frame]
	page.reset()
	if err := bp.disk.ReadPage(id, page.data[:]); err != nil {
		bp.freeList = append(bp.freeList, frame)
		return nil, err
	}
	page.id = id
	page.pinCount = 1
	bp.pageTable[id] = frame
	bp.replacer.RecordAccess(frame)
	bp.replacer.SetEvictable(frame, false)
	return page, nil
}

// NewPage 分配一个新页并固定
func (bp *BufferPool) NewPage() (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, err := bp.obtainFrame()
	if err != nil {
		return nil, err
	}
	id, err := bp.disk.AllocatePage()
	if err != nil {
		bp.freeList = append(bp.freeList, frame)
		return nil, err
	}
	page := bp.frames[frame]
	page.reset()
	page.id = id
	page.pinCount = 1
	page.dirty = true
	bp.pageTable[id] = frame
	bp.replacer.RecordAccess(frame)
	bp.replacer.SetEvictable(frame, false)
	return page, nil
}

// obtainFrame 取得一个空帧：优先空闲帧，否则淘汰牺牲帧（脏页先写回）。
// 调用方需持有 bp.mu。
func (bp *BufferPool) obtainFrame() (FrameID, error) {
	if len(bp.freeList) > 0 {
		frame := bp.freeList[0]
		bp.freeList = bp.freeList[1:]
		return frame, nil
	}
	frame, ok := bp.replacer.Evict()
	if !ok {
		return 0, fmt.Errorf("buffer pool exhausted: all %d frames pinned", len(bp.frames))
	}
	victim := bp.frames[frame]
	if victim.dirty {
		if err := bp.disk.WritePage(victim.id, victim.data[:]); err != nil {
			return 0, err
		}
	}
	delete(bp.pageTable, victim.id)
	return frame, nil
}

// UnpinPage 释放一次固定，dirty 表示调用期间是否写过该页
func (bp *BufferPool) UnpinPage(id storage.PageID, dirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, ok := bp.pageTable[id]
	if !ok {
		return fmt.Errorf("unpin: page %d not in buffer pool", id)
	}
	page := bp.frames[frame]
	if page.pinCount <= 0 {
		return fmt.Errorf("unpin: page %d is not pinned", id)
	}
	page.pinCount--
	page.dirty = page.dirty || dirty
	if page.pinCount == 0 {
		bp.replacer.SetEvictable(frame, true)
	}
	return nil
}

// FlushPage 将指定页写回磁盘（仅脏页产生写入）
func (bp *BufferPool) FlushPage(id storage.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPageLocked(id)
}

func (bp *BufferPool) flushPageLocked(id storage.PageID) error {
	frame, ok := bp.pageTable[id]
	if !ok {
		return nil
	}
	page := bp.frames[frame]
	if !page.dirty {
		return nil
	}
	if err := bp.disk.WritePage(page.id, page.data[:]); err != nil {
		return err
	}
	page.dirty = false
	return nil
}

// FlushAllPages 写回所有脏页
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for id := range bp.pageTable {
		if err := bp.flushPageLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage 从池中移除并释放页号，页不得处于固定状态
func (bp *BufferPool) DeletePage(id storage.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frame, ok := bp.pageTable[id]; ok {
		page := bp.frames[frame]
		if page.pinCount > 0 {
			return fmt.Errorf("delete: page %d is pinned", id)
		}
		if err := bp.replacer.Remove(frame); err != nil {
			return err
		}
		delete(bp.pageTable, id)
		page.reset()
		bp.freeList = append(bp.freeList, frame)
	}
	return bp.disk.DeallocatePage(id)
}
