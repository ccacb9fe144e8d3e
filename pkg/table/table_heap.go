package table

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/buffer"
	"github.com/kasuganosora/pagedb/pkg/storage"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// TableHeap 表堆：槽式页组成的单向链表，持有一张表的全部行
type TableHeap struct {
	pool        *buffer.BufferPool
	schema      *types.Schema
	firstPageID storage.PageID
}

// NewTableHeap 打开已存在的表堆
func NewTableHeap(pool *buffer.BufferPool, schema *types.Schema, firstPageID storage.PageID) *TableHeap {
	return &TableHeap{pool: pool, schema: schema, firstPageID: firstPageID}
}

// CreateTableHeap 创建带一个空页的表堆
func CreateTableHeap(pool *buffer.BufferPool, schema *types.Schema) (*TableHeap, error) {
	page, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create table heap: %w", err)
	}
	storage.AsTablePage(page.Data()).Init(storage.InvalidPageID)
	id := page.ID()
	if err := pool.UnpinPage(id, true); err != nil {
		return nil, err
	}
	return &TableHeap{pool: pool, schema: schema, firstPageID: id}, nil
}

// FirstPageID 链表首页号
func (h *TableHeap) FirstPageID() storage.PageID {
	return h.firstPageID
}

// Schema 表结构
func (h *TableHeap) Schema() *types.Schema {
	return h.schema
}

// InsertTuple 沿链表首次适配插入；所有页都放不下时在链尾挂新页
func (h *TableHeap) InsertTuple(t *types.Tuple) (RID, error) {
	body, err := storage.EncodeTuple(t)
	if err != nil {
		return InvalidRID, err
	}

	pageID := h.firstPageID
	for {
		page, err := h.pool.FetchPage(pageID)
		if err != nil {
			return InvalidRID, err
		}
		tp := storage.AsTablePage(page.Data())

		if tp.HasSpaceFor(len(body)) {
			slot, err := tp.Insert(body)
			if err != nil {
				h.pool.UnpinPage(pageID, false)
				return InvalidRID, err
			}
			if err := h.pool.UnpinPage(pageID, true); err != nil {
				return InvalidRID, err
			}
			return RID{PageID: pageID, SlotNum: slot}, nil
		}

		next := tp.NextPageID()
		if next != storage.InvalidPageID {
			if err := h.pool.UnpinPage(pageID, false); err != nil {
				return InvalidRID, err
			}
			pageID = next
			continue
		}

		// 链尾也放不下：挂一个新页
		newPage, err := h.pool.NewPage()
		if err != nil {
			h.pool.UnpinPage(pageID, false)
			return InvalidRID, err
		}
		newID := newPage.ID()
		ntp := storage.AsTablePage(newPage.Data())
		ntp.Init(storage.InvalidPageID)

		tp.SetNextPageID(newID)
		if err := h.pool.UnpinPage(pageID, true); err != nil {
			h.pool.UnpinPage(newID, false)
			return InvalidRID, err
		}

		slot, err := ntp.Insert(body)
		if err != nil {
			h.pool.UnpinPage(newID, true)
			return InvalidRID, fmt.Errorf("tuple of %d bytes does not fit an empty page: %w", len(body), err)
		}
		if err := h.pool.UnpinPage(newID, true); err != nil {
			return InvalidRID, err
		}
		return RID{PageID: newID, SlotNum: slot}, nil
	}
}

// GetTuple 按 RID 读取行；已删除的行返回 nil
func (h *TableHeap) GetTuple(rid RID) (*types.Tuple, error) {
	page, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return nil, err
	}
	defer h.pool.UnpinPage(rid.PageID, false)

	body, deleted, err := storage.AsTablePage(page.Data()).Tuple(rid.SlotNum)
	if err != nil {
		return nil, err
	}
	if deleted {
		return nil, nil
	}
	tuple, _, err := storage.DecodeTuple(body, h.schema)
	if err != nil {
		return nil, fmt.Errorf("decode tuple at %s: %w", rid, err)
	}
	return tuple, nil
}

// UpdateTuple 原地更新行。新行体超出原槽时更新失败，保证 RID 稳定。
func (h *TableHeap) UpdateTuple(rid RID, t *types.Tuple) error {
	body, err := storage.EncodeTuple(t)
	if err != nil {
		return err
	}
	page, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	tp := storage.AsTablePage(page.Data())
	ok, err := tp.UpdateInPlace(rid.SlotNum, body)
	if err != nil {
		h.pool.UnpinPage(rid.PageID, false)
		return err
	}
	if !ok {
		h.pool.UnpinPage(rid.PageID, false)
		return fmt.Errorf("updated tuple of %d bytes does not fit slot at %s", len(body), rid)
	}
	return h.pool.UnpinPage(rid.PageID, true)
}

// DeleteTuple 标记删除，空间在页内保留
func (h *TableHeap) DeleteTuple(rid RID) error {
	page, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	if err := storage.AsTablePage(page.Data()).MarkDeleted(rid.SlotNum); err != nil {
		h.pool.UnpinPage(rid.PageID, false)
		return err
	}
	return h.pool.UnpinPage(rid.PageID, true)
}

// Iterator 创建从首页开始的前向迭代器
func (h *TableHeap) Iterator() *TableIterator {
	return &TableIterator{heap: h, pageID: h.firstPageID}
}

// TableIterator 按页链顺序产出存活行，任意时刻至多固定一页
type TableIterator struct {
	heap   *TableHeap
	pageID storage.PageID
	slot   uint16
}

// Next 返回下一行及其 RID；迭代结束时返回 (InvalidRID, nil, nil)
func (it *TableIterator) Next() (RID, *types.Tuple, error) {
	for it.pageID != storage.InvalidPageID {
		page, err := it.heap.pool.FetchPage(it.pageID)
		if err != nil {
			return InvalidRID, nil, err
		}
		tp := storage.AsTablePage(page.Data())

		for it.slot < tp.NumTuples() {
			slot := it.slot
			it.slot++
			body, deleted, err := tp.Tuple(slot)
			if err != nil {
				it.heap.pool.UnpinPage(page.ID(), false)
				return InvalidRID, nil, err
			}
			if deleted {
				continue
			}
			tuple, _, err := storage.DecodeTuple(body, it.heap.schema)
			if err != nil {
				it.heap.pool.UnpinPage(page.ID(), false)
				return InvalidRID, nil, fmt.Errorf("decode tuple at (%d,%d): %w", page.ID(), slot, err)
			}
			rid := RID{PageID: page.ID(), SlotNum: slot}
			if err := it.heap.pool.UnpinPage(page.ID(), false); err != nil {
				return InvalidRID, nil, err
			}
			return rid, tuple, nil
		}

		next := tp.NextPageID()
		if err := it.heap.pool.UnpinPage(page.ID(), false); err != nil {
			return InvalidRID, nil, err
		}
		it.pageID = next
		it.slot = 0
	}
	return InvalidRID, nil, nil
}
