package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kasuganosora/pagedb/pkg/buffer"
	"github.com/kasuganosora/pagedb/pkg/storage"
	"github.com/kasuganosora/pagedb/pkg/table"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// TableInfo 一张表的目录项
type TableInfo struct {
	Name        string
	Schema      *types.Schema
	FirstPageID storage.PageID
	Heap        *table.TableHeap
}

// Catalog 进程内表目录。目录项序列化在目录页链上，链首页号记录在
// 页 0 元数据根页中（不固定为页 1），打开数据库时扫描重建。
type Catalog struct {
	mu     sync.RWMutex
	pool   *buffer.BufferPool
	disk   *storage.DiskManager
	tables map[string]*TableInfo
}

// NewCatalog 创建目录并从引导页链加载已有表
func NewCatalog(pool *buffer.BufferPool, disk *storage.DiskManager) (*Catalog, error) {
	c := &Catalog{
		pool:   pool,
		disk:   disk,
		tables: make(map[string]*TableInfo),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return c, nil
}

// CreateTable 建表：分配空表堆并登记目录项
func (c *Catalog) CreateTable(name string, schema *types.Schema) (*TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := bareName(name)
	if _, exists := c.tables[key]; exists {
		return nil, fmt.Errorf("table %s already exists", key)
	}

	qualified := schema.Qualify(key)
	heap, err := table.CreateTableHeap(c.pool, qualified)
	if err != nil {
		return nil, err
	}
	info := &TableInfo{
		Name:        key,
		Schema:      qualified,
		FirstPageID: heap.FirstPageID(),
		Heap:        heap,
	}
	c.tables[key] = info
	if err := c.persist(); err != nil {
		delete(c.tables, key)
		return nil, err
	}
	return info, nil
}

// GetTable 查表。接受裸名与带限定前缀的引用，按最后一段解析。
func (c *Catalog) GetTable(name string) (*TableInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.tables[bareName(name)]
	if !ok {
		return nil, fmt.Errorf("table %s not found", name)
	}
	return info, nil
}

// TableNames 已注册的表名（有序）
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func bareName(name string) string {
	parts := strings.Split(name, ".")
	return strings.ToLower(parts[len(parts)-1])
}
