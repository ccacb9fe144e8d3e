package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiskManager(t *testing.T) *DiskManager {
	t.Helper()
	dm, err := NewDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return dm
}

func TestDiskManagerReadWrite(t *testing.T) {
	dm := newTestDiskManager(t)

	id, err := dm.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(1), id, "first allocated page must be 1")

	data := make([]byte, PageSize)
	copy(data, []byte("hello page"))
	require.NoError(t, dm.WritePage(id, data))

	buf := make([]byte, PageSize)
	require.NoError(t, dm.ReadPage(id, buf))
	assert.Equal(t, data, buf)
}

func TestDiskManagerShortReadZeroPadded(t *testing.T) {
	dm := newTestDiskManager(t)

	// 从未写过的页读出来应为全零
	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	require.NoError(t, dm.ReadPage(99, buf))
	for _, b := range buf {
		require.Equal(t, byte(0), b)
	}
}

func TestDiskManagerAllocateSequential(t *testing.T) {
	dm := newTestDiskManager(t)

	for want := PageID(1); want <= 5; want++ {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		assert.Equal(t, want, id)
		assert.NotEqual(t, InvalidPageID, id)
	}
}

func TestDiskManagerFreelistReuse(t *testing.T) {
	dm := newTestDiskManager(t)

	ids := make([]PageID, 0, 4)
	for i := 0; i < 4; i++ {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, dm.DeallocatePage(ids[1]))
	require.NoError(t, dm.DeallocatePage(ids[2]))

	// 复用被释放的页号，而不是扩展文件
	got := map[PageID]bool{}
	for i := 0; i < 2; i++ {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		got[id] = true
	}
	assert.True(t, got[ids[1]] || got[ids[2]])
	for id := range got {
		assert.LessOrEqual(t, uint32(id), uint32(5))
	}
}

func TestDiskManagerFreelistPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := NewDiskManager(path)
	require.NoError(t, err)

	a, err := dm.AllocatePage()
	require.NoError(t, err)
	b, err := dm.AllocatePage()
	require.NoError(t, err)
	_ = b
	require.NoError(t, dm.DeallocatePage(a))
	require.NoError(t, dm.Close())

	dm2, err := NewDiskManager(path)
	require.NoError(t, err)
	defer dm2.Close()

	id, err := dm2.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, a, id, "freed page id must survive reopen")
}

func TestDiskManagerCatalogRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := NewDiskManager(path)
	require.NoError(t, err)
	require.NoError(t, dm.SetCatalogRoot(7))
	require.NoError(t, dm.Close())

	dm2, err := NewDiskManager(path)
	require.NoError(t, err)
	defer dm2.Close()
	assert.Equal(t, PageID(7), dm2.CatalogRoot())
}

func TestFreelistPageCodec(t *testing.T) {
	fp := NewFreelistPage(9)
	require.NoError(t, fp.Push(3))
	require.NoError(t, fp.Push(5))

	decoded, err := DecodeFreelistPage(EncodeFreelistPage(fp))
	require.NoError(t, err)
	assert.Equal(t, PageID(9), decoded.Next)
	assert.Equal(t, []PageID{3, 5}, decoded.PageIDs)

	id, ok := decoded.Pop()
	assert.True(t, ok)
	assert.Equal(t, PageID(5), id)
}

func TestFreelistPageOverflowChains(t *testing.T) {
	dm := newTestDiskManager(t)

	// 先分配足够多的页再全部释放，迫使链表生长出第二页
	n := FreelistPageMaxSize + 10
	ids := make([]PageID, 0, n)
	for i := 0; i < n; i++ {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		require.NoError(t, dm.DeallocatePage(id))
	}
	for i := 0; i < n; i++ {
		id, err := dm.AllocatePage()
		require.NoError(t, err)
		assert.NotEqual(t, InvalidPageID, id)
		assert.LessOrEqual(t, uint32(id), uint32(n))
	}
}
