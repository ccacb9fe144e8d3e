package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/pagedb/pkg/storage"
)

func newTestPool(t *testing.T, size int) (*BufferPool, *storage.DiskManager) {
	t.Helper()
	dm, err := storage.NewDiskManager(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return NewBufferPool(size, dm), dm
}

func TestBufferPoolNewAndFetch(t *testing.T) {
	bp, _ := newTestPool(t, 4)

	page, err := bp.NewPage()
	require.NoError(t, err)
	id := page.ID()
	assert.NotEqual(t, storage.InvalidPageID, id)
	assert.Equal(t, 1, page.PinCount())

	copy(page.Data(), []byte("payload"))
	require.NoError(t, bp.UnpinPage(id, true))

	again, err := bp.FetchPage(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), again.Data()[:7])
	require.NoError(t, bp.UnpinPage(id, false))
}

func TestBufferPoolEvictionWritesBackDirtyPage(t *testing.T) {
	bp, dm := newTestPool(t, 2)

	p1, err := bp.NewPage()
	require.NoError(t, err)
	id1 := p1.ID()
	copy(p1.Data(), []byte("dirty1"))
	require.NoError(t, bp.UnpinPage(id1, true))

	// 再装满并淘汰，迫使 id1 写回
	for i := 0; i < 3; i++ {
		p, err := bp.NewPage()
		require.NoError(t, err)
		require.NoError(t, bp.UnpinPage(p.ID(), false))
	}

	buf := make([]byte, storage.PageSize)
	require.NoError(t, dm.ReadPage(id1, buf))
	assert.Equal(t, []byte("dirty1"), buf[:6])
}

func TestBufferPoolAllPinnedFails(t *testing.T) {
	bp, _ := newTestPool(t, 2)

	p1, err := bp.NewPage()
	require.NoError(t, err)
	p2, err := bp.NewPage()
	require.NoError(t, err)

	_, err = bp.NewPage()
	assert.Error(t, err, "no evictable frame must be an error, not a hang")

	require.NoError(t, bp.UnpinPage(p1.ID(), false))
	_, err = bp.NewPage()
	assert.NoError(t, err)
	_ = p2
}

func TestBufferPoolPinnedPageNotEvicted(t *testing.T) {
	bp, _ := newTestPool(t, 2)

	pinned, err := bp.NewPage()
	require.NoError(t, err)
	copy(pinned.Data(), []byte("keep"))

	other, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(other.ID(), false))

	// 唯一可淘汰的是 other；pinned 必须留在池中
	p3, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(p3.ID(), false))

	assert.Equal(t, []byte("keep"), pinned.Data()[:4])
	require.NoError(t, bp.UnpinPage(pinned.ID(), false))
}

func TestBufferPoolFlushAllIdempotent(t *testing.T) {
	bp, dm := newTestPool(t, 4)

	for i := 0; i < 3; i++ {
		p, err := bp.NewPage()
		require.NoError(t, err)
		p.Data()[0] = byte(i + 1)
		require.NoError(t, bp.UnpinPage(p.ID(), true))
	}

	require.NoError(t, bp.FlushAllPages())
	writes := dm.NumWrites()

	// 没有新的写入时，第二次刷盘不产生磁盘写
	require.NoError(t, bp.FlushAllPages())
	assert.Equal(t, writes, dm.NumWrites())
}

func TestBufferPoolDeletePage(t *testing.T) {
	bp, _ := newTestPool(t, 4)

	p, err := bp.NewPage()
	require.NoError(t, err)
	id := p.ID()

	assert.Error(t, bp.DeletePage(id), "pinned page cannot be deleted")

	require.NoError(t, bp.UnpinPage(id, false))
	require.NoError(t, bp.DeletePage(id))

	// 页号可被再次分配
	p2, err := bp.NewPage()
	require.NoError(t, err)
	assert.Equal(t, id, p2.ID())
	require.NoError(t, bp.UnpinPage(p2.ID(), false))
}

func TestBufferPoolUnpinErrors(t *testing.T) {
	bp, _ := newTestPool(t, 2)

	assert.Error(t, bp.UnpinPage(42, false))

	p, err := bp.NewPage()
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(p.ID(), false))
	assert.Error(t, bp.UnpinPage(p.ID(), false), "double unpin must fail")
}
