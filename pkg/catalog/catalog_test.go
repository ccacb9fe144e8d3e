package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/pagedb/pkg/buffer"
	"github.com/kasuganosora/pagedb/pkg/storage"
	"github.com/kasuganosora/pagedb/pkg/types"
)

func openCatalog(t *testing.T, path string) (*Catalog, *buffer.BufferPool, *storage.DiskManager) {
	t.Helper()
	dm, err := storage.NewDiskManager(path)
	require.NoError(t, err)
	pool := buffer.NewBufferPool(16, dm)
	c, err := NewCatalog(pool, dm)
	require.NoError(t, err)
	return c, pool, dm
}

func userSchema() *types.Schema {
	return types.NewSchema([]types.Column{
		types.NewColumn("id", types.TypeInt32, false),
		types.NewColumn("name", types.TypeVarchar, true),
	})
}

func TestCatalogCreateAndGet(t *testing.T) {
	c, _, dm := openCatalog(t, filepath.Join(t.TempDir(), "cat.db"))
	defer dm.Close()

	info, err := c.CreateTable("users", userSchema())
	require.NoError(t, err)
	assert.NotEqual(t, storage.InvalidPageID, info.FirstPageID)
	assert.Equal(t, "users", info.Schema.Columns[0].Table, "schema must be qualified")

	got, err := c.GetTable("users")
	require.NoError(t, err)
	assert.Same(t, info, got)

	// 限定引用解析到同一张表
	got, err = c.GetTable("main.users")
	require.NoError(t, err)
	assert.Same(t, info, got)

	_, err = c.GetTable("missing")
	assert.Error(t, err)

	_, err = c.CreateTable("users", userSchema())
	assert.Error(t, err, "duplicate table name")
}

func TestCatalogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.db")

	c, pool, dm := openCatalog(t, path)
	info, err := c.CreateTable("users", userSchema())
	require.NoError(t, err)

	tuple, err := types.NewTuple(info.Schema, []types.Value{
		types.NewInt32Value(7),
		types.NewVarcharValue("bob"),
	})
	require.NoError(t, err)
	_, err = info.Heap.InsertTuple(tuple)
	require.NoError(t, err)

	require.NoError(t, pool.FlushAllPages())
	require.NoError(t, dm.Close())

	c2, _, dm2 := openCatalog(t, path)
	defer dm2.Close()

	info2, err := c2.GetTable("users")
	require.NoError(t, err)
	assert.True(t, info.Schema.Equal(info2.Schema))
	assert.Equal(t, info.FirstPageID, info2.FirstPageID)

	_, got, err := info2.Heap.Iterator().Next()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.Value(0).Int)
	assert.Equal(t, "bob", got.Value(1).Str)
}

func TestCatalogManyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.db")
	c, _, dm := openCatalog(t, path)

	names := []string{"alpha", "beta", "gamma", "delta"}
	for _, name := range names {
		_, err := c.CreateTable(name, userSchema())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"alpha", "beta", "delta", "gamma"}, c.TableNames())
	require.NoError(t, dm.Close())

	c2, _, dm2 := openCatalog(t, path)
	defer dm2.Close()
	assert.Equal(t, c.TableNames(), c2.TableNames())
}
