package api

import (
	"errors"
	"strings"
	"sync"

	"github.com/kasuganosora/pagedb/pkg/buffer"
	"github.com/kasuganosora/pagedb/pkg/catalog"
	"github.com/kasuganosora/pagedb/pkg/executor"
	"github.com/kasuganosora/pagedb/pkg/optimizer"
	"github.com/kasuganosora/pagedb/pkg/parser"
	"github.com/kasuganosora/pagedb/pkg/planner"
	"github.com/kasuganosora/pagedb/pkg/storage"
)

// Config 数据库配置
type Config struct {
	// PoolSize 缓冲池容量（页数）
	PoolSize int
	// LRUKHistory LRU-K 置换的历史深度
	LRUKHistory int
	// Logger 日志，缺省为 Info 级别的标准输出日志
	Logger Logger
	// DebugMode 为真时记录计划树
	DebugMode bool
}

// DefaultConfig 返回缺省配置
func DefaultConfig() *Config {
	return &Config{
		PoolSize:    64,
		LRUKHistory: buffer.DefaultK,
		Logger:      NewDefaultLogger(LogInfo),
	}
}

// Database 数据库句柄：解析 → 计划 → 优化 → 翻译 → 执行。
// 单句柄内的语句串行执行，不支持并发写。
type Database struct {
	mu        sync.Mutex
	path      string
	disk      *storage.DiskManager
	pool      *buffer.BufferPool
	catalog   *catalog.Catalog
	adapter   *parser.SQLAdapter
	planner   *planner.Planner
	optimizer *optimizer.HepOptimizer
	logger    Logger
	debug     bool
	closed    bool
}

// Open 打开或创建位于 path 的单文件数据库
func Open(path string, config *Config) (*Database, error) {
	if path == "" {
		return nil, NewError(ErrCodeInvalidParam, "path cannot be empty", nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = NewDefaultLogger(LogInfo)
	}
	if config.PoolSize <= 0 {
		config.PoolSize = DefaultConfig().PoolSize
	}
	if config.LRUKHistory <= 0 {
		config.LRUKHistory = buffer.DefaultK
	}

	disk, err := storage.NewDiskManager(path)
	if err != nil {
		return nil, NewError(ErrCodeStorage, "open database file", err)
	}
	pool := buffer.NewBufferPoolWithK(config.PoolSize, config.LRUKHistory, disk)
	cat, err := catalog.NewCatalog(pool, disk)
	if err != nil {
		disk.Close()
		return nil, NewError(ErrCodeStorage, "bootstrap catalog", err)
	}

	config.Logger.Debug("opened database %s (pool=%d pages)", path, config.PoolSize)
	return &Database{
		path:      path,
		disk:      disk,
		pool:      pool,
		catalog:   cat,
		adapter:   parser.NewSQLAdapter(),
		planner:   planner.NewPlanner(cat),
		optimizer: optimizer.NewHepOptimizer(),
		logger:    config.Logger,
		debug:     config.DebugMode,
	}, nil
}

// Run 执行一段 SQL。多条语句顺序执行，返回最后一条的结果；
// 任一语句失败立即返回，该语句的部分结果被丢弃。
func (db *Database) Run(sql string) (*QueryResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, NewError(ErrCodeClosed, "database is closed", nil)
	}

	statements, err := db.adapter.Parse(sql)
	if err != nil {
		if errors.Is(err, parser.ErrNotSupport) {
			return nil, NewError(ErrCodeNotSupport, "parse", err)
		}
		return nil, NewError(ErrCodeParser, "parse", err)
	}

	var result *QueryResult
	for _, stmt := range statements {
		result, err = db.runStatement(stmt)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (db *Database) runStatement(stmt *parser.Statement) (*QueryResult, error) {
	logical, err := db.planner.Plan(stmt)
	if err != nil {
		if errors.Is(err, parser.ErrNotSupport) {
			return nil, NewError(ErrCodeNotSupport, "plan", err)
		}
		return nil, NewError(ErrCodePlan, "plan", err)
	}

	optimized, err := db.optimizer.Optimize(logical)
	if err != nil {
		return nil, NewError(ErrCodeInternal, "optimize", err)
	}
	if db.debug {
		db.logger.Debug("optimized plan:\n%s", planner.ExplainTree(optimized))
	}

	physical, err := executor.Translate(optimized)
	if err != nil {
		return nil, NewError(ErrCodeInternal, "translate", err)
	}

	ctx := executor.NewExecutionContext(db.catalog, db.pool)
	rows, schema, err := executor.Execute(ctx, physical)
	if err != nil {
		return nil, NewError(executionErrorCode(err), "execute", err)
	}

	// 提交：脏页写回并落盘
	if err := db.pool.FlushAllPages(); err != nil {
		return nil, NewError(ErrCodeStorage, "flush pages", err)
	}
	if err := db.disk.Sync(); err != nil {
		return nil, NewError(ErrCodeStorage, "sync", err)
	}

	result := &QueryResult{Columns: schema.Columns}
	for _, row := range rows {
		result.Rows = append(result.Rows, row.Values)
	}
	return result, nil
}

// executionErrorCode 区分执行期错误：缓冲池耗尽等不变量违背
// 归为 INTERNAL，其余（页格式、编解码、IO）归为 STORAGE
func executionErrorCode(err error) ErrorCode {
	if strings.Contains(err.Error(), "buffer pool exhausted") {
		return ErrCodeInternal
	}
	return ErrCodeStorage
}

// Close 刷盘并关闭数据库
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	if err := db.pool.FlushAllPages(); err != nil {
		db.disk.Close()
		return NewError(ErrCodeStorage, "flush on close", err)
	}
	if err := db.disk.Close(); err != nil {
		return NewError(ErrCodeStorage, "close data file", err)
	}
	db.logger.Debug("closed database %s", db.path)
	return nil
}
