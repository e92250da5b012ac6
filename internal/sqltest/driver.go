// Package sqltest 提供一个内存 database/sql 驱动，用于不依赖 MySQL 服务的测试。
package sqltest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
)

// Result 一条 SQL 对应的结果
type Result struct {
	Columns []string
	Types   []string // DatabaseTypeName，缺省为 VARCHAR
	Rows    [][]driver.Value

	QueryErr error // QueryContext 直接返回的错误
	RowErr   error // 读完 Rows 后返回的错误
}

// Driver 按 SQL 文本返回预置结果，并记录执行过的查询
type Driver struct {
	mu      sync.Mutex
	results map[string]Result
	queries []string
}

var seq int64

// Open 注册一个新的驱动实例并打开 *sql.DB，测试结束时关闭
func Open(t testing.TB, results map[string]Result) (*sql.DB, *Driver) {
	d := &Driver{results: results}
	name := fmt.Sprintf("sqltest-%d", atomic.AddInt64(&seq, 1))
	sql.Register(name, d)
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("sqltest: open %s: %v", name, err)
	}
	t.Cleanup(func() { db.Close() })
	return db, d
}

// Queries 已执行的查询
func (d *Driver) Queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...)
}

func (d *Driver) Open(string) (driver.Conn, error) {
	return &conn{d: d}, nil
}

type conn struct {
	d *Driver
}

func (c *conn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("sqltest: prepared statements are not supported")
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("sqltest: transactions are not supported")
}

func (c *conn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.d.mu.Lock()
	c.d.queries = append(c.d.queries, query)
	res, ok := c.d.results[query]
	c.d.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("sqltest: unexpected query %q", query)
	}
	if res.QueryErr != nil {
		return nil, res.QueryErr
	}
	return &rows{res: res}, nil
}

type rows struct {
	res Result
	pos int
}

func (r *rows) Columns() []string { return r.res.Columns }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.res.Rows) {
		if r.res.RowErr != nil {
			return r.res.RowErr
		}
		return io.EOF
	}
	copy(dest, r.res.Rows[r.pos])
	r.pos++
	return nil
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	if index < len(r.res.Types) {
		return r.res.Types[index]
	}
	return "VARCHAR"
}
