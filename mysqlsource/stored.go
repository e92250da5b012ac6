// Package mysqlsource 基于 go-sql-driver/mysql 的结果句柄。
//
// database/sql 的 Rows 只能向前读取，这里按 MySQL 客户端 store result 的方式
// 把结果缓冲在客户端，从而提供行数、重新定位和按位置读取。
package mysqlsource

import (
	"context"
	"database/sql"
	"io"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/xmysql-resultset/resultset"
)

var (
	ErrInvalidHandle = errors.New("result handle is released")
	ErrOutOfRange    = errors.New("row offset out of range")
)

// Queryer *sql.DB、*sql.Conn、*sql.Tx 均满足
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// StoredResult 已缓冲在客户端的结果集，实现 resultset.RowSource
type StoredResult struct {
	columns []string
	types   []string
	rows    [][]interface{}

	pos      int
	released bool
}

var _ resultset.RowSource = (*StoredResult)(nil)

// Query 执行查询并缓冲全部结果
func Query(ctx context.Context, q Queryer, query string, args ...interface{}) (*StoredResult, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	return Store(rows)
}

// Store 读取并缓冲 rows，无论成功与否都会关闭 rows
func Store(rows *sql.Rows) (res *StoredResult, err error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			res, err = nil, errors.Wrap(cerr, "close rows")
		}
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "columns")
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, "column types")
	}
	types := make([]string, len(colTypes))
	for i, ct := range colTypes {
		types[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	res = &StoredResult{columns: columns, types: types}
	dest := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrapf(err, "scan row %d", len(res.rows))
		}
		row := make([]interface{}, len(columns))
		for i, v := range dest {
			if row[i], err = convertValue(v, types[i]); err != nil {
				return nil, errors.Wrapf(err, "row %d column %s", len(res.rows), columns[i])
			}
		}
		res.rows = append(res.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}
	return res, nil
}

// convertValue 按列类型把文本协议返回的字节转成 Go 值
func convertValue(v interface{}, typeName string) (interface{}, error) {
	b, ok := v.([]byte)
	if !ok {
		return v, nil
	}
	s := string(b)
	unsigned := strings.HasPrefix(typeName, "UNSIGNED ")
	switch strings.TrimPrefix(typeName, "UNSIGNED ") {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		if unsigned {
			return strconv.ParseUint(s, 10, 64)
		}
		return strconv.ParseInt(s, 10, 64)
	case "DECIMAL":
		return decimal.NewFromString(s)
	case "FLOAT", "DOUBLE":
		return strconv.ParseFloat(s, 64)
	case "BINARY", "VARBINARY", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BIT", "GEOMETRY":
		return append([]byte(nil), b...), nil
	default:
		return s, nil
	}
}

// Columns 列名
func (r *StoredResult) Columns() []string { return r.columns }

// ColumnTypes 每列的数据库类型名
func (r *StoredResult) ColumnTypes() []string { return r.types }

// Rows 缓冲的全部行，调用方不应修改
func (r *StoredResult) Rows() [][]interface{} { return r.rows }

// RowCount 缓冲的行数，句柄已释放时返回 ErrInvalidHandle
func (r *StoredResult) RowCount() (int, error) {
	if r.released {
		return 0, ErrInvalidHandle
	}
	return len(r.rows), nil
}

// Seek 移动内部读取位置
func (r *StoredResult) Seek(position int) error {
	if r.released {
		return ErrInvalidHandle
	}
	if position < 0 || position >= len(r.rows) {
		return errors.Wrapf(ErrOutOfRange, "offset %d, rows %d", position, len(r.rows))
	}
	r.pos = position
	return nil
}

// FetchNext 读取内部位置上的行并后移
func (r *StoredResult) FetchNext() ([]interface{}, error) {
	if r.released {
		return nil, ErrInvalidHandle
	}
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

// Release 释放缓冲，可重复调用
func (r *StoredResult) Release() error {
	if r.released {
		return nil
	}
	r.released = true
	r.rows = nil
	return nil
}

// ServerError 取出 MySQL 服务端返回的错误
func ServerError(err error) (*mysql.MySQLError, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
