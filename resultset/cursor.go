package resultset

import (
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Cursor 可定位的结果集游标。
//
// 数据可以来自驱动句柄（流式，按需读取），也可以来自已经全部取回的行（物化）。
// 流式游标维护两个位置：逻辑位置 position 和驱动内部读取位置 driverPosition，
// 两者不一致时 Current 会先重新定位驱动句柄。
//
// Cursor 不是并发安全的。
type Cursor struct {
	source RowSource
	rows   []Row

	columns        []string
	total          int
	position       int
	driverPosition int

	dec      decoder
	released bool
}

// FromSource 基于驱动句柄创建流式游标，句柄归游标所有。
// 构造失败时句柄会在返回前释放。
func FromSource(src RowSource, shape Shape) (*Cursor, error) {
	if src == nil {
		return nil, newDriverError("open", errors.Wrap(ErrInvalidArgument, "nil row source"))
	}
	total, err := src.RowCount()
	if err == nil && total < 0 {
		err = errors.Errorf("invalid row count %d", total)
	}
	if err != nil {
		if rerr := src.Release(); rerr != nil {
			err = errors.Wrapf(err, "release after failed open: %v", rerr)
		}
		return nil, newDriverError("open", err)
	}
	return &Cursor{
		source:  src,
		columns: src.Columns(),
		total:   total,
		dec:     decoder{shape: shape},
	}, nil
}

// FromRows 基于已取回的原始行创建物化游标
func FromRows(columns []string, values [][]interface{}, shape Shape) *Cursor {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = NewRow(columns, v)
	}
	return &Cursor{
		rows:    rows,
		columns: columns,
		total:   len(rows),
		dec:     decoder{shape: shape},
	}
}

// FromRowSet 基于关联行创建物化游标
func FromRowSet(rows []Row, shape Shape) *Cursor {
	var columns []string
	if len(rows) > 0 {
		columns = rows[0].Columns()
	}
	return &Cursor{
		rows:    rows,
		columns: columns,
		total:   len(rows),
		dec:     decoder{shape: shape},
	}
}

// Count 结果集总行数
func (c *Cursor) Count() int { return c.total }

// Key 当前逻辑位置
func (c *Cursor) Key() int { return c.position }

// Columns 列名
func (c *Cursor) Columns() []string { return c.columns }

// Shape 构造时确定的行形态
func (c *Cursor) Shape() Shape { return c.dec.shape }

// Cached 是否为物化游标
func (c *Cursor) Cached() bool { return c.source == nil }

// Has 位置是否存在
func (c *Cursor) Has(position int) bool {
	return position >= 0 && position < c.total
}

// Valid 当前位置是否指向一行
func (c *Cursor) Valid() bool { return c.Has(c.position) }

// Next 逻辑位置后移一行，不访问驱动
func (c *Cursor) Next() { c.position++ }

// Prev 逻辑位置前移一行，不访问驱动
func (c *Cursor) Prev() { c.position-- }

// Rewind 逻辑位置回到第一行，不访问驱动
func (c *Cursor) Rewind() { c.position = 0 }

// Seek 移动到指定位置。先校验范围再访问驱动，失败时位置不变。
func (c *Cursor) Seek(position int) error {
	if c.source != nil && c.released {
		return &seekError{position: position, err: ErrCursorClosed}
	}
	if !c.Has(position) {
		return errors.Wrapf(ErrSeekFailure, "position %d not in [0, %d)", position, c.total)
	}
	if c.source != nil {
		if err := c.source.Seek(position); err != nil {
			c.driverPosition = -1
			return newDriverError("seek", &seekError{position: position, err: err})
		}
		c.driverPosition = position
	}
	c.position = position
	return nil
}

// Current 返回当前位置的行，按行形态解码。
// 空结果集或位置越界时返回 (nil, nil)。
// 流式游标重新定位失败时不返回行，而是返回 (nil, err)，err 匹配 ErrSeekFailure。
func (c *Cursor) Current() (interface{}, error) {
	if !c.Valid() {
		return nil, nil
	}
	if c.source == nil {
		return c.dec.decode(c.rows[c.position])
	}
	if c.released {
		return nil, ErrCursorClosed
	}
	if c.position != c.driverPosition {
		if err := c.Seek(c.position); err != nil {
			return nil, err
		}
	}
	values, err := c.source.FetchNext()
	if err != nil {
		c.driverPosition = -1
		return nil, newDriverError("fetch", err)
	}
	c.driverPosition++
	return c.dec.decode(NewRow(c.columns, values))
}

// Get 取第一行指定列的值，列不存在或为 NULL 时返回 def。
// 会把游标重新定位到第 0 行，迭代中调用会丢失原位置。
func (c *Cursor) Get(column string, def interface{}) (interface{}, error) {
	if c.total == 0 {
		return def, nil
	}
	if err := c.Seek(0); err != nil {
		return def, err
	}
	row, err := c.Current()
	if err != nil {
		return def, err
	}
	val, ok := Lookup(row, column)
	if !ok || val == nil {
		return def, nil
	}
	return val, nil
}

// At 按下标读取一行，下标不存在时返回 (nil, nil)
func (c *Cursor) At(offset int) (interface{}, error) {
	if !c.Has(offset) {
		return nil, nil
	}
	if err := c.Seek(offset); err != nil {
		return nil, err
	}
	return c.Current()
}

// AsSlice 从第 0 行开始读取全部行
func (c *Cursor) AsSlice() ([]interface{}, error) {
	out := make([]interface{}, 0, c.total)
	for c.Rewind(); c.Valid(); c.Next() {
		row, err := c.Current()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// AsMap 以 keyColumn 的值为键读取全部行。
// valueColumn 为空时值为整行，否则为该列的值。
func (c *Cursor) AsMap(keyColumn, valueColumn string) (map[interface{}]interface{}, error) {
	if keyColumn == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "empty key column")
	}
	out := make(map[interface{}]interface{}, c.total)
	for c.Rewind(); c.Valid(); c.Next() {
		row, err := c.Current()
		if err != nil {
			return nil, err
		}
		key, ok := Lookup(row, keyColumn)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidArgument, "column %q not in row %d", keyColumn, c.position)
		}
		if valueColumn == "" {
			out[mapKey(key)] = row
			continue
		}
		val, _ := Lookup(row, valueColumn)
		out[mapKey(key)] = val
	}
	return out, nil
}

func mapKey(v interface{}) interface{} {
	switch k := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(k)
	case decimal.Decimal:
		return k.String()
	case time.Time:
		return k.UTC().Format(time.RFC3339Nano)
	}
	if !reflect.TypeOf(v).Comparable() {
		return fmt.Sprint(v)
	}
	return v
}

// Close 释放游标，可重复调用。流式游标的驱动句柄只释放一次。
func (c *Cursor) Close() error {
	if c.released {
		return nil
	}
	c.released = true
	if c.source == nil {
		return nil
	}
	return newDriverError("release", c.source.Release())
}
