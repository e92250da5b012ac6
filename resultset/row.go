package resultset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field 一列的列名和值
type Field struct {
	Column string
	Value  interface{}
}

// Row 保持列顺序的关联行
type Row []Field

// NewRow 按列名与值构造一行，两者长度不一致时以较短者为准
func NewRow(columns []string, values []interface{}) Row {
	n := len(columns)
	if len(values) < n {
		n = len(values)
	}
	row := make(Row, n)
	for i := 0; i < n; i++ {
		row[i] = Field{Column: columns[i], Value: values[i]}
	}
	return row
}

// Get 按列名取值。同名列取最后一个，与 MySQL 关联数组取行的行为一致
func (r Row) Get(column string) (interface{}, bool) {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i].Column == column {
			return r[i].Value, true
		}
	}
	return nil, false
}

// Columns 返回列名
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Column
	}
	return cols
}

// Values 返回列值
func (r Row) Values() []interface{} {
	vals := make([]interface{}, len(r))
	for i, f := range r {
		vals[i] = f.Value
	}
	return vals
}

// ToMap 转换为普通 map（丢失列顺序）
func (r Row) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(r))
	for _, f := range r {
		m[f.Column] = f.Value
	}
	return m
}

func (r Row) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s:%v", f.Column, f.Value)
	}
	sb.WriteByte('}')
	return sb.String()
}

// MarshalJSON 按列顺序输出 JSON 对象
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
