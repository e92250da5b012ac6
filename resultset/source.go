package resultset

// RowSource 由查询执行层提供的驱动结果句柄。
//
// FetchNext 从句柄内部的读取位置取出下一行并前移一位，
// 数据读完时返回 io.EOF。Release 释放句柄，游标保证只调用一次。
type RowSource interface {
	Columns() []string

	RowCount() (int, error)

	Seek(position int) error

	FetchNext() ([]interface{}, error)

	Release() error
}
