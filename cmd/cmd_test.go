package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-resultset/resultset"
)

func testCursor(shape resultset.Shape) *resultset.Cursor {
	return resultset.FromRows(
		[]string{"id", "name", "price"},
		[][]interface{}{
			{int64(1), []byte("tea"), decimal.New(150, -2)},
			{int64(2), "coffee", nil},
			{int64(3), "water", decimal.New(5, -1)},
		},
		shape,
	)
}

func TestWriteRows(t *testing.T) {
	t.Run("全部行", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeRows(&buf, testCursor(resultset.Mapping()), 0, 0))
		assert.Equal(t,
			`{"id":1,"name":"tea","price":"1.5"}`+"\n"+
				`{"id":2,"name":"coffee","price":null}`+"\n"+
				`{"id":3,"name":"water","price":"0.5"}`+"\n",
			buf.String())
	})

	t.Run("offset 和 limit", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeRows(&buf, testCursor(resultset.GenericObject()), 1, 1))
		assert.Equal(t, `{"id":2,"name":"coffee","price":null}`+"\n", buf.String())
	})

	t.Run("对象中的二进制列按文本输出", func(t *testing.T) {
		var buf bytes.Buffer
		c := resultset.FromRows([]string{"name", "blob", "name"},
			[][]interface{}{{[]byte("tea"), []byte{'o', 'k'}, []byte("green tea")}}, resultset.GenericObject())
		require.NoError(t, writeRows(&buf, c, 0, 0))
		assert.Equal(t, `{"name":"green tea","blob":"ok"}`+"\n", buf.String())
	})

	t.Run("调用方类型缺列时原样输出", func(t *testing.T) {
		type item struct {
			ID int64 `json:"id"`
		}
		var buf bytes.Buffer
		c := resultset.FromRows([]string{"id", "name"}, [][]interface{}{{int64(4), []byte("tea")}},
			resultset.Typed("cmd.item", func(row resultset.Row, _ ...interface{}) (interface{}, error) {
				id, _ := row.Get("id")
				return &item{ID: id.(int64)}, nil
			}))
		require.NoError(t, writeRows(&buf, c, 0, 0))
		assert.Equal(t, `{"id":4}`+"\n", buf.String())
	})

	t.Run("offset 越界", func(t *testing.T) {
		var buf bytes.Buffer
		err := writeRows(&buf, testCursor(resultset.Mapping()), 3, 0)
		assert.True(t, resultset.IsSeekFailure(err))
		assert.Empty(t, buf.String())

		err = writeRows(&buf, testCursor(resultset.Mapping()), -1, 0)
		assert.True(t, errors.Is(err, resultset.ErrInvalidArgument))
	})
}

func TestWriteValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeValue(&buf, testCursor(resultset.Mapping()), "name", "none"))
	assert.Equal(t, "tea\n", buf.String())

	buf.Reset()
	require.NoError(t, writeValue(&buf, testCursor(resultset.Mapping()), "missing", "none"))
	assert.Equal(t, "none\n", buf.String())

	buf.Reset()
	empty := resultset.FromRows([]string{"id"}, nil, resultset.Mapping())
	require.NoError(t, writeValue(&buf, empty, "id", "0"))
	assert.Equal(t, "0\n", buf.String())
}

func TestQueryOptions(t *testing.T) {
	opts, err := queryOptions("", 0)
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = queryOptions("object", 30*time.Second)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = queryOptions("cmd.nothing", 0)
	assert.True(t, errors.Is(err, resultset.ErrUnknownType))
}
