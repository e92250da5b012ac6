package mysqlsource

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-resultset/internal/sqltest"
	"github.com/zhukovaskychina/xmysql-resultset/resultset"
)

const usersSQL = "SELECT id, name, balance, score, avatar, created, flags FROM users"

var created = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func usersResult() sqltest.Result {
	return sqltest.Result{
		Columns: []string{"id", "name", "balance", "score", "avatar", "created", "flags"},
		Types:   []string{"BIGINT", "VARCHAR", "DECIMAL", "DOUBLE", "BLOB", "DATETIME", "UNSIGNED INT"},
		Rows: [][]driver.Value{
			{[]byte("1"), []byte("alice"), []byte("10.50"), []byte("1.5"), []byte{0x01, 0x02}, created, []byte("4294967295")},
			{[]byte("2"), []byte("bob"), nil, nil, nil, []byte("2021-06-01 00:00:00"), []byte("0")},
			{int64(3), "carol", []byte("0"), float64(2), []byte{}, nil, nil},
		},
	}
}

func TestStore(t *testing.T) {
	db, _ := sqltest.Open(t, map[string]sqltest.Result{usersSQL: usersResult()})

	res, err := Query(context.Background(), db, usersSQL)
	require.NoError(t, err)
	defer res.Release()

	n, err := res.RowCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"id", "name", "balance", "score", "avatar", "created", "flags"}, res.Columns())
	assert.Equal(t, "DECIMAL", res.ColumnTypes()[2])

	rows := res.Rows()
	assert.Equal(t, []interface{}{
		int64(1), "alice", mustDecimal(t, "10.50"), 1.5, []byte{0x01, 0x02}, created, uint64(4294967295),
	}, rows[0])
	assert.Equal(t, []interface{}{
		int64(2), "bob", nil, nil, nil, "2021-06-01 00:00:00", uint64(0),
	}, rows[1])
	// 非字节值原样保留
	assert.Equal(t, int64(3), rows[2][0])
	assert.Equal(t, "carol", rows[2][1])
	assert.Equal(t, float64(2), rows[2][3])
}

func TestStoredResultHandle(t *testing.T) {
	db, _ := sqltest.Open(t, map[string]sqltest.Result{usersSQL: usersResult()})
	res, err := Query(context.Background(), db, usersSQL)
	require.NoError(t, err)

	t.Run("顺序读取", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			row, err := res.FetchNext()
			require.NoError(t, err)
			assert.Len(t, row, 7)
		}
		_, err := res.FetchNext()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("重新定位", func(t *testing.T) {
		require.NoError(t, res.Seek(1))
		row, err := res.FetchNext()
		require.NoError(t, err)
		assert.Equal(t, "bob", row[1])

		err = res.Seek(3)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		err = res.Seek(-1)
		assert.True(t, errors.Is(err, ErrOutOfRange))
	})

	t.Run("释放", func(t *testing.T) {
		assert.NoError(t, res.Release())
		assert.NoError(t, res.Release())

		_, err := res.RowCount()
		assert.Equal(t, ErrInvalidHandle, err)
		assert.Equal(t, ErrInvalidHandle, res.Seek(0))
		_, err = res.FetchNext()
		assert.Equal(t, ErrInvalidHandle, err)
	})
}

func TestStoredResultCursor(t *testing.T) {
	db, _ := sqltest.Open(t, map[string]sqltest.Result{usersSQL: usersResult()})
	res, err := Query(context.Background(), db, usersSQL)
	require.NoError(t, err)

	c, err := resultset.FromSource(res, resultset.Mapping())
	require.NoError(t, err)

	require.NoError(t, c.Seek(2))
	row, err := c.Current()
	require.NoError(t, err)
	name, _ := resultset.Lookup(row, "name")
	assert.Equal(t, "carol", name)

	balance, err := c.Get("balance", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, mustDecimal(t, "10.5").Equal(balance.(decimal.Decimal)))

	require.NoError(t, c.Close())
	_, err = res.RowCount()
	assert.Equal(t, ErrInvalidHandle, err)

	// 已释放的句柄不能再构造游标
	_, err = resultset.FromSource(res, resultset.Mapping())
	assert.True(t, resultset.IsDriverFault(err))
	assert.True(t, errors.Is(err, ErrInvalidHandle))
}

func TestStoreErrors(t *testing.T) {
	serverErr := &mysql.MySQLError{Number: 1146, Message: "Table 'test.nope' doesn't exist"}
	db, _ := sqltest.Open(t, map[string]sqltest.Result{
		"SELECT * FROM nope": {QueryErr: serverErr},
		"SELECT broken": {
			Columns: []string{"n"},
			Types:   []string{"INT"},
			Rows:    [][]driver.Value{{[]byte("x")}},
		},
		"SELECT interrupted": {
			Columns: []string{"n"},
			Rows:    [][]driver.Value{{[]byte("1")}},
			RowErr:  mysql.ErrInvalidConn,
		},
	})

	_, err := Query(context.Background(), db, "SELECT * FROM nope")
	require.Error(t, err)
	me, ok := ServerError(err)
	require.True(t, ok)
	assert.Equal(t, uint16(1146), me.Number)

	_, err = Query(context.Background(), db, "SELECT broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column n")
	_, ok = ServerError(err)
	assert.False(t, ok)

	_, err = Query(context.Background(), db, "SELECT interrupted")
	assert.True(t, errors.Is(err, mysql.ErrInvalidConn))
}
