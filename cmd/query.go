package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zhukovaskychina/xmysql-resultset/database"
	"github.com/zhukovaskychina/xmysql-resultset/resultset"
)

var (
	QueryShape  string
	QueryOffset int
	QueryLimit  int
	QueryCache  time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a query and print rows as JSON lines",
	Long: `Run a query and print each row as one JSON object per line.

--offset seeks the cursor before reading, --limit stops after N rows.
--cache keeps the materialized result for the given lifetime.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	d, err := openDB()
	if err != nil {
		return err
	}
	defer d.Close()

	opts, err := queryOptions(QueryShape, QueryCache)
	if err != nil {
		return err
	}
	c, err := d.Query(context.Background(), args[0], opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	return writeRows(os.Stdout, c, QueryOffset, QueryLimit)
}

func queryOptions(shape string, lifetime time.Duration) ([]database.QueryOption, error) {
	var opts []database.QueryOption
	if shape != "" {
		s, err := resultset.ParseShape(shape)
		if err != nil {
			return nil, err
		}
		opts = append(opts, database.WithShape(s))
	}
	if lifetime > 0 {
		opts = append(opts, database.Cached(lifetime))
	}
	return opts, nil
}

// writeRows 从 offset 开始逐行输出 JSON，limit <= 0 表示不限
func writeRows(w io.Writer, c *resultset.Cursor, offset, limit int) error {
	if offset < 0 {
		return errors.Wrapf(resultset.ErrInvalidArgument, "offset %d", offset)
	}
	if offset > 0 {
		if err := c.Seek(offset); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(w)
	for n := 0; c.Valid() && (limit <= 0 || n < limit); n++ {
		row, err := c.Current()
		if err != nil {
			return err
		}
		if err := enc.Encode(printable(c.Columns(), row)); err != nil {
			return errors.Wrap(err, "encode row")
		}
		c.Next()
	}
	return nil
}

// printable 把解码后的行转成按列顺序的 Row，[]byte 输出为文本而不是 base64。
// 调用方类型缺少某列时原样输出。
func printable(columns []string, row interface{}) interface{} {
	r, ok := row.(resultset.Row)
	if !ok {
		if r, ok = objectRow(columns, row); !ok {
			return row
		}
	}
	out := make(resultset.Row, len(r))
	for i, f := range r {
		if b, ok := f.Value.([]byte); ok {
			f.Value = string(b)
		}
		out[i] = f
	}
	return out
}

// objectRow 通过 Lookup 把对象按列名展开，同名列只保留一次
func objectRow(columns []string, obj interface{}) (resultset.Row, bool) {
	seen := make(map[string]bool, len(columns))
	r := make(resultset.Row, 0, len(columns))
	for _, col := range columns {
		if seen[col] {
			continue
		}
		seen[col] = true
		v, ok := resultset.Lookup(obj, col)
		if !ok {
			return nil, false
		}
		r = append(r, resultset.Field{Column: col, Value: v})
	}
	return r, true
}

func init() {
	queryCmd.Flags().StringVarP(&QueryShape, "shape", "s", "", "Row shape: mapping, object or a registered type name")
	queryCmd.Flags().IntVarP(&QueryOffset, "offset", "o", 0, "Seek to this row before printing")
	queryCmd.Flags().IntVarP(&QueryLimit, "limit", "n", 0, "Print at most N rows")
	queryCmd.Flags().DurationVar(&QueryCache, "cache", 0, "Cache the result for this lifetime (e.g. 30s)")
}
