package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhukovaskychina/xmysql-resultset/resultset"
)

var GetDefault string

var getCmd = &cobra.Command{
	Use:   "get <sql> <column>",
	Short: "Print one column of the first row",
	Long: `Print the value of a column from the first row of the result.
When the result is empty or the value is NULL, --default is printed instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	d, err := openDB()
	if err != nil {
		return err
	}
	defer d.Close()

	opts, err := queryOptions("", QueryCache)
	if err != nil {
		return err
	}
	c, err := d.Query(context.Background(), args[0], opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	return writeValue(os.Stdout, c, args[1], GetDefault)
}

func writeValue(w io.Writer, c *resultset.Cursor, column, def string) error {
	v, err := c.Get(column, def)
	if err != nil {
		return err
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	_, err = fmt.Fprintln(w, v)
	return err
}

func init() {
	getCmd.Flags().StringVarP(&GetDefault, "default", "d", "", "Value printed when the column is absent or NULL")
	getCmd.Flags().DurationVar(&QueryCache, "cache", 0, "Cache the result for this lifetime (e.g. 30s)")
}
