package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zhukovaskychina/xmysql-resultset/conf"
	"github.com/zhukovaskychina/xmysql-resultset/database"
	"github.com/zhukovaskychina/xmysql-resultset/logger"
)

var (
	ConfigPath string
	LogLevel   string

	cfg *conf.Cfg
)

var rootCmd = &cobra.Command{
	Use:   "xcursor",
	Short: "MySQL result set cursor",
	Long: `xcursor runs a query against MySQL and walks the result set with a seekable cursor.

Examples:
  xcursor query "SELECT id, name FROM users" --config xcursor.ini
  xcursor query "SELECT * FROM users" --shape object --offset 10 --limit 5
  xcursor query "SELECT * FROM countries" --cache 30s
  xcursor get "SELECT COUNT(*) AS n FROM users" n --default 0`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c := conf.NewCfg()
		if ConfigPath != "" {
			var err error
			if c, err = c.Load(ConfigPath); err != nil {
				return err
			}
		}
		if LogLevel != "" {
			c.LogLevel = LogLevel
		}
		cfg = c
		// 标准输出留给结果行
		return logger.InitLogger(logger.LogConfig{
			ErrorLogPath: c.LogError,
			InfoLogPath:  c.LogInfos,
			LogLevel:     c.LogLevel,
			Output:       os.Stderr,
		})
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func openDB() (*database.DB, error) {
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return database.Open(cfg)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "Config file (.ini or .toml)")
	rootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Override log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(getCmd)
}
