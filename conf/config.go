package conf

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

/*
xcursor.ini 示例:

[mysql]
host     = 127.0.0.1
port     = 3306
user     = root
password =
database = test
charset  = utf8mb4
timeout  = 5s
; dsn 非空时忽略上面的连接参数
dsn      =

[cursor]
shape = mapping

[cache]
codec    = snappy
lifetime = 0s

[logs]
log_error = /var/log/xcursor/error.log
log_infos = /var/log/xcursor/info.log
log_level = info
*/

// Cfg 运行配置
type Cfg struct {
	// mysql
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	Charset   string
	Timeout   time.Duration
	ParseTime bool
	RawDSN    string

	// cursor
	Shape string

	// cache
	CacheCodec    string
	CacheLifetime time.Duration

	// logs
	LogError string
	LogInfos string
	LogLevel string
}

// NewCfg 默认配置
func NewCfg() *Cfg {
	return &Cfg{
		Host:       "127.0.0.1",
		Port:       3306,
		User:       "root",
		Charset:    "utf8mb4",
		Timeout:    5 * time.Second,
		Shape:      "mapping",
		CacheCodec: "snappy",
		LogLevel:   "info",
	}
}

// Load 根据扩展名加载 ini 或 toml 配置，未出现的键保持默认值
func (cfg *Cfg) Load(path string) (*Cfg, error) {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = cfg.loadToml(path)
	default:
		err = cfg.loadIni(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

func (cfg *Cfg) loadIni(path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.parseMysqlCfg(file.Section("mysql")); err != nil {
		return err
	}
	cfg.Shape = file.Section("cursor").Key("shape").MustString(cfg.Shape)
	if err := cfg.parseCacheCfg(file.Section("cache")); err != nil {
		return err
	}
	logs := file.Section("logs")
	cfg.LogError = logs.Key("log_error").MustString(cfg.LogError)
	cfg.LogInfos = logs.Key("log_infos").MustString(cfg.LogInfos)
	cfg.LogLevel = logs.Key("log_level").MustString(cfg.LogLevel)
	return nil
}

func (cfg *Cfg) parseMysqlCfg(section *ini.Section) error {
	cfg.Host = section.Key("host").MustString(cfg.Host)
	cfg.User = section.Key("user").MustString(cfg.User)
	cfg.Password = section.Key("password").MustString(cfg.Password)
	cfg.Database = section.Key("database").MustString(cfg.Database)
	cfg.Charset = section.Key("charset").MustString(cfg.Charset)
	cfg.RawDSN = section.Key("dsn").MustString(cfg.RawDSN)

	if section.HasKey("port") {
		port, err := section.Key("port").Int()
		if err != nil {
			return errors.Wrap(err, "mysql.port")
		}
		cfg.Port = port
	}
	if section.HasKey("timeout") {
		timeout, err := section.Key("timeout").Duration()
		if err != nil {
			return errors.Wrap(err, "mysql.timeout")
		}
		cfg.Timeout = timeout
	}
	if section.HasKey("parse_time") {
		parseTime, err := section.Key("parse_time").Bool()
		if err != nil {
			return errors.Wrap(err, "mysql.parse_time")
		}
		cfg.ParseTime = parseTime
	}
	return nil
}

func (cfg *Cfg) parseCacheCfg(section *ini.Section) error {
	cfg.CacheCodec = section.Key("codec").MustString(cfg.CacheCodec)
	if section.HasKey("lifetime") {
		lifetime, err := section.Key("lifetime").Duration()
		if err != nil {
			return errors.Wrap(err, "cache.lifetime")
		}
		cfg.CacheLifetime = lifetime
	}
	return nil
}

func (cfg *Cfg) loadToml(path string) error {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return err
	}
	str := func(key string, dst *string) error {
		if !tree.Has(key) {
			return nil
		}
		v, ok := tree.Get(key).(string)
		if !ok {
			return errors.Errorf("%s: expected string", key)
		}
		*dst = v
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		var s string
		if err := str(key, &s); err != nil || s == "" {
			return err
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrap(err, key)
		}
		*dst = d
		return nil
	}

	for key, dst := range map[string]*string{
		"mysql.host":     &cfg.Host,
		"mysql.user":     &cfg.User,
		"mysql.password": &cfg.Password,
		"mysql.database": &cfg.Database,
		"mysql.charset":  &cfg.Charset,
		"mysql.dsn":      &cfg.RawDSN,
		"cursor.shape":   &cfg.Shape,
		"cache.codec":    &cfg.CacheCodec,
		"logs.log_error": &cfg.LogError,
		"logs.log_infos": &cfg.LogInfos,
		"logs.log_level": &cfg.LogLevel,
	} {
		if err := str(key, dst); err != nil {
			return err
		}
	}
	if err := dur("mysql.timeout", &cfg.Timeout); err != nil {
		return err
	}
	if err := dur("cache.lifetime", &cfg.CacheLifetime); err != nil {
		return err
	}
	if tree.Has("mysql.port") {
		port, ok := tree.Get("mysql.port").(int64)
		if !ok {
			return errors.New("mysql.port: expected integer")
		}
		cfg.Port = int(port)
	}
	if tree.Has("mysql.parse_time") {
		parseTime, ok := tree.Get("mysql.parse_time").(bool)
		if !ok {
			return errors.New("mysql.parse_time: expected boolean")
		}
		cfg.ParseTime = parseTime
	}
	return nil
}

// DSN 生成 go-sql-driver/mysql 连接串，配置了 dsn 时只做校验
func (cfg *Cfg) DSN() (string, error) {
	if cfg.RawDSN != "" {
		if _, err := mysql.ParseDSN(cfg.RawDSN); err != nil {
			return "", errors.Wrap(err, "mysql.dsn")
		}
		return cfg.RawDSN, nil
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return "", errors.Errorf("mysql.port %d out of range", cfg.Port)
	}
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Database
	c.Timeout = cfg.Timeout
	c.ParseTime = cfg.ParseTime
	if cfg.Charset != "" {
		c.Params = map[string]string{"charset": cfg.Charset}
	}
	return c.FormatDSN(), nil
}
