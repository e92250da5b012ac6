// Package database 执行查询并返回结果集游标。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/xmysql-resultset/conf"
	"github.com/zhukovaskychina/xmysql-resultset/logger"
	"github.com/zhukovaskychina/xmysql-resultset/mysqlsource"
	"github.com/zhukovaskychina/xmysql-resultset/resultcache"
	"github.com/zhukovaskychina/xmysql-resultset/resultset"
)

// DB 查询入口
type DB struct {
	db    *sql.DB
	cache *resultcache.Cache

	shape    resultset.Shape
	lifetime time.Duration
}

// Open 按配置连接 MySQL
func Open(cfg *conf.Cfg) (*DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	codec, err := resultcache.ParseCodec(cfg.CacheCodec)
	if err != nil {
		return nil, errors.Wrap(err, "cache.codec")
	}
	shape, err := resultset.ParseShape(cfg.Shape)
	if err != nil {
		return nil, errors.Wrap(err, "cursor.shape")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	d := New(db, resultcache.New(codec))
	d.shape = shape
	d.lifetime = cfg.CacheLifetime
	return d, nil
}

// New 包装已有连接，cache 为 nil 时不缓存
func New(db *sql.DB, cache *resultcache.Cache) *DB {
	return &DB{db: db, cache: cache, shape: resultset.Mapping()}
}

func (d *DB) Close() error {
	return d.db.Close()
}

type queryOptions struct {
	shape    resultset.Shape
	lifetime time.Duration
	args     []interface{}
	err      error
}

// QueryOption 查询选项
type QueryOption func(*queryOptions)

// AsObject 行以通用对象返回
func AsObject() QueryOption {
	return func(o *queryOptions) { o.shape = resultset.GenericObject() }
}

// AsTyped 行以已注册的类型返回
func AsTyped(name string, args ...interface{}) QueryOption {
	return func(o *queryOptions) {
		shape, err := resultset.Named(name, args...)
		if err != nil {
			o.err = err
			return
		}
		o.shape = shape
	}
}

// WithShape 指定行形态
func WithShape(shape resultset.Shape) QueryOption {
	return func(o *queryOptions) { o.shape = shape }
}

// Cached 结果缓存 lifetime，返回物化游标
func Cached(lifetime time.Duration) QueryOption {
	return func(o *queryOptions) { o.lifetime = lifetime }
}

// Args 查询参数
func Args(args ...interface{}) QueryOption {
	return func(o *queryOptions) { o.args = args }
}

// Query 执行查询。未要求缓存时返回流式游标；要求缓存时返回物化游标，
// 未命中会执行查询并写入缓存。调用方负责 Close。
func (d *DB) Query(ctx context.Context, query string, opts ...QueryOption) (*resultset.Cursor, error) {
	o := &queryOptions{shape: d.shape, lifetime: d.lifetime}
	for _, opt := range opts {
		opt(o)
	}
	if o.err != nil {
		return nil, o.err
	}

	log := logger.WithFields(logrus.Fields{"sql": query, "shape": o.shape})
	start := time.Now()

	useCache := d.cache != nil && o.lifetime > 0
	key := cacheKey(query, o.args)
	if useCache {
		snap, ok, err := d.cache.Get(key)
		if err != nil {
			log.Warnf("drop unreadable cache entry: %v", err)
			d.cache.Delete(key)
		}
		if ok {
			log.WithField("rows", len(snap.Rows)).Debug("cache hit")
			return resultset.FromRows(snap.Columns, snap.Rows, o.shape), nil
		}
	}

	res, err := mysqlsource.Query(ctx, d.db, query, o.args...)
	if err != nil {
		if me, ok := mysqlsource.ServerError(err); ok {
			log = log.WithField("errno", me.Number)
		}
		log.Debugf("query failed: %v", err)
		return nil, errors.Wrapf(err, "execute %q", query)
	}
	log = log.WithFields(logrus.Fields{"rows": len(res.Rows()), "elapsed": time.Since(start)})

	if !useCache {
		log.Debug("query executed")
		return resultset.FromSource(res, o.shape)
	}

	columns, rows := res.Columns(), res.Rows()
	if err := res.Release(); err != nil {
		return nil, errors.Wrap(err, "release stored result")
	}
	if err := d.cache.Put(key, columns, rows, o.lifetime); err != nil {
		log.Warnf("cache put failed: %v", err)
	}
	log.Debug("query executed and cached")
	return resultset.FromRows(columns, rows, o.shape), nil
}

// cacheKey 参数不同的同一条 SQL 使用不同的缓存条目
func cacheKey(query string, args []interface{}) string {
	if len(args) == 0 {
		return query
	}
	return fmt.Sprintf("%s\x00%#v", query, args)
}
