// Package resultcache 缓存已物化的查询结果。
//
// 结果以 SQL 文本的 xxhash 为键，gob 编码后按配置的算法压缩保存，
// 过期后的条目在读取时淘汰。
package resultcache

import (
	"bytes"
	"encoding/gob"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Codec 缓存内容的压缩算法
type Codec uint8

const (
	CodecNone   Codec = 0
	CodecSnappy Codec = 1
	CodecLZ4    Codec = 2
)

var (
	ErrUnsupportedCodec = errors.New("unsupported cache codec")
	ErrCorrupted        = errors.New("cache entry is corrupted")
)

func init() {
	gob.Register(time.Time{})
	gob.Register(decimal.Decimal{})
}

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecSnappy:
		return "snappy"
	case CodecLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseCodec 解析配置中的算法名
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CodecNone, nil
	case "snappy":
		return CodecSnappy, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return CodecNone, errors.Wrapf(ErrUnsupportedCodec, "%q", s)
	}
}

// Snapshot 一次查询的全部结果
type Snapshot struct {
	Columns []string
	Rows    [][]interface{}
	Created time.Time
}

type entry struct {
	sql     string
	codec   Codec
	payload []byte
	expires time.Time
}

// Cache 查询结果缓存，可并发使用
type Cache struct {
	mu      sync.RWMutex
	codec   Codec
	entries map[uint64]entry

	now func() time.Time
}

// New 创建缓存
func New(codec Codec) *Cache {
	return &Cache{
		codec:   codec,
		entries: make(map[uint64]entry),
		now:     time.Now,
	}
}

// Key SQL 文本的缓存键
func Key(sql string) uint64 {
	h := xxhash.New64()
	h.Write([]byte(sql))
	return h.Sum64()
}

func (c *Cache) Codec() Codec { return c.codec }

// Put 保存结果，lifetime <= 0 时删除已有条目
func (c *Cache) Put(sql string, columns []string, rows [][]interface{}, lifetime time.Duration) error {
	if lifetime <= 0 {
		c.Delete(sql)
		return nil
	}
	now := c.now()
	payload, err := encode(c.codec, &Snapshot{Columns: columns, Rows: rows, Created: now})
	if err != nil {
		return errors.Wrapf(err, "cache put %x", Key(sql))
	}

	c.mu.Lock()
	c.entries[Key(sql)] = entry{sql: sql, codec: c.codec, payload: payload, expires: now.Add(lifetime)}
	c.mu.Unlock()
	return nil
}

// Get 读取结果。未命中、过期或键冲突时 ok 为 false
func (c *Cache) Get(sql string) (*Snapshot, bool, error) {
	key := Key(sql)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.sql != sql {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	snap, err := decode(e.codec, e.payload)
	if err != nil {
		return nil, false, errors.Wrapf(err, "cache get %x", key)
	}
	return snap, true, nil
}

// Delete 删除条目
func (c *Cache) Delete(sql string) {
	key := Key(sql)
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.sql == sql {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

// Purge 清理过期条目，返回清理数量
func (c *Cache) Purge() int {
	now := c.now()
	n := 0
	c.mu.Lock()
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
			n++
		}
	}
	c.mu.Unlock()
	return n
}

// Len 条目数量（含未清理的过期条目）
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func encode(codec Codec, snap *Snapshot) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(snap); err != nil {
		return nil, errors.Wrap(err, "gob encode")
	}
	switch codec {
	case CodecNone:
		return raw.Bytes(), nil
	case CodecSnappy:
		return snappy.Encode(nil, raw.Bytes()), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw.Bytes()); err != nil {
			return nil, errors.Wrap(err, "lz4 compress")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "lz4 compress")
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "codec %d", codec)
	}
}

func decode(codec Codec, payload []byte) (*Snapshot, error) {
	var raw []byte
	switch codec {
	case CodecNone:
		raw = payload
	case CodecSnappy:
		b, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupted, "snappy: %v", err)
		}
		raw = b
	case CodecLZ4:
		b, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupted, "lz4: %v", err)
		}
		raw = b
	default:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "codec %d", codec)
	}
	snap := &Snapshot{}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(snap); err != nil {
		return nil, errors.Wrapf(ErrCorrupted, "gob: %v", err)
	}
	return snap, nil
}
