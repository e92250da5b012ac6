package resultset

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"
)

// ShapeKind 行形态
type ShapeKind uint8

const (
	ShapeMapping ShapeKind = iota // 关联行 Row
	ShapeObject                   // 每列一个字段的匿名结构体
	ShapeTyped                    // 调用方指定类型，由构造函数生成
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeMapping:
		return "mapping"
	case ShapeObject:
		return "object"
	case ShapeTyped:
		return "typed"
	default:
		return "unknown"
	}
}

// ColumnTag 通用对象字段上记录原始列名的 tag 键
const ColumnTag = "column"

// Constructor 由一行数据和额外构造参数生成调用方类型的实例
type Constructor func(row Row, args ...interface{}) (interface{}, error)

// Shape 行解码策略，在构造游标时确定
type Shape struct {
	kind ShapeKind
	name string
	ctor Constructor
	args []interface{}
}

// Mapping 以关联行返回
func Mapping() Shape {
	return Shape{kind: ShapeMapping}
}

// GenericObject 以通用对象返回
func GenericObject() Shape {
	return Shape{kind: ShapeObject}
}

// Typed 以调用方类型返回，args 会原样传给 ctor
func Typed(name string, ctor Constructor, args ...interface{}) Shape {
	return Shape{kind: ShapeTyped, name: name, ctor: ctor, args: args}
}

// Kind 行形态种类
func (s Shape) Kind() ShapeKind { return s.kind }

// Name 调用方类型名，非 typed 时为空
func (s Shape) Name() string { return s.name }

// Args 传给构造函数的额外参数
func (s Shape) Args() []interface{} { return s.args }

func (s Shape) String() string {
	if s.kind == ShapeTyped {
		return fmt.Sprintf("typed(%s)", s.name)
	}
	return s.kind.String()
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register 按类型名注册构造函数，重复注册会覆盖
func Register(name string, ctor Constructor) {
	if name == "" || ctor == nil {
		panic("resultset: Register with empty name or nil constructor")
	}
	registryMu.Lock()
	registry[name] = ctor
	registryMu.Unlock()
}

// Named 按已注册的类型名生成行形态
func Named(name string, args ...interface{}) (Shape, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return Shape{}, errors.Wrapf(ErrUnknownType, "type %q is not registered", name)
	}
	return Typed(name, ctor, args...), nil
}

// ParseShape 解析 mapping / object / 已注册类型名
func ParseShape(s string, args ...interface{}) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mapping", "array", "assoc":
		return Mapping(), nil
	case "object", "generic":
		return GenericObject(), nil
	default:
		return Named(s, args...)
	}
}

// decoder 按行形态解码一行，缓存通用对象的结构体类型
type decoder struct {
	shape Shape

	objColumns []string
	objType    reflect.Type
	objIndex   map[string]int
}

func (d *decoder) decode(row Row) (interface{}, error) {
	switch d.shape.kind {
	case ShapeMapping:
		return row, nil
	case ShapeObject:
		return d.decodeObject(row), nil
	case ShapeTyped:
		if d.shape.ctor == nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "typed shape %q has no constructor", d.shape.name)
		}
		obj, err := d.shape.ctor(row, d.shape.args...)
		if err != nil {
			return nil, errors.Wrapf(err, "construct %s", d.shape.name)
		}
		return obj, nil
	default:
		return nil, errors.Wrapf(ErrInvalidArgument, "row shape %d", d.shape.kind)
	}
}

func (d *decoder) decodeObject(row Row) interface{} {
	columns := row.Columns()
	if d.objType == nil || !sameColumns(d.objColumns, columns) {
		d.objType, d.objIndex = objectType(columns)
		d.objColumns = columns
	}
	v := reflect.New(d.objType).Elem()
	for _, f := range row {
		field := v.Field(d.objIndex[f.Column])
		if f.Value == nil {
			field.Set(reflect.Zero(field.Type()))
			continue
		}
		field.Set(reflect.ValueOf(f.Value))
	}
	return v.Addr().Interface()
}

// objectType 为一组列构造结构体类型，同名列只保留一个字段
func objectType(columns []string) (reflect.Type, map[string]int) {
	index := make(map[string]int, len(columns))
	used := make(map[string]bool, len(columns))
	fields := make([]reflect.StructField, 0, len(columns))
	anyType := reflect.TypeOf((*interface{})(nil)).Elem()
	for _, col := range columns {
		if _, ok := index[col]; ok {
			continue
		}
		index[col] = len(fields)
		fields = append(fields, reflect.StructField{
			Name: fieldName(col, used),
			Type: anyType,
			Tag:  reflect.StructTag(ColumnTag + ":" + strconv.Quote(col) + " json:" + strconv.Quote(col)),
		})
	}
	return reflect.StructOf(fields), index
}

// fieldName 把列名转成导出的 Go 字段名，例如 user_id -> UserId
func fieldName(column string, used map[string]bool) string {
	var sb strings.Builder
	upper := true
	for _, r := range column {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	name := sb.String()
	if first := []rune(name); len(first) == 0 || !unicode.IsUpper(first[0]) {
		name = "F" + name
	}
	base := name
	for i := 2; used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	used[name] = true
	return name
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Lookup 从已解码的行中按列名取值。
// 支持 Row、map[string]interface{}、带 Get 方法的类型，以及结构体
// （依次匹配 column tag、db tag、忽略大小写的字段名）。
// 通用对象的字段都带 column tag，不做字段名匹配。
func Lookup(decoded interface{}, column string) (interface{}, bool) {
	switch v := decoded.(type) {
	case nil:
		return nil, false
	case Row:
		return v.Get(column)
	case map[string]interface{}:
		val, ok := v[column]
		return val, ok
	case interface {
		Get(string) (interface{}, bool)
	}:
		return v.Get(column)
	}

	rv := reflect.ValueOf(decoded)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	rt := rv.Type()
	for _, key := range []string{ColumnTag, "db"} {
		for i := 0; i < rt.NumField(); i++ {
			if tag, ok := rt.Field(i).Tag.Lookup(key); ok && tag == column {
				return fieldValue(rv.Field(i))
			}
		}
	}
	// 带 column tag 的结构体只按原始列名匹配
	if hasColumnTag(rt) {
		return nil, false
	}
	for i := 0; i < rt.NumField(); i++ {
		if strings.EqualFold(rt.Field(i).Name, column) {
			return fieldValue(rv.Field(i))
		}
	}
	return nil, false
}

func fieldValue(v reflect.Value) (interface{}, bool) {
	if !v.CanInterface() {
		return nil, false
	}
	return v.Interface(), true
}

func hasColumnTag(rt reflect.Type) bool {
	for i := 0; i < rt.NumField(); i++ {
		if _, ok := rt.Field(i).Tag.Lookup(ColumnTag); ok {
			return true
		}
	}
	return false
}
