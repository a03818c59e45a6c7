package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Document 通用文档，Data 中只包含 JSON 类型（string/float64/bool/map/slice/nil）
type Document struct {
	ID   string
	Data map[string]interface{}
}

// serverTimestamp 写入时由存储端解析为当前时间的占位值
type serverTimestamp struct{}

// ServerTimestamp 服务端时间戳占位符，作为字段值使用
var ServerTimestamp = serverTimestamp{}

// Filter 查询条件，Field 支持点号嵌套路径（如 "progress.progress"）
type Filter struct {
	Field string
	Op    string // "==", "!=", ">", ">=", "<", "<="
	Value interface{}
}

func Where(field, op string, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type queryOptions struct {
	orderBy    string
	descending bool
	limit      int
}

type QueryOption func(*queryOptions)

func OrderBy(field string, descending bool) QueryOption {
	return func(o *queryOptions) {
		o.orderBy = field
		o.descending = descending
	}
}

func Limit(n int) QueryOption {
	return func(o *queryOptions) { o.limit = n }
}

// Event 文档变更通知
type Event struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Store 异步文档存储契约。除 Increment 外不提供任何跨文档并发原语；
// Increment 是唯一的并发安全计数操作，所有计数器字段必须经由它变更。
type Store interface {
	// Get 返回文档，不存在时返回 ErrNotFound
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Create 创建文档，已存在时返回 ErrAlreadyExists
	Create(ctx context.Context, collection, id string, data map[string]interface{}) error
	// Set 写入文档；merge 为 true 时按字段合并（JSON merge patch 语义），否则整体覆盖
	Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error
	// Update 对已有文档做字段级合并，不存在时返回 ErrNotFound
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters []Filter, opts ...QueryOption) ([]Document, error)
	// Increment 原子递增数值字段，文档不存在时返回 ErrNotFound
	Increment(ctx context.Context, collection, id, field string, delta float64) error
	// Subscribe 注册变更回调，远端文档变化时异步触发；返回取消函数
	Subscribe(collection string, fn func(Event)) (unsubscribe func())
}

// Encode 将类型化文档转换为存储用的 map
func Encode(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode 将文档内容解析到类型化结构
func Decode(doc *Document, v interface{}) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// resolveTimestamps 递归替换 ServerTimestamp 占位符，不修改入参
func resolveTimestamps(data map[string]interface{}, now time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case serverTimestamp:
			out[k] = now
		case map[string]interface{}:
			out[k] = resolveTimestamps(val, now)
		default:
			out[k] = v
		}
	}
	return out
}

// normalize 深拷贝并归一化为纯 JSON 类型，避免调用方与存储共享可变状态
func normalize(data map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(resolveTimestamps(data, time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
