package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// documentRow MySQL 中的文档行，data 为 JSON 列
type documentRow struct {
	Collection string    `gorm:"primaryKey;size:64"`
	DocID      string    `gorm:"primaryKey;size:191;column:doc_id"`
	Data       string    `gorm:"type:json"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:milli"`
}

func (documentRow) TableName() string {
	return "documents"
}

// MySQLStore 基于 MySQL JSON 列的文档存储。
// 字段级合并用 JSON_MERGE_PATCH，计数器递增用 JSON_SET + JSON_EXTRACT
// 的单条 UPDATE，保证行内原子性。写成功后通过 Redis 发布变更事件，
// Subscribe 订阅对应频道实现跨进程推送失效。
type MySQLStore struct {
	db      *gorm.DB
	rdb     *redis.Client
	log     *zap.Logger
	subMu   sync.Mutex
	nextID  int
	subs    map[string]map[int]func(Event)
	pubsubs map[string]*redis.PubSub
	closed  bool
}

const changeChannelPrefix = "docstore:changes:"

func NewMySQLStore(db *gorm.DB, rdb *redis.Client, log *zap.Logger) (*MySQLStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, err
	}
	return &MySQLStore{
		db:      db,
		rdb:     rdb,
		log:     log,
		subs:    make(map[string]map[int]func(Event)),
		pubsubs: make(map[string]*redis.PubSub),
	}, nil
}

var _ Store = (*MySQLStore)(nil)

func (s *MySQLStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return nil, err
	}
	return &Document{ID: id, Data: data}, nil
}

func (s *MySQLStore) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	raw, err := marshalNormalized(data)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Create(&documentRow{
		Collection: collection,
		DocID:      id,
		Data:       string(raw),
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	s.publish(ctx, collection, id)
	return nil
}

func (s *MySQLStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error {
	raw, err := marshalNormalized(data)
	if err != nil {
		return err
	}
	update := "VALUES(data)"
	if merge {
		update = "JSON_MERGE_PATCH(data, VALUES(data))"
	}
	err = s.db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO documents (collection, doc_id, data, updated_at)
			VALUES (?, ?, ?, NOW(3))
			ON DUPLICATE KEY UPDATE data = %s, updated_at = NOW(3)`, update),
		collection, id, string(raw),
	).Error
	if err != nil {
		return err
	}
	s.publish(ctx, collection, id)
	return nil
}

func (s *MySQLStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	raw, err := marshalNormalized(fields)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Exec(
		`UPDATE documents SET data = JSON_MERGE_PATCH(data, ?), updated_at = NOW(3)
			WHERE collection = ? AND doc_id = ?`,
		string(raw), collection, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 值未变化时 MySQL 也报 0 行，需区分文档缺失
		if _, err := s.Get(ctx, collection, id); err != nil {
			return err
		}
	}
	s.publish(ctx, collection, id)
	return nil
}

func (s *MySQLStore) Delete(ctx context.Context, collection, id string) error {
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Delete(&documentRow{}).Error
	if err != nil {
		return err
	}
	s.publish(ctx, collection, id)
	return nil
}

func (s *MySQLStore) Query(ctx context.Context, collection string, filters []Filter, opts ...QueryOption) ([]Document, error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	q := s.db.WithContext(ctx).Model(&documentRow{}).Where("collection = ?", collection)
	for _, f := range filters {
		clause, arg, err := filterClause(f)
		if err != nil {
			return nil, err
		}
		q = q.Where(clause, arg)
	}
	if o.orderBy != "" {
		dir := "ASC"
		if o.descending {
			dir = "DESC"
		}
		q = q.Order(fmt.Sprintf("JSON_EXTRACT(data, '%s') %s", jsonPath(o.orderBy), dir))
	}
	if o.limit > 0 {
		q = q.Limit(o.limit)
	}

	var rows []documentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: row.DocID, Data: data})
	}
	return docs, nil
}

func (s *MySQLStore) Increment(ctx context.Context, collection, id, field string, delta float64) error {
	path := jsonPath(field)
	res := s.db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE documents
			SET data = JSON_SET(data, '%s', IFNULL(JSON_EXTRACT(data, '%s'), 0) + ?), updated_at = NOW(3)
			WHERE collection = ? AND doc_id = ?`, path, path),
		delta, collection, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, collection, id); err != nil {
			return err
		}
	}
	s.publish(ctx, collection, id)
	return nil
}

func (s *MySQLStore) Subscribe(collection string, fn func(Event)) func() {
	s.subMu.Lock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]func(Event))
		if s.rdb != nil && !s.closed {
			sub := s.rdb.Subscribe(context.Background(), changeChannelPrefix+collection)
			s.pubsubs[collection] = sub
			go s.consume(collection, sub)
		}
	}
	id := s.nextID
	s.nextID++
	s.subs[collection][id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[collection], id)
	}
}

// Close 关闭所有 Redis 订阅，consume 协程随通道关闭而退出
func (s *MySQLStore) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	var firstErr error
	for collection, sub := range s.pubsubs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.pubsubs, collection)
	}
	return firstErr
}

// consume 消费单个集合的 Redis 变更频道，分发给本进程订阅者；
// sub 关闭后 Channel 被关闭，协程随之退出
func (s *MySQLStore) consume(collection string, sub *redis.PubSub) {
	for msg := range sub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			s.log.Warn("invalid change event payload", zap.String("payload", msg.Payload))
			continue
		}
		s.subMu.Lock()
		fns := make([]func(Event), 0, len(s.subs[collection]))
		for _, f := range s.subs[collection] {
			fns = append(fns, f)
		}
		s.subMu.Unlock()
		for _, f := range fns {
			f(ev)
		}
	}
}

func (s *MySQLStore) publish(ctx context.Context, collection, id string) {
	if s.rdb == nil {
		return
	}
	payload, _ := json.Marshal(Event{Collection: collection, ID: id})
	if err := s.rdb.Publish(ctx, changeChannelPrefix+collection, payload).Err(); err != nil {
		// 推送失效是尽力而为，失败只记录不阻塞写入
		s.log.Warn("publish change event failed",
			zap.String("collection", collection), zap.String("id", id), zap.Error(err))
	}
}

func marshalNormalized(data map[string]interface{}) ([]byte, error) {
	norm, err := normalize(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(norm)
}

func jsonPath(field string) string {
	return "$." + field
}

func filterClause(f Filter) (string, interface{}, error) {
	path := jsonPath(f.Field)
	switch f.Op {
	case "==", "!=":
		op := "="
		if f.Op == "!=" {
			op = "<>"
		}
		raw, err := json.Marshal(normalizeValue(f.Value))
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("JSON_EXTRACT(data, '%s') %s CAST(? AS JSON)", path, op), string(raw), nil
	case ">", ">=", "<", "<=":
		switch v := normalizeValue(f.Value).(type) {
		case float64:
			return fmt.Sprintf("CAST(JSON_EXTRACT(data, '%s') AS DECIMAL(20,6)) %s ?", path, f.Op), v, nil
		case string:
			return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(data, '%s')) %s ?", path, f.Op), v, nil
		default:
			return "", nil, fmt.Errorf("unsupported filter value type %T for op %s", f.Value, f.Op)
		}
	default:
		return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
	}
}
