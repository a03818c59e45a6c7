package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	err := s.Create(ctx, "courses", "c1", map[string]interface{}{"title": "Go"})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "courses", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", doc.ID)
	assert.Equal(t, "Go", doc.Data["title"])

	// 重复创建返回已存在错误，这是上层幂等性的基础
	err = s.Create(ctx, "courses", "c1", map[string]interface{}{"title": "Go 2"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.Get(ctx, "courses", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreMergeSemantics(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.Create(ctx, "enrollments", "u1_c1", map[string]interface{}{
		"status": "active",
		"progress": map[string]interface{}{
			"completedLessons": []interface{}{"l1"},
			"progress":         float64(25),
			"currentLesson":    "l1",
		},
	}))

	// 合并写：嵌套对象递归合并，数组整体替换
	require.NoError(t, s.Set(ctx, "enrollments", "u1_c1", map[string]interface{}{
		"progress": map[string]interface{}{
			"completedLessons": []interface{}{"l1", "l2"},
			"progress":         float64(50),
		},
	}, true))

	doc, err := s.Get(ctx, "enrollments", "u1_c1")
	require.NoError(t, err)
	assert.Equal(t, "active", doc.Data["status"])

	progress := doc.Data["progress"].(map[string]interface{})
	assert.Equal(t, []interface{}{"l1", "l2"}, progress["completedLessons"])
	assert.Equal(t, float64(50), progress["progress"])
	// 未出现在补丁中的兄弟字段保留
	assert.Equal(t, "l1", progress["currentLesson"])

	// 覆盖写：整文档替换
	require.NoError(t, s.Set(ctx, "enrollments", "u1_c1", map[string]interface{}{
		"status": "completed",
	}, false))
	doc, err = s.Get(ctx, "enrollments", "u1_c1")
	require.NoError(t, err)
	assert.Nil(t, doc.Data["progress"])
}

func TestMemStoreUpdateRequiresExistence(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	err := s.Update(ctx, "users", "missing", map[string]interface{}{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Create(ctx, "users", "u1", map[string]interface{}{"name": "a", "bio": "b"}))
	require.NoError(t, s.Update(ctx, "users", "u1", map[string]interface{}{"name": "c"}))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "c", doc.Data["name"])
	assert.Equal(t, "b", doc.Data["bio"])
}

func TestMemStoreServerTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.Create(ctx, "users", "u1", map[string]interface{}{
		"name":      "a",
		"createdAt": ServerTimestamp,
	}))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	stamp, err := time.Parse(time.RFC3339Nano, doc.Data["createdAt"].(string))
	require.NoError(t, err)
	assert.True(t, stamp.After(before))
}

func TestMemStoreIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	err := s.Increment(ctx, "user_stats", "missing", "completedCourses", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Create(ctx, "user_stats", "u1", map[string]interface{}{
		"completedCourses": float64(2),
	}))

	require.NoError(t, s.Increment(ctx, "user_stats", "u1", "completedCourses", 1))
	// 字段缺失时从零起算
	require.NoError(t, s.Increment(ctx, "user_stats", "u1", "hoursLearned", 1.5))
	require.NoError(t, s.Increment(ctx, "user_stats", "u1", "hoursLearned", 0.5))

	doc, err := s.Get(ctx, "user_stats", "u1")
	require.NoError(t, err)
	assert.Equal(t, float64(3), doc.Data["completedCourses"])
	assert.Equal(t, float64(2), doc.Data["hoursLearned"])
}

func TestMemStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seed := []struct {
		id    string
		data  map[string]interface{}
	}{
		{"c1", map[string]interface{}{"category": "backend", "published": true, "price": float64(0)}},
		{"c2", map[string]interface{}{"category": "backend", "published": false, "price": float64(10)}},
		{"c3", map[string]interface{}{"category": "frontend", "published": true, "price": float64(20)}},
		{"c4", map[string]interface{}{"category": "backend", "published": true, "price": float64(30)}},
	}
	for _, row := range seed {
		require.NoError(t, s.Create(ctx, "courses", row.id, row.data))
	}

	tests := []struct {
		name    string
		filters []Filter
		opts    []QueryOption
		wantIDs []string
	}{
		{
			name:    "equality filter",
			filters: []Filter{Where("category", "==", "backend"), Where("published", "==", true)},
			opts:    []QueryOption{OrderBy("price", false)},
			wantIDs: []string{"c1", "c4"},
		},
		{
			name:    "range filter",
			filters: []Filter{Where("price", ">", float64(5))},
			opts:    []QueryOption{OrderBy("price", false)},
			wantIDs: []string{"c2", "c3", "c4"},
		},
		{
			name:    "limit with descending order",
			filters: nil,
			opts:    []QueryOption{OrderBy("price", true), Limit(2)},
			wantIDs: []string{"c4", "c3"},
		},
		{
			name:    "no match",
			filters: []Filter{Where("category", "==", "devops")},
			wantIDs: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, "courses", tt.filters, tt.opts...)
			require.NoError(t, err)
			ids := make([]string, 0, len(docs))
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestMemStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	var events []Event
	unsubscribe := s.Subscribe("enrollments", func(ev Event) {
		events = append(events, ev)
	})

	require.NoError(t, s.Create(ctx, "enrollments", "u1_c1", map[string]interface{}{"status": "active"}))
	require.NoError(t, s.Set(ctx, "enrollments", "u1_c1", map[string]interface{}{"status": "completed"}, true))
	// 其他集合的写入不触发
	require.NoError(t, s.Create(ctx, "courses", "c1", map[string]interface{}{}))

	require.Len(t, events, 2)
	assert.Equal(t, "u1_c1", events[0].ID)

	unsubscribe()
	require.NoError(t, s.Delete(ctx, "enrollments", "u1_c1"))
	assert.Len(t, events, 2)
}
