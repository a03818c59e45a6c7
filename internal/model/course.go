package model

import "time"

type LessonType string

const (
	LessonVideo    LessonType = "video"
	LessonText     LessonType = "text"
	LessonQuiz     LessonType = "quiz"
	LessonExercise LessonType = "exercise"
	LessonProject  LessonType = "project"
)

type QuizQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// LessonContent 按课时类型取用的变体负载，进度引擎只读课时身份与顺序，从不读内容
type LessonContent struct {
	VideoURL     string         `json:"videoUrl,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Text         string         `json:"text,omitempty"`
	Questions    []QuizQuestion `json:"questions,omitempty"`
	Instructions string         `json:"instructions,omitempty"`
	StarterCode  string         `json:"starterCode,omitempty"`
}

type Lesson struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Type     LessonType    `json:"type"`
	Duration int           `json:"duration"` // 分钟
	Content  LessonContent `json:"content"`
}

type Module struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

// Course 课程内容树。模块顺序和模块内课时顺序共同构成课程的规范课时序
type Course struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	InstructorID   string    `json:"instructorId"`
	InstructorName string    `json:"instructorName"`
	Category       string    `json:"category"`
	Level          string    `json:"level"`
	Price          float64   `json:"price"`
	Skills         []string  `json:"skills,omitempty"`
	Published      bool      `json:"published"`
	Modules        []Module  `json:"modules"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (c *Course) IsFree() bool {
	return c.Price <= 0
}

// TotalLessons 课程扁平化后的课时总数
func (c *Course) TotalLessons() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}

// TotalDuration 所有课时时长之和（分钟）
func (c *Course) TotalDuration() int {
	total := 0
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			total += l.Duration
		}
	}
	return total
}

// FlattenLessons 规范课时序：模块序优先，模块内课时序次之
func (c *Course) FlattenLessons() []string {
	ids := make([]string, 0, c.TotalLessons())
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// NextLesson 返回扁平课时序中紧随 lessonID 的课时；lessonID 是最后一个
// 课时或不在课程中时返回空串。空模块被跳过。
func (c *Course) NextLesson(lessonID string) string {
	flat := c.FlattenLessons()
	for i, id := range flat {
		if id == lessonID {
			if i+1 < len(flat) {
				return flat[i+1]
			}
			return ""
		}
	}
	return ""
}

// FindLesson 在课程树中查找课时
func (c *Course) FindLesson(lessonID string) (*Lesson, bool) {
	for mi := range c.Modules {
		for li := range c.Modules[mi].Lessons {
			if c.Modules[mi].Lessons[li].ID == lessonID {
				return &c.Modules[mi].Lessons[li], true
			}
		}
	}
	return nil, false
}
