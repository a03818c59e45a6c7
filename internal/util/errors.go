package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseNotPublished = errors.New("course not published")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrNotEnrolled        = errors.New("not enrolled in this course")
	ErrCertificateMissing = errors.New("certificate not found")
	ErrInvalidVideoExt    = errors.New("不支持的视频格式")
)
