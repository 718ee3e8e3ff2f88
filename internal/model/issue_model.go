package model

import (
	"time"
)

// IssueModel 悬赏问题，按 URL 缓存
type IssueModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Url         string     `json:"url" gorm:"not null;uniqueIndex;size:512"`
	Title       string     `json:"title"`
	State       string     `json:"state" gorm:"not null;default:'unknown'"`
	LastFetched *time.Time `json:"last_fetched"`
}

// IssueStateUnknown 尚未抓取状态
const IssueStateUnknown = "unknown"

// TableName 自定义表名
func (IssueModel) TableName() string {
	return "issue"
}
