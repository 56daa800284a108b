package models

import (
	"time"
)

// 注意：
// - 保持与 internal/migrate/migrations 对齐
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// Device 映射 devices 表（账号下的 eWON 目录）
type Device struct {
	// 主键
	ID int64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	// Talk2M 侧的设备 ID
	Talk2MID int64 `gorm:"column:talk2m_id;not null;uniqueIndex" json:"talk2mId"`
	// 设备名，同时是 device/{name}/... 路由的路径段
	Name        string `gorm:"column:name;type:text;not null;uniqueIndex" json:"name"`
	EncodedName string `gorm:"column:encoded_name;type:text;not null;default:''" json:"encodedName"`
	// online / offline
	Status      string `gorm:"column:status;type:text;not null;default:''" json:"status"`
	Description string `gorm:"column:description;type:text;not null;default:''" json:"description"`
	M2WebServer string `gorm:"column:m2web_server;type:text;not null;default:''" json:"m2webServer"`
	// 最近一次从 getewons 同步的时间
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"lastSyncedAt,omitempty"`
	// 审计字段
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Device) TableName() string { return "devices" }

// Online 目录中记录的状态是否在线
func (d Device) Online() bool { return d.Status == "online" }
