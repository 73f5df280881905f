package model

import (
	"strings"
	"time"
)

// SyncStatus 跟踪 ConfigSchema 与模式制品注册表的镜像状态
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "PENDING"
	SyncStatusSynced    SyncStatus = "SYNCED"
	SyncStatusFailed    SyncStatus = "FAILED"
	SyncStatusOutOfSync SyncStatus = "OUT_OF_SYNC"
)

// CanTransitionTo 报告 syncStatus 状态机是否允许该转移。
//
// OUT_OF_SYNC 从不由本包内任何代码路径写入，仅保留给外部协调工具使用，
// 但状态机本身仍需要承认这条边是合法的。
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	switch s {
	case SyncStatusPending:
		return next == SyncStatusSynced || next == SyncStatusFailed
	case SyncStatusSynced:
		return next == SyncStatusOutOfSync
	case SyncStatusOutOfSync:
		return next == SyncStatusSynced || next == SyncStatusFailed
	case SyncStatusFailed:
		return next == SyncStatusSynced || next == SyncStatusFailed
	default:
		return false
	}
}

// ConfigSchema 是某个服务拥有的带版本号的 JSON 模式
type ConfigSchema struct {
	SchemaID         string
	ServiceName      string
	SchemaVersion    string
	JSONSchema       string
	CreatedAt        time.Time
	CreatedBy        string
	ArtifactID       string
	ArtifactGlobalID int64
	SyncStatus       SyncStatus
	LastSyncAttempt  *time.Time
	SyncError        string
}

// SchemaID 根据 (serviceName, version) 推导确定性主键；
// 版本号中的点号替换为下划线。
func SchemaID(serviceName, version string) string {
	if version == "" {
		version = "1"
	}
	return serviceName + "-v" + strings.ReplaceAll(version, ".", "_")
}

// ArtifactID 推导制品注册表中使用的 id，额外携带 "-config-" 中缀，
// 与 SchemaID 分别推导但都是 (name, version) 的纯函数。
func ArtifactID(serviceName, version string) string {
	if version == "" {
		version = "1"
	}
	return serviceName + "-config-v" + strings.ReplaceAll(version, ".", "_")
}

// DefaultConfigSchemaGroup 是制品注册表中模式制品所属的固定分组
const DefaultConfigSchemaGroup = "ai.pipestream.schemas"

// SynthesizeDefaultSchema 生成一个键值对风格的 OpenAPI 3.1 模式，
// 当调用方既没有提供模式也无法从模块本身取得模式时使用。
func SynthesizeDefaultSchema(name string) string {
	return `{"openapi":"3.1.0","info":{"title":"` + name + ` Configuration","version":"1.0.0"},` +
		`"components":{"schemas":{"Config":{"type":"object","additionalProperties":{"type":"string"},` +
		`"description":"Key-value configuration for ` + name + `"}}}}`
}
