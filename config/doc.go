// Package config 提供 streamrelay 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序合并，
// 环境变量通过 env 标签反射写入，前缀默认为 STREAMRELAY。
// 任务列表与 Provider 表只能来自 YAML。
package config
