// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package config 提供 prompt2CAD 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → PROMPT2CAD_ 环境变量 的顺序叠加，
// 并支持日志级别、限流参数等字段的运行时热重载。
package config
