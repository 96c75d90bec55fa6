// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开 GORM 连接并管理其连接池。

# 概述

Open 按配置的驱动选择方言：默认使用纯 Go 的 glebarez/sqlite，
也支持 gorm 的 postgres 与 mysql 驱动。PoolManager 封装底层 sql.DB
的连接数与生命周期设置，后台定时探活，并为健康检查端点提供 Ping
与 GetStats。

# 核心类型

  - PoolManager：持有 GORM DB 与 sql.DB，提供 DB()、Ping()、GetStats()、Close()。
  - PoolConfig：最大空闲连接数、最大打开连接数、生命周期与健康检查间隔。
  - PoolStats：结构化的连接池运行指标。
*/
package database
