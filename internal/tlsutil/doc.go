// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package tlsutil 集中提供 TLS 设置：上游模型 API 与 Redis 客户端使用的
// 加固配置（TLS 1.2+，仅 AEAD 密码套件），以及 HTTPS 服务端的证书加载。
package tlsutil
