// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 HTTP/HTTPS 服务器的生命周期。

Manager 封装 net/http.Server：Start 非阻塞绑定端口，Run 阻塞至
上下文结束后在 ShutdownTimeout 内优雅关闭。ConfigFromServer 由
应用的 server 配置段派生超时，并在配置证书时通过 tlsutil 启用 HTTPS。
API 服务与 Prometheus 指标服务各自使用一个 Manager 实例。
*/
package server
