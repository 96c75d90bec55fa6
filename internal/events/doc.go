// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 events 提供按会话分发的流水线阶段事件。

# 概述

Hub 是进程内的发布/订阅中心。Publish 从不阻塞：订阅者缓冲区已满时
事件被丢弃并计数。StreamHandler 通过 github.com/coder/websocket 把某个
会话的事件以 JSON 文本帧推送给浏览器。

# 事件

每个事件包含 session_id、stage、status（started/completed/failed）、
message 与 timestamp。
*/
package events
