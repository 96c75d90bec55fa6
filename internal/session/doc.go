// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 session 提供按会话串行化的处理锁。

# 状态机

每个会话 ID 对应一把锁，状态只在 UNLOCKED 与 LOCKED 之间切换。
锁在首次 Acquire 时惰性创建，创建过程受管理器互斥锁保护（先读锁查找，
再写锁复查），并发的首次调用者只会得到同一把锁。

# 约定

  - Acquire 不可重入：同一操作重复获取会阻塞，配置超时后表现为 LockTimeout。
  - Release 未持有或未知的会话返回 ErrLockNotHeld，而不是静默忽略。
  - 不保证等待者之间的 FIFO 公平性。
*/
package session
