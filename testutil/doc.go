// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 testutil 提供各包单元测试共用的辅助函数。

# 核心能力

  - 上下文辅助：TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup
  - 数据库辅助：NewTestDB 在临时目录中打开纯 Go SQLite（GORM）
  - 异步断言：AssertEventuallyTrue / WaitForChannel
  - 数据工具：MustJSON / AssertJSONEqual

# 子包

  - testutil/mocks：llm.Provider 与 image.Provider 的可编程 Mock，
    支持 Builder 模式、错误注入与调用记录
  - testutil/fixtures：剪影 PNG、分析结果等测试数据工厂

本包只依赖 types、llm 与第三方库，内部业务包的测试可以放心引用。

# 使用示例

	ctx := testutil.TestContext(t)
	db := testutil.NewTestDB(t)
	provider := mocks.NewMockProvider().WithResponse("cube([10,10,10]);")
*/
package testutil
