// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 提供图像编辑服务抽象，用于从照片提取黑白剪影并按指令修改剪影。

# 核心接口

  - Provider：图像编辑提供者接口，包含 Edit 与 Name。

# 实现

  - OpenAIProvider：调用 OpenAI /v1/images/edits（默认 gpt-image-1），
    以 multipart 上传 PNG，返回 base64 结果；上游错误映射为 llm.Error，
    可重试错误按 retry 策略退避重试。
*/
package image
