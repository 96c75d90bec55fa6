// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 pipeline 编排照片到钥匙扣的处理阶段。

# 概述

Orchestrator 暴露 GenerateSilhouette、EditSilhouette、ExtrudeTo3D、
ChatCAD 四个写入阶段以及只读的 GetSession、History。每个写入阶段：

  - 先获取会话锁，所有退出路径都会释放
  - 把 panic 恢复为 INTERNAL_ERROR 结果
  - 创建 OpenTelemetry span，发布 started/completed/failed 事件，记录阶段指标
  - 只返回 *Result，从不返回 error

# 协作者

分析、剪影生成、预览渲染、制品存储、CAD 对话均以接口注入，
便于测试替换：Analyzer、SilhouetteService、PreviewRenderer、
ArtifactStore、CADWorkflow、EventPublisher。

# 挤出

ExtrudeTo3D 选取版本号最大的剪影。grid 策略走稠密高度场，
sidewall 策略走稀疏前景点并以 analysis.thickness × ThicknessScale
作为厚度。几何错误发生在任何持久化之前；预览渲染失败不致命，
结果中的 render_image 为空引用。
*/
package pipeline
