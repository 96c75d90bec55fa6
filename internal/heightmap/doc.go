// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 heightmap 将二维剪影栅格图转换为归一化高度场，供网格构建使用。

# 概述

剪影图以亮背景、暗前景编码。Extract 先反相（255 - v），再顺时针
旋转 90 度使图像行列与网格 x/y 轴对齐，然后取指定颜色通道并除以
全局最大值归一化到 [0, 1]。最大值为 0 时返回 NO_DEPTH_INFORMATION。

# 核心类型

  - Field：行主序的二维高度场（Rows × Cols）。
  - Point：稀疏前景像素坐标，用于侧壁挤出路径。
  - Options：通道选择等提取参数。

# 主要能力

  - Decode：基于 disintegration/imaging 解码 PNG/JPEG。
  - Extract / ExtractWithOptions：稠密高度场提取。
  - Points：灰度化、Lanczos 缩放、二值化后的前景像素列表。
*/
package heightmap
