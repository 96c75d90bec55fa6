// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 mesh 将高度场或稀疏前景点三角化为三维网格。

# 概述

网格构建以 Strategy 接口抽象，编排层根据上游数据形态显式选择：

  - GridStrategy（"grid"）：稠密高度场挤出，每个内部网格单元输出两个
    三角形，三角形总数恒为 2*(R-1)*(C-1)。
  - SideWallStrategy（"sidewall"）：稀疏前景点的双层侧壁壳体，
    三角形总数为 2*(N-1)+2。

# 核心类型

  - Mesh：索引网格（Vertices + Faces），Validate 保证索引合法、坐标有限。
  - Input：策略输入（高度场 / 点集、深度比、长宽比、厚度）。
  - Strategy：Name + Build。
*/
package mesh
