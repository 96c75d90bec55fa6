// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 artifact 实现会话产物存储：元数据存于 GORM 管理的关系表，
二进制内容存于 storage.root 下的静态目录并通过 /static 前缀对外暴露。

# 存储布局

  - original    → uploads/{sid}_original.png
  - silhouette  → processed/{sid}_2d_v{N}.png
  - mesh        → stl/{sid}_3d.stl
  - render      → renders/{sid}_render.png
  - scad / cad_preview / cad_mesh → cad/{sid}_{turn}.scad|.png|.stl

# 语义

  - 同一 (session, kind, version) 重复写入时后写覆盖。
  - Latest 按版本号取最大值，而非按时间戳。
  - 分析记录每个会话一条，重新分析时覆盖。
*/
package artifact
