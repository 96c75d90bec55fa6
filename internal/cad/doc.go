// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cad 实现基于 OpenSCAD 的对话式建模流程。

# 组成

  - Coder：通过 llm.Provider 生成 OpenSCAD 代码，修改时把上一版代码按
    token 预算截断后嵌入提示词
  - Compiler：调用 openscad 子进程并发生成预览 PNG 与 STL，解析 stderr 诊断；
    mock 模式写入占位文件
  - HistoryStore：基于 GORM 的对话历史（chat_history 表）
  - Workflow：串联上述组件完成一次对话回合

编译失败不视为错误：回合照常记录，预览与 STL 地址为空，诊断信息保留在结果中。
*/
package cad
