// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 analysis 通过视觉模型从照片中提取钥匙扣的相对比例。

Analyzer 发送一条带 base64 图片的用户消息，并强制模型调用
extract_keychain_proportions 工具；工具参数即宽、长、厚（宽为 1.0）
与复杂度。模型未返回工具调用时以 "No function call returned" 失败。
*/
package analysis
