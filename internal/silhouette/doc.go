// Package silhouette 调用图像编辑模型，从照片生成黑白剪影，
// 并根据带红色标记的图片与文字指令修改剪影。
package silhouette
