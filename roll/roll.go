// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package roll 实现稳定地址的零拷贝字节视图（Roll）与可增长的读缓冲（RollMut）
//
// Roll 是对单个 bufpool.Block 的不可变窗口 可以被廉价地克隆与在任意字节偏移处
// 切分 多个 Roll 可以共享同一个 Block RollMut 则是由一个或多个 Block 组成的
// 可追加读缓冲 为 HTTP/1.1 与 HTTP/2 的流式解析提供增长/消费的生命周期
package roll

import "github.com/packetd/fluxhttp/internal/bufpool"

// Roll 是 (block引用, start, len) 的不可变视图
//
// len 不会超过 block.Cap()-start 多个 Roll 可以共享同一个 Block 克隆与切分都
// 只是调整 start/len 并对 Block 做引用计数 不会拷贝底层字节
type Roll struct {
	block *bufpool.Block
	start int
	len   int
}

// FromBlock 基于一个 Block 的 [start, start+len) 区间创建 Roll
//
// 调用方必须已经持有 block 的一个引用 该引用的所有权转移给返回的 Roll
func FromBlock(block *bufpool.Block, start, length int) Roll {
	return Roll{block: block, start: start, len: length}
}

// Len 返回 Roll 引用的字节数
func (r Roll) Len() int { return r.len }

// IsEmpty 返回 Roll 是否为空
func (r Roll) IsEmpty() bool { return r.len == 0 }

// Bytes 返回 Roll 引用的字节切片 地址在 Roll 存活期间保持稳定
func (r Roll) Bytes() []byte {
	if r.block == nil {
		return nil
	}
	return r.block.Bytes()[r.start : r.start+r.len]
}

// Clone 返回一个共享同一 Block 的 Roll 并增加引用计数
func (r Roll) Clone() Roll {
	if r.block != nil {
		r.block.Retain()
	}
	return r
}

// Release 释放 Roll 持有的 Block 引用 Roll 在此调用之后不应再被使用
func (r Roll) Release() {
	if r.block != nil {
		r.block.Release()
	}
}

// Split 在字节偏移 at 处将 Roll 切分为两部分 二者共享同一个 Block
//
// 调用方应视 r 在此调用之后已被消费（其引用被转移给了返回的两个 Roll 之一加上
// 一次新增的引用）
func (r Roll) Split(at int) (Roll, Roll) {
	if at < 0 || at > r.len {
		panic("roll: split index out of range")
	}
	if r.block != nil {
		r.block.Retain()
	}
	left := Roll{block: r.block, start: r.start, len: at}
	right := Roll{block: r.block, start: r.start + at, len: r.len - at}
	return left, right
}
