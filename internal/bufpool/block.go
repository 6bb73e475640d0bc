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

// Package bufpool 提供固定大小 稳定地址的 Block 内存块池
//
// Block 的地址在其生命周期内保持稳定 适合提交给内核发起的补全式
// (io_uring 风格) I/O 以及被多个 Roll/Piece 借用 池以 Block 粒度做引用计数
// 这样子切片可以安全地比借用者活得更久
package bufpool

import (
	"sync"
	"sync/atomic"

	"github.com/packetd/fluxhttp/internal/metrics"
)

// Block 是池拥有的定长字节区域
//
// 分配时总是被清零 引用计数归零后归还给所属 Pool 而不是交给 GC 直接回收
type Block struct {
	buf  []byte
	refs int32
	pool *Pool
}

// Bytes 返回 Block 的底层字节切片 地址在 Block 生命周期内稳定
func (b *Block) Bytes() []byte {
	return b.buf
}

// Cap 返回 Block 的容量
func (b *Block) Cap() int {
	return len(b.buf)
}

// Retain 增加引用计数 调用方必须保证持有至少一个有效引用才能调用
func (b *Block) Retain() {
	atomic.AddInt32(&b.refs, 1)
}

// Release 减少引用计数 归零时归还给池
func (b *Block) Release() {
	if atomic.AddInt32(&b.refs, -1) == 0 {
		b.pool.put(b)
	}
}

// Pool 是固定大小 Block 的对象池
type Pool struct {
	size int
	pool sync.Pool
}

// New 创建并返回指定 Block 大小的 *Pool
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		return &Block{buf: make([]byte, size)}
	}
	return p
}

// Acquire 从池中取出一个 Block 并清零 返回时引用计数为 1
func (p *Pool) Acquire() *Block {
	blk := p.pool.Get().(*Block)
	blk.pool = p
	clear(blk.buf)
	atomic.StoreInt32(&blk.refs, 1)
	metrics.BlockAcquired()
	return blk
}

// Size 返回此池中每个 Block 的固定大小
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) put(b *Block) {
	metrics.BlockReleased()
	p.pool.Put(b)
}

var defaultOnce sync.Once
var defaultPool *Pool

// Default 返回进程级默认 Pool 延迟初始化为 common.BlockSize 大小的 Block
//
// 使用函数而不是包级变量是为了避免 bufpool 与引用 common.BlockSize 的包之间出现
// 初始化顺序上的歧义 同时让测试可以构造独立大小的 Pool 而不污染全局状态
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = New(4096)
	})
	return defaultPool
}
