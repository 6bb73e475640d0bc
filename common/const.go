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

package common

const (
	// App 应用程序名称
	App = "fluxhttpd"

	// Version 应用程序版本
	Version = "v0.0.1"

	// BlockSize 缓冲池中每个 Block 的固定大小
	//
	// 与内核 io_uring 的注册缓冲区配合使用时 固定大小可以让地址在 Block
	// 生命周期内保持稳定 4KiB 与常见页大小对齐 足够容纳大多数 HTTP 请求行/头部
	BlockSize = 4096
)
