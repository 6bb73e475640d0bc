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

// Package metrics 记录连接核心的运行态指标
//
// 所有导出函数在未调用 Register 时都是安全的空操作 这样核心代码可以无条件地
// 调用它们 而不必关心调用方是否开启了 Prometheus 采集
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/packetd/fluxhttp/common"
)

var (
	blocksInUse      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "core_blocks_in_use", Help: "Number of pool blocks currently checked out."})
	connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{Name: "core_connections_active", Help: "Number of connections currently being served."})
	h2StreamsActive  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "core_h2_streams_active", Help: "Number of HTTP/2 streams currently open."})
	bytesRead        = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "core_bytes_read_total", Help: "Bytes read from connections."}, []string{"proto"})
	bytesWritten     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "core_bytes_written_total", Help: "Bytes written to connections."}, []string{"proto"})
	uptime           = prometheus.NewGauge(prometheus.GaugeOpts{Namespace: common.App, Name: "uptime", Help: "Uptime in seconds."})

	registered int32
	regOnce    sync.Once
)

// Register 将指标注册进给定的 Registry 只会成功注册一次
// 未调用 Register 时 所有上报函数均为空操作 方便在测试环境下直接复用核心代码
func Register(reg *prometheus.Registry) {
	regOnce.Do(func() {
		reg.MustRegister(blocksInUse, connectionsActive, h2StreamsActive, bytesRead, bytesWritten, uptime)
		atomic.StoreInt32(&registered, 1)
	})
}

// RecordUptime 刷新 uptime 指标 调用方应在每次 /metrics 抓取前调用
func RecordUptime() {
	if isRegistered() {
		uptime.Set(float64(time.Now().Unix() - common.Started()))
	}
}

func isRegistered() bool {
	return atomic.LoadInt32(&registered) == 1
}

func BlockAcquired() {
	if isRegistered() {
		blocksInUse.Inc()
	}
}

func BlockReleased() {
	if isRegistered() {
		blocksInUse.Dec()
	}
}

func ConnectionOpened() {
	if isRegistered() {
		connectionsActive.Inc()
	}
}

func ConnectionClosed() {
	if isRegistered() {
		connectionsActive.Dec()
	}
}

func H2StreamOpened() {
	if isRegistered() {
		h2StreamsActive.Inc()
	}
}

func H2StreamClosed() {
	if isRegistered() {
		h2StreamsActive.Dec()
	}
}

func BytesRead(proto string, n int) {
	if isRegistered() {
		bytesRead.WithLabelValues(proto).Add(float64(n))
	}
}

func BytesWritten(proto string, n int) {
	if isRegistered() {
		bytesWritten.WithLabelValues(proto).Add(float64(n))
	}
}
