// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package registers // import "go.opentelemetry.io/gpu-profiler/registers"

import "sync"

// Gfx9 returns the register file of GFX9 (Vega) GPUs.
//
// MCVML2 is intentionally absent: its counters live behind the memory hub
// aperture which the command processor cannot reach on this queue type.
var Gfx9 = sync.OnceValue(func() *File {
	counters := map[uint32]*CounterRegs{
		BlockCB:   counterBank(LayoutCleared, []Addr{0xdc04, 0xdc06, 0xdc07, 0xdc08}, 0xd406),
		BlockCPC:  counterBank(LayoutStandard, []Addr{0xd809, 0xd803}, 0xd004),
		BlockCPF:  counterBank(LayoutStandard, []Addr{0xd807, 0xd805}, 0xd008),
		BlockDB:   counterBank(LayoutCleared, []Addr{0xdc44, 0xdc46, 0xdc47, 0xdc48}, 0xd440),
		BlockGCEA: counterBank(LayoutStandard, seq(0xdd00, 2), 0xd500),
		BlockGDS:  counterBank(LayoutStandard, seq(0xda80, 4), 0xd280),
		BlockGRBM: {
			Layout: LayoutStandard,
			Select: []Addr{0xd840, 0xd841},
			Lo:     []Addr{0xd040, 0xd043},
			Hi:     []Addr{0xd041, 0xd044},
		},
		BlockIA:  counterBank(LayoutStandard, []Addr{0xd884, 0xd886, 0xd887, 0xd888}, 0xd088),
		BlockSPI: counterBank(LayoutStandard, seq(0xd980, 6), 0xd180),
		BlockSX:  counterBank(LayoutStandard, []Addr{0xda40, 0xda42, 0xda43, 0xda44}, 0xd240),
		BlockTA:  counterBank(LayoutStandard, []Addr{0xdac0, 0xdac3}, 0xd2c0),
		BlockTCA: counterBank(LayoutStandard, []Addr{0xdb90, 0xdb93, 0xdb96, 0xdb97}, 0xd390),
		BlockTCC: counterBank(LayoutStandard, []Addr{0xdb80, 0xdb83, 0xdb86, 0xdb87}, 0xd380),
		BlockTCP: counterBank(LayoutStandard, []Addr{0xdb40, 0xdb43, 0xdb46, 0xdb47}, 0xd340),
		BlockTD:  counterBank(LayoutStandard, []Addr{0xdb00, 0xdb03}, 0xd300),
		BlockVGT: counterBank(LayoutStandard, []Addr{0xd88c, 0xd88e, 0xd890, 0xd891}, 0xd090),
	}
	addSQ(counters, seq(0xd9c0, 8), 0xd1c0)

	return &File{
		Name:                   "gfx9",
		GrbmGfxIndex:           0xc200,
		CPPerfmonCntl:          0xd808,
		ComputePerfcountEnable: 0x2e0b,
		SQPerfcounterCtrl:      0xd9e0,
		SQPerfcounterMask:      0xd9e1,
		ThreadTrace: ThreadTraceRegs{
			Base:       0xc330,
			Size:       0xc331,
			Mask:       0xc332,
			TokenMask:  0xc333,
			PerfMask:   0xc334,
			Ctrl:       0xc335,
			Mode:       0xc336,
			Base2:      0xc337,
			TokenMask2: 0xc338,
			WritePtr:   0xc339,
			Status:     0xc33a,
			Counter:    0xc33b,
		},
		DefaultTokenMask:  0x00ffffff,
		DefaultTokenMask2: 0x0000ffff,
		Counters:          counters,
	}
})
