// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package registers // import "go.opentelemetry.io/gpu-profiler/registers"

// Hardware block ids. The numbering is shared by all generations; a
// generation only programs the ids present in its File.Counters.
const (
	BlockCB uint32 = iota
	BlockCPC
	BlockCPF
	BlockDB
	BlockGCEA
	BlockGDS
	BlockGRBM
	BlockIA
	BlockMCVML2
	BlockSPI
	BlockSQ
	BlockSQGS
	BlockSQVS
	BlockSQPS
	BlockSQHS
	BlockSQCS
	BlockSX
	BlockTA
	BlockTCA
	BlockTCC
	BlockTCP
	BlockTD
	BlockVGT
)

// sqVariants maps the SQ sub-block ids to the SQ_PERFCOUNTER_CTRL stage
// enable they count for.
var sqVariants = map[uint32]uint32{
	BlockSQ:   SQCtrlAllEnable,
	BlockSQGS: SQCtrlGSEnable | SQCtrlESEnable,
	BlockSQVS: SQCtrlVSEnable | SQCtrlLSEnable,
	BlockSQPS: SQCtrlPSEnable,
	BlockSQHS: SQCtrlHSEnable,
	BlockSQCS: SQCtrlCSEnable,
}

// addSQ registers the SQ block and all of its stage variants on the same
// select registers.
func addSQ(counters map[uint32]*CounterRegs, sel []Addr, lo0 Addr) {
	for id, enable := range sqVariants {
		regs := counterBank(LayoutSQ, sel, lo0)
		regs.SQCtrlEnable = enable
		counters[id] = regs
	}
}
