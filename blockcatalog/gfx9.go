// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package blockcatalog // import "go.opentelemetry.io/gpu-profiler/blockcatalog"

import "go.opentelemetry.io/gpu-profiler/registers"

// Gfx9 returns the block catalog of GFX9 GPUs with four shader engines.
func Gfx9() *Catalog {
	return newCatalog("gfx9", 4, []blockDef{
		{BlockCB, registers.BlockCB, 4, MethodByInstance, 437, 4},
		{BlockCPC, registers.BlockCPC, 1, MethodNone, 24, 2},
		{BlockCPF, registers.BlockCPF, 1, MethodNone, 19, 2},
		{BlockDB, registers.BlockDB, 4, MethodByInstance, 257, 4},
		{BlockGCEA, registers.BlockGCEA, 16, MethodByInstance, 76, 2},
		{BlockGDS, registers.BlockGDS, 1, MethodNone, 120, 4},
		{BlockGRBM, registers.BlockGRBM, 1, MethodNone, 37, 2},
		{BlockIA, registers.BlockIA, 1, MethodNone, 23, 4},
		{BlockMCVML2, registers.BlockMCVML2, 1, MethodNone, 20, 8},
		{BlockSPI, registers.BlockSPI, 1, MethodBySE, 196, 6},
		{BlockSQ, registers.BlockSQ, 1, MethodBySE, 373, 8},
		{BlockSQGS, registers.BlockSQGS, 1, MethodBySE, 373, 8},
		{BlockSQVS, registers.BlockSQVS, 1, MethodBySE, 373, 8},
		{BlockSQPS, registers.BlockSQPS, 1, MethodBySE, 373, 8},
		{BlockSQHS, registers.BlockSQHS, 1, MethodBySE, 373, 8},
		{BlockSQCS, registers.BlockSQCS, 1, MethodBySE, 373, 8},
		{BlockSX, registers.BlockSX, 1, MethodBySE, 33, 4},
		{BlockTA, registers.BlockTA, 16, MethodBySEAndInstance, 118, 2},
		{BlockTCA, registers.BlockTCA, 2, MethodByInstance, 34, 4},
		{BlockTCC, registers.BlockTCC, 16, MethodByInstance, 191, 4},
		{BlockTCP, registers.BlockTCP, 16, MethodBySEAndInstance, 84, 4},
		{BlockTD, registers.BlockTD, 16, MethodBySEAndInstance, 56, 2},
		{BlockVGT, registers.BlockVGT, 1, MethodBySE, 147, 4},
	})
}
