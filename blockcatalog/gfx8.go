// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package blockcatalog // import "go.opentelemetry.io/gpu-profiler/blockcatalog"

import "go.opentelemetry.io/gpu-profiler/registers"

// Gfx8 returns the block catalog of GFX8 GPUs with four shader engines.
func Gfx8() *Catalog {
	return newCatalog("gfx8", 4, []blockDef{
		{BlockCB, registers.BlockCB, 4, MethodByInstance, 395, 4},
		{BlockCPC, registers.BlockCPC, 1, MethodNone, 22, 2},
		{BlockCPF, registers.BlockCPF, 1, MethodNone, 19, 2},
		{BlockDB, registers.BlockDB, 4, MethodByInstance, 256, 4},
		{BlockGDS, registers.BlockGDS, 1, MethodNone, 120, 4},
		{BlockGRBM, registers.BlockGRBM, 1, MethodNone, 33, 2},
		{BlockIA, registers.BlockIA, 1, MethodNone, 23, 4},
		{BlockSPI, registers.BlockSPI, 1, MethodBySE, 196, 6},
		{BlockSQ, registers.BlockSQ, 1, MethodBySE, 298, 8},
		{BlockSQGS, registers.BlockSQGS, 1, MethodBySE, 298, 8},
		{BlockSQVS, registers.BlockSQVS, 1, MethodBySE, 298, 8},
		{BlockSQPS, registers.BlockSQPS, 1, MethodBySE, 298, 8},
		{BlockSQHS, registers.BlockSQHS, 1, MethodBySE, 298, 8},
		{BlockSQCS, registers.BlockSQCS, 1, MethodBySE, 298, 8},
		{BlockSX, registers.BlockSX, 1, MethodBySE, 33, 4},
		{BlockTA, registers.BlockTA, 16, MethodBySEAndInstance, 110, 2},
		{BlockTCA, registers.BlockTCA, 2, MethodByInstance, 34, 4},
		{BlockTCC, registers.BlockTCC, 16, MethodByInstance, 191, 4},
		{BlockTCP, registers.BlockTCP, 16, MethodBySEAndInstance, 179, 4},
		{BlockTD, registers.BlockTD, 16, MethodBySEAndInstance, 54, 1},
		{BlockVGT, registers.BlockVGT, 1, MethodBySE, 145, 4},
	})
}
