// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package blockcatalog // import "go.opentelemetry.io/gpu-profiler/blockcatalog"

import (
	"fmt"
	"strings"
)

// BlockName is the logical, generation independent name of a counter block.
type BlockName uint32

const (
	BlockCB BlockName = iota
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

	blockNameMax
)

var blockNames = [blockNameMax]string{
	BlockCB:     "CB",
	BlockCPC:    "CPC",
	BlockCPF:    "CPF",
	BlockDB:     "DB",
	BlockGCEA:   "GCEA",
	BlockGDS:    "GDS",
	BlockGRBM:   "GRBM",
	BlockIA:     "IA",
	BlockMCVML2: "MCVML2",
	BlockSPI:    "SPI",
	BlockSQ:     "SQ",
	BlockSQGS:   "SQGS",
	BlockSQVS:   "SQVS",
	BlockSQPS:   "SQPS",
	BlockSQHS:   "SQHS",
	BlockSQCS:   "SQCS",
	BlockSX:     "SX",
	BlockTA:     "TA",
	BlockTCA:    "TCA",
	BlockTCC:    "TCC",
	BlockTCP:    "TCP",
	BlockTD:     "TD",
	BlockVGT:    "VGT",
}

func (b BlockName) String() string {
	if b < blockNameMax {
		return blockNames[b]
	}
	return fmt.Sprintf("BLOCK(%d)", uint32(b))
}

// BlockNameFromString parses a block name case-insensitively.
func BlockNameFromString(s string) (BlockName, bool) {
	for i, name := range blockNames {
		if strings.EqualFold(name, s) {
			return BlockName(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (b BlockName) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BlockName) UnmarshalText(text []byte) error {
	name, ok := BlockNameFromString(string(text))
	if !ok {
		return fmt.Errorf("unknown block name %q", text)
	}
	*b = name
	return nil
}
