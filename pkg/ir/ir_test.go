// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/gomlx/xetile/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFunc creates a module with a single function taking a 256x256 f16 buffer.
func newTestFunc(t *testing.T) (*Module, *Op, *Builder) {
	t.Helper()
	m := NewModule("test")
	f := m.AddFunc("kernel", []Type{NewMemRefType(dtypes.F16, 256, 256)}, nil)
	return m, f, NewBuilderAtEnd(f.Body())
}

func TestUseLists(t *testing.T) {
	m, f, b := newTestFunc(t)
	src := f.Body().Arg(0)
	c0 := b.IndexConst(0)
	tileType := NewTileType(dtypes.F16, 32, 32)
	tile := b.InitTile(tileType, src, []Mixed{Dyn(c0), Static(16)}, nil, nil)
	vec := b.LoadTile(NewVectorType(dtypes.F16, 32, 32), tile, nil)
	b.StoreTile(vec, tile, CacheHints{})
	b.Return()
	require.NoError(t, m.Verify())

	assert.Equal(t, 2, tile.NumUses())
	assert.Len(t, tile.Users(), 2)
	assert.True(t, vec.HasOneUse())
	assert.True(t, src.IsBlockArgument())
	assert.Equal(t, 0, src.ArgNumber())

	initOp := tile.DefiningOp()
	offsets := InitTileOffsets(initOp)
	require.Len(t, offsets, 2)
	assert.Equal(t, c0, offsets[0].Value)
	assert.Nil(t, offsets[1].Value)
	assert.Equal(t, int64(16), offsets[1].Const)
	assert.Nil(t, InitTileIndices(initOp))

	// Replace the tile used by the store with a new one.
	b.SetInsertionPoint(initOp)
	tile2 := b.InitTile(tileType, src, []Mixed{Static(0), Static(0)}, nil, nil)
	tile.ReplaceAllUsesWith(tile2)
	assert.Equal(t, 0, tile.NumUses())
	assert.Equal(t, 2, tile2.NumUses())
	initOp.Erase()
	assert.True(t, initOp.IsErased())
	assert.Equal(t, 0, c0.NumUses())
	require.NoError(t, m.Verify())
	assert.Equal(t, 1, m.CountKinds()[KindInitTile])
}

func TestCreateOrFold(t *testing.T) {
	_, f, b := newTestFunc(t)
	sgID := b.SubgroupID()
	c0, c1, c4, c6 := b.IndexConst(0), b.IndexConst(1), b.IndexConst(4), b.IndexConst(6)
	numOps := f.Body().NumOps()

	testCases := []struct {
		name     string
		kind     Kind
		lhs, rhs *Value
		want     *Value // Expected existing value, if not a constant.
		constant int64
	}{
		{"add-consts", KindIndexAdd, c4, c6, nil, 10},
		{"mul-consts", KindIndexMul, c4, c6, nil, 24},
		{"div-consts", KindIndexDivU, c6, c4, nil, 1},
		{"rem-consts", KindIndexRemU, c6, c4, nil, 2},
		{"add-zero", KindIndexAdd, sgID, c0, sgID, 0},
		{"zero-add", KindIndexAdd, c0, sgID, sgID, 0},
		{"mul-one", KindIndexMul, sgID, c1, sgID, 0},
		{"mul-zero", KindIndexMul, sgID, c0, nil, 0},
		{"div-one", KindIndexDivU, sgID, c1, sgID, 0},
		{"rem-one", KindIndexRemU, sgID, c1, nil, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := b.CreateOrFold(tc.kind, tc.lhs, tc.rhs)
			if tc.want != nil {
				assert.Equal(t, tc.want, got)
				return
			}
			value, ok := ConstantIntValue(got)
			require.True(t, ok, "expected a constant, got %s", got.DefiningOp())
			assert.Equal(t, tc.constant, value)
		})
	}

	// Non-foldable: creates the op.
	before := f.Body().NumOps()
	assert.Greater(t, before, numOps)
	v := b.CreateOrFold(KindIndexRemU, sgID, c4)
	assert.Equal(t, KindIndexRemU, v.DefiningOp().Kind())
	assert.Equal(t, before+1, f.Body().NumOps())

	// Division by a zero constant is not folded.
	v = b.CreateOrFold(KindIndexDivU, c4, c0)
	assert.Equal(t, KindIndexDivU, v.DefiningOp().Kind())
}

func TestForAndVerify(t *testing.T) {
	m, f, b := newTestFunc(t)
	c0, c1, c8 := b.IndexConst(0), b.IndexConst(1), b.IndexConst(8)
	tile := b.InitTile(NewTileType(dtypes.F16, 32, 32), f.Body().Arg(0), []Mixed{Static(0), Static(0)}, nil, nil)
	acc := b.Constant(NewVectorType(dtypes.F32, 32, 32), NewSplat(dtypes.F32, []int{32, 32}, 0))
	loop := b.For(c0, c8, c1, tile, acc)
	require.Equal(t, 3, loop.Body().NumArgs())
	assert.Len(t, ForInits(loop), 2)
	b.Return()

	// Missing yield.
	err := m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not terminated")

	inner := NewBuilderAtEnd(loop.Body())
	next := inner.UpdateTileOffset(loop.Body().Arg(1), c0, c8, nil)
	inner.Yield(next, loop.Body().Arg(2))
	require.NoError(t, m.Verify())

	// Using a value defined inside the loop after it breaks dominance.
	b2 := NewBuilderAtEnd(f.Body())
	b2.SetInsertionPoint(f.Body().Terminator())
	b2.PrefetchTile(next, CacheHints{L1: "cached"})
	err = m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't dominate")
}

func TestVerifyWgMap(t *testing.T) {
	m, f, b := newTestFunc(t)
	bad := NewTileType(dtypes.F16, 256, 256).WithWgMap(NewWorkGroupMap([]int{4, 4}, []int{48, 64}))
	b.InitTile(bad, f.Body().Arg(0), []Mixed{Static(0), Static(0)}, nil, nil)
	b.Return()
	err := m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't divide")
}

func TestWalk(t *testing.T) {
	m, f, b := newTestFunc(t)
	c0 := b.IndexConst(0)
	loop := b.For(c0, c0, c0)
	NewBuilderAtEnd(loop.Body()).Yield()
	b.Return()

	var kinds []Kind
	m.Walk(func(op *Op) WalkResult {
		kinds = append(kinds, op.Kind())
		return WalkAdvance
	})
	assert.Equal(t, []Kind{KindFunc, KindConstant, KindFor, KindYield, KindReturn}, kinds)

	kinds = nil
	f.Walk(func(op *Op) WalkResult {
		kinds = append(kinds, op.Kind())
		if op.Kind() == KindFor {
			return WalkSkip
		}
		return WalkAdvance
	})
	assert.Equal(t, []Kind{KindFunc, KindConstant, KindFor, KindReturn}, kinds)

	count := 0
	assert.False(t, m.Walk(func(op *Op) WalkResult {
		count++
		if op.Kind() == KindConstant {
			return WalkInterrupt
		}
		return WalkAdvance
	}))
	assert.Equal(t, 2, count)
}

func TestPrint(t *testing.T) {
	m, f, b := newTestFunc(t)
	wgMap := NewWorkGroupMap([]int{4, 4}, []int{64, 64})
	tile := b.InitTile(NewTileType(dtypes.F16, 256, 256).WithWgMap(wgMap), f.Body().Arg(0),
		[]Mixed{Static(0), Static(0)}, nil, nil)
	WithMap(b.LoadTile(NewVectorType(dtypes.F16, 256, 256), tile, nil), wgMap)
	b.Return()
	text := m.String()
	assert.Contains(t, text, "module @test {")
	assert.Contains(t, text, "func.func @kernel(%0: memref<256x256xf16>)")
	assert.Contains(t, text, `"xetile.init_tile"(%0) {static_offsets = [0, 0]}`)
	assert.Contains(t, text, "wg_map = #xetile.wg_map<sg_layout = [4, 4], sg_data = [64, 64]>")
	assert.Contains(t, text, `"xetile.load_tile"(%1) {map = #xetile.wg_map`)
}

func TestKindNames(t *testing.T) {
	for _, kind := range AllKinds() {
		name := kind.String()
		require.NotEmpty(t, name, "kind %d has no name", int(kind))
		if kind == KindOpaque {
			continue
		}
		got, found := KindFromName(name)
		require.True(t, found, name)
		assert.Equal(t, kind, got)
	}
}
