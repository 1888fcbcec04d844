// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package wgtosg

import (
	"fmt"
	"testing"

	"github.com/gomlx/xetile/pkg/core/dtypes"
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/ir/indexeval"
	"github.com/gomlx/xetile/pkg/transforms/conversion"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newKernel creates a module with a function "kernel" taking a single f32 buffer of the given shape. The
// caller must terminate the body with Return.
func newKernel(t *testing.T, shape ...int) (*ir.Module, *ir.Value, *ir.Builder) {
	t.Helper()
	m := ir.NewModule(t.Name())
	f := m.AddFunc("kernel", []ir.Type{ir.NewMemRefType(dtypes.F32, shape...)}, nil)
	return m, f.Body().Arg(0), ir.NewBuilderAtEnd(f.Body())
}

func wgMap(sgLayout0, sgLayout1, sgData0, sgData1 int) *ir.WorkGroupMap {
	return ir.NewWorkGroupMap([]int{sgLayout0, sgLayout1}, []int{sgData0, sgData1})
}

func wgTile(m *ir.WorkGroupMap, shape ...int) *ir.TileType {
	return ir.NewTileType(dtypes.F32, shape...).WithWgMap(m)
}

// initAndLoad creates a workgroup tile at the origin of src and loads it.
func initAndLoad(b *ir.Builder, src *ir.Value, tileType *ir.TileType) (tile, vec *ir.Value) {
	tile = b.InitTile(tileType, src, []ir.Mixed{ir.Static(0), ir.Static(0)}, nil, nil)
	vec = b.LoadTile(ir.NewVectorType(tileType.DType, tileType.Shape...), tile, nil)
	return
}

// runPass runs the pass with verification, and returns it for inspection.
func runPass(t *testing.T, m *ir.Module) *Pass {
	t.Helper()
	pass := New(Config().Verify(true).Done())
	require.NoError(t, pass.Run(m))
	return pass
}

// opsOf returns the ops of the given kind, in program order.
func opsOf(m *ir.Module, kind ir.Kind) []*ir.Op {
	var ops []*ir.Op
	for _, op := range m.CollectOps() {
		if op.Kind() == kind {
			ops = append(ops, op)
		}
	}
	return ops
}

func vectorShape(v *ir.Value) []int {
	return v.Type().(*ir.VectorType).Shape
}

func TestOptions(t *testing.T) {
	options := Config().Done()
	assert.Equal(t, conversion.DefaultMaxSweeps, options.MaxSweeps)
	assert.False(t, options.VerifyBefore)

	options = Config().MaxSweeps(3).Verify(true).DumpIR(true).Done()
	assert.Equal(t, Options{MaxSweeps: 3, VerifyBefore: true, VerifyAfter: true, DumpIR: true}, options)
	assert.Equal(t, "xetile-wg-to-sg", New(options).Name())
}

func TestUnsupportedModule(t *testing.T) {
	m := ir.NewModule("unsupported")
	f := m.AddFunc("kernel", []ir.Type{wgTile(wgMap(4, 4, 64, 64), 256, 256)}, nil)
	ir.NewBuilderAtEnd(f.Body()).Return()
	err := New(Config().Done()).Run(m)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedModule)
	assert.Contains(t, err.Error(), `"kernel"`)
	assert.Contains(t, err.Error(), "tile types are not supported")
}

// TestInvalidMap checks that maps that can't distribute their value make the conversion fail, instead of
// looping over zero-sized steps or dividing by zero. Verification is disabled, as it would reject them earlier.
func TestInvalidMap(t *testing.T) {
	for _, tc := range []struct {
		name    string
		build   func(b *ir.Builder, src *ir.Value)
		wantMsg string
	}{
		{"init-tile-zero-layout", func(b *ir.Builder, src *ir.Value) {
			b.InitTile(wgTile(wgMap(0, 4, 64, 64), 256, 256), src, []ir.Mixed{ir.Static(0), ir.Static(0)}, nil, nil)
		}, "non-positive"},
		{"init-tile-zero-data", func(b *ir.Builder, src *ir.Value) {
			b.InitTile(wgTile(wgMap(4, 4, 0, 64), 256, 256), src, []ir.Mixed{ir.Static(0), ir.Static(0)}, nil, nil)
		}, "non-positive"},
		{"elementwise-not-dividing", func(b *ir.Builder, src *ir.Value) {
			vt := ir.NewVectorType(dtypes.F32, 256, 256)
			c := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 1)), wgMap(4, 4, 64, 64))
			ir.WithMap(b.Elementwise(ir.KindExp, vt, c), wgMap(4, 4, 48, 64))
		}, "doesn't divide"},
		{"constant-zero-layout", func(b *ir.Builder, src *ir.Value) {
			vt := ir.NewVectorType(dtypes.F32, 256, 256)
			ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 1)), wgMap(4, 0, 64, 64))
		}, "non-positive"},
		{"convert-layout-zero-layout", func(b *ir.Builder, src *ir.Value) {
			_, vec := initAndLoad(b, src, wgTile(wgMap(8, 4, 32, 64), 256, 256))
			b.ConvertLayout(vec, &ir.ConvertLayoutData{Result: wgMap(32, 0, 8, 256)})
		}, "result map"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, src, b := newKernel(t, 256, 256)
			tc.build(b, src)
			b.Return()
			err := New(Config().Done()).Run(m)
			require.Error(t, err)
			assert.ErrorIs(t, err, conversion.ErrLegalizationFailed)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestLegalizationFailure(t *testing.T) {
	m, src, b := newKernel(t, 256, 256)
	tileType := wgTile(wgMap(4, 4, 64, 64), 256, 256)
	tileType.Order = ir.ColumnMajor
	b.InitTile(tileType, src, []ir.Mixed{ir.Static(0), ir.Static(0)}, nil, nil)
	b.Return()
	err := New(Config().Done()).Run(m)
	require.Error(t, err)
	assert.ErrorIs(t, err, conversion.ErrLegalizationFailed)
	assert.Contains(t, err.Error(), "order [0, 1]")
}

func TestInitTileOneToOne(t *testing.T) {
	m, src, b := newKernel(t, 1024, 1024)
	base := b.IndexConst(128)
	tileType := wgTile(wgMap(4, 4, 64, 64), 256, 256)
	b.InitTile(tileType, src, []ir.Mixed{ir.Dyn(base), ir.Static(512)}, nil, nil)
	b.Return()
	runPass(t, m)

	inits := opsOf(m, ir.KindInitTile)
	require.Len(t, inits, 1)
	newType := inits[0].Result(0).Type().(*ir.TileType)
	assert.Equal(t, []int{64, 64}, newType.Shape)
	assert.Nil(t, newType.WgMap)
	assert.Equal(t, 1, m.CountKinds()[ir.KindSubgroupID])

	// Subgroup 6 is at (1, 2) of the 4x4 grid.
	offsets := must.M1(indexeval.New(6).TileOffsets(inits[0]))
	assert.Equal(t, []int64{128 + 64, 512 + 128}, offsets)
}

// TestInitTileCoverage checks that the tiles of all subgroups cover the workgroup tile exactly once, for
// one-to-one and round-robin distributions.
func TestInitTileCoverage(t *testing.T) {
	testCases := []struct {
		name        string
		shape       [2]int
		wgMap       *ir.WorkGroupMap
		perSubgroup int
		base        [2]int64
	}{
		{name: "one-to-one", shape: [2]int{256, 256}, wgMap: wgMap(4, 4, 64, 64), perSubgroup: 1},
		{name: "round-robin", shape: [2]int{256, 256}, wgMap: wgMap(4, 4, 32, 32), perSubgroup: 4},
		{name: "round-robin-rows", shape: [2]int{128, 64}, wgMap: wgMap(2, 2, 16, 32), perSubgroup: 4},
		{name: "uneven-layout", shape: [2]int{64, 128}, wgMap: wgMap(2, 8, 16, 16), perSubgroup: 2},
		{name: "with-base", shape: [2]int{128, 128}, wgMap: wgMap(2, 2, 32, 32), perSubgroup: 4,
			base: [2]int64{256, 64}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, src, b := newKernel(t, 1024, 1024)
			b.InitTile(wgTile(tc.wgMap, tc.shape[0], tc.shape[1]), src,
				[]ir.Mixed{ir.Static(tc.base[0]), ir.Static(tc.base[1])}, nil, nil)
			b.Return()
			runPass(t, m)

			inits := opsOf(m, ir.KindInitTile)
			require.Len(t, inits, tc.perSubgroup)
			numBlocks := (tc.shape[0] / tc.wgMap.SgData[0]) * (tc.shape[1] / tc.wgMap.SgData[1])
			visited := make(map[[2]int64]int)
			for id := range tc.wgMap.NumSubgroups() {
				eval := indexeval.New(int64(id))
				expected := TileOffsets(tc.shape[:], tc.wgMap, id, false)
				require.Len(t, expected, len(inits))
				for i, init := range inits {
					offsets, err := eval.TileOffsets(init)
					require.NoError(t, err)
					origin := [2]int64{offsets[0], offsets[1]}
					assert.Equal(t, [2]int64{tc.base[0] + int64(expected[i][0]), tc.base[1] + int64(expected[i][1])},
						origin, "subgroup %d, tile #%d", id, i)
					visited[origin]++
				}
			}
			assert.Len(t, visited, numBlocks, "gaps in the decomposition")
			for origin, count := range visited {
				assert.Equal(t, 1, count, "origin %v visited more than once", origin)
			}
		})
	}
}

func TestInitTileLeadingOffsets(t *testing.T) {
	m, src, b := newKernel(t, 4, 256, 256)
	batch := b.IndexConst(2)
	b.InitTile(wgTile(wgMap(2, 2, 128, 128), 256, 256), src,
		[]ir.Mixed{ir.Dyn(batch), ir.Static(0), ir.Static(0)}, nil, nil)
	b.Return()
	runPass(t, m)

	inits := opsOf(m, ir.KindInitTile)
	require.Len(t, inits, 1)
	offsets := ir.InitTileOffsets(inits[0])
	require.Len(t, offsets, 3)
	assert.Equal(t, batch, offsets[0].Value)
	assert.Equal(t, []int64{2, 128, 0}, must.M1(indexeval.New(2).TileOffsets(inits[0])))
}

func TestInitTileDynamicSource(t *testing.T) {
	m := ir.NewModule("dynamic")
	f := m.AddFunc("kernel", []ir.Type{ir.NewMemRefType(dtypes.F32, ir.Dynamic, ir.Dynamic)}, nil)
	b := ir.NewBuilderAtEnd(f.Body())
	src := f.Body().Arg(0)
	sizes := []ir.Mixed{ir.Static(512), ir.Static(512)}
	strides := []ir.Mixed{ir.Static(512), ir.Static(1)}
	b.InitTile(wgTile(wgMap(4, 4, 64, 64), 256, 256), src, []ir.Mixed{ir.Static(0), ir.Static(0)}, sizes, strides)
	b.Return()
	runPass(t, m)

	inits := opsOf(m, ir.KindInitTile)
	require.Len(t, inits, 1)
	assert.Equal(t, sizes, ir.InitTileSizes(inits[0]))
	assert.Equal(t, strides, ir.InitTileStrides(inits[0]))
}

func TestScatterTile(t *testing.T) {
	m, src, b := newKernel(t, 4096)
	indices := b.Constant(ir.NewVectorType(dtypes.Index, 256, 256), ir.NewSplat(dtypes.Index, []int{256, 256}, 0))
	tileType := wgTile(wgMap(4, 4, 64, 64), 256, 256)
	tileType.Scatter = true
	b.InitScatterTile(tileType, src, indices)
	b.Return()
	runPass(t, m)

	inits := opsOf(m, ir.KindInitTile)
	require.Len(t, inits, 1)
	newType := inits[0].Result(0).Type().(*ir.TileType)
	assert.True(t, newType.Scatter)
	assert.Nil(t, newType.WgMap)
	assert.Equal(t, []int{64, 64}, newType.Shape)
	assert.Equal(t, indices, ir.InitTileIndices(inits[0]))
}

func TestLoadComputeStore(t *testing.T) {
	for _, tc := range []struct {
		name         string
		shape        [2]int
		wgMap        *ir.WorkGroupMap
		numInstances int
	}{
		{"one-to-one", [2]int{256, 256}, wgMap(4, 4, 64, 64), 1},
		{"round-robin", [2]int{512, 256}, wgMap(4, 4, 64, 32), 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, src, b := newKernel(t, 1024, 1024)
			tile, vec := initAndLoad(b, src, wgTile(tc.wgMap, tc.shape[0], tc.shape[1]))
			exp := ir.WithMap(b.Elementwise(ir.KindExp, vec.Type(), vec), tc.wgMap)
			sum := ir.WithMap(b.Elementwise(ir.KindAddF, vec.Type(), exp, vec), tc.wgMap)
			b.StoreTile(sum, tile, ir.CacheHints{L1: "cached"})
			b.PrefetchTile(tile, ir.CacheHints{})
			b.Return()
			pass := runPass(t, m)

			counts := m.CountKinds()
			for _, kind := range []ir.Kind{ir.KindInitTile, ir.KindLoadTile, ir.KindExp, ir.KindAddF, ir.KindStoreTile,
				ir.KindPrefetchTile} {
				assert.Equal(t, tc.numInstances, counts[kind], "number of %s ops", kind)
			}
			for _, add := range opsOf(m, ir.KindAddF) {
				assert.Equal(t, tc.wgMap.SgData[:], vectorShape(add.Result(0)))
				assert.Nil(t, add.Map)
			}
			for _, store := range opsOf(m, ir.KindStoreTile) {
				assert.Equal(t, "cached", store.Data().(*ir.MemoryAccessData).Hints.L1)
				assert.Equal(t, ir.KindAddF, store.Operand(0).DefiningOp().Kind())
			}
			assert.Positive(t, pass.Stats.Rewrites["init-tile"])
			assert.Equal(t, 1, pass.Stats.Rewrites["elementwise-"+ir.KindExp.String()])
		})
	}
}

func TestNumInstances(t *testing.T) {
	for _, tc := range []struct {
		shape    []int
		wgMap    *ir.WorkGroupMap
		expected int
	}{
		{[]int{256, 256}, wgMap(4, 4, 64, 64), 1},
		{[]int{512, 256}, wgMap(4, 4, 64, 32), 4},
		{[]int{256, 128}, wgMap(4, 2, 32, 32), 1}, // Covered with the axes swapped.
		{[]int{256, 32}, wgMap(8, 1, 16, 32), 1},
	} {
		assert.Equal(t, tc.expected, numInstances(tc.shape, tc.wgMap), "shape=%v, map=%s", tc.shape, tc.wgMap)
	}
}

func TestConstants(t *testing.T) {
	t.Run("splat-round-robin", func(t *testing.T) {
		m, _, b := newKernel(t, 16)
		vt := ir.NewVectorType(dtypes.F32, 512, 256)
		c := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 1.5)), wgMap(4, 4, 64, 32))
		b.Opaque("test.sink", nil, c)
		b.Return()
		err := New(Config().Done()).Run(m)

		// The sink can't consume 4 values.
		require.Error(t, err)
		assert.ErrorIs(t, err, conversion.ErrLegalizationFailed)
		constants := opsOf(m, ir.KindConstant)
		require.Len(t, constants, 4)
		for _, op := range constants {
			assert.Equal(t, []int{64, 32}, vectorShape(op.Result(0)))
			assert.Equal(t, 1.5, op.Data().(*ir.ConstantData).Value.At(0))
		}
	})

	t.Run("dense", func(t *testing.T) {
		m, _, b := newKernel(t, 16)
		vt := ir.NewVectorType(dtypes.F32, 64, 64)
		values := make([]float64, vt.Size())
		for i := range values {
			values[i] = float64(i)
		}
		c := ir.WithMap(b.Constant(vt, ir.NewDenseElements(dtypes.F32, vt.Shape, values)), wgMap(2, 2, 32, 32))
		b.Opaque("test.sink", nil, c)
		b.Return()
		runPass(t, m)

		constants := opsOf(m, ir.KindConstant)
		require.Len(t, constants, 1)
		value := constants[0].Data().(*ir.ConstantData).Value
		assert.Equal(t, []int{32, 32}, value.Shape)
		assert.False(t, value.Splat)
		for i := range 32 * 32 {
			require.Equal(t, float64(i), value.At(i))
		}
	})

	t.Run("1D", func(t *testing.T) {
		m, _, b := newKernel(t, 16)
		vt := ir.NewVectorType(dtypes.F32, 256)
		c := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 0)), wgMap(8, 1, 32, 1))
		b.Opaque("test.sink", nil, c)
		b.Return()
		runPass(t, m)

		constants := opsOf(m, ir.KindConstant)
		require.Len(t, constants, 1)
		assert.Equal(t, []int{32}, vectorShape(constants[0].Result(0)))
		sink := opsOf(m, ir.KindOpaque)[0]
		assert.Equal(t, constants[0].Result(0), sink.Operand(0))
	})
}

// TestTileMMA checks that a 2x3 decomposition of the operands yields 6 subgroup-level products.
func TestTileMMA(t *testing.T) {
	m, src, b := newKernel(t, 1024, 1024)
	mapA, mapB, mapC := wgMap(1, 1, 16, 32), wgMap(1, 1, 32, 32), wgMap(1, 1, 16, 32)
	_, a := initAndLoad(b, src, wgTile(mapA, 32, 32))
	_, bVec := initAndLoad(b, src, wgTile(mapB, 32, 96))
	c := b.TileMMA(ir.NewVectorType(dtypes.F32, 32, 96), a, bVec, nil,
		&ir.TileMMAData{WgMapA: mapA, WgMapB: mapB, WgMapC: mapC})
	sink := b.Opaque("test.sink", nil, c)
	b.Return()
	err := New(Config().Done()).Run(m)

	// The sink still uses the 6 products.
	require.ErrorIs(t, err, conversion.ErrLegalizationFailed)
	assert.Contains(t, err.Error(), "replaced by 6 values")
	assert.Equal(t, c, sink.Operand(0))

	loads := opsOf(m, ir.KindLoadTile)
	require.Len(t, loads, 5)
	loadsA, loadsB := loads[:2], loads[2:]
	products := opsOf(m, ir.KindTileMMA)
	require.Len(t, products, 6)
	for i, product := range products {
		assert.Equal(t, []int{16, 32}, vectorShape(product.Result(0)), "product #%d", i)
		assert.Equal(t, loadsA[i/3].Result(0), product.Operand(0), "product #%d", i)
		assert.Equal(t, loadsB[i%3].Result(0), product.Operand(1), "product #%d", i)
		assert.Nil(t, product.Data().(*ir.TileMMAData).WgMapA)
	}
}

func TestTileMMAWithAccumulators(t *testing.T) {
	m, src, b := newKernel(t, 1024, 1024)
	mapA, mapB, mapC := wgMap(2, 2, 32, 32), wgMap(2, 2, 32, 32), wgMap(2, 2, 32, 32)
	_, a := initAndLoad(b, src, wgTile(mapA, 64, 64))
	_, bVec := initAndLoad(b, src, wgTile(mapB, 64, 64))
	cTile, cVec := initAndLoad(b, src, wgTile(mapC, 64, 64))
	d := b.TileMMA(ir.NewVectorType(dtypes.F32, 64, 64), a, bVec, cVec,
		&ir.TileMMAData{WgMapA: mapA, WgMapB: mapB, WgMapC: mapC})
	b.StoreTile(d, cTile, ir.CacheHints{})
	b.Return()
	runPass(t, m)

	products := opsOf(m, ir.KindTileMMA)
	require.Len(t, products, 1)
	require.Equal(t, 3, products[0].NumOperands())
	assert.Equal(t, ir.KindLoadTile, products[0].Operand(2).DefiningOp().Kind())
	stores := opsOf(m, ir.KindStoreTile)
	require.Len(t, stores, 1)
	assert.Equal(t, products[0].Result(0), stores[0].Operand(0))
}

// TestLoopCarriedTiles checks that a loop carrying a tile decomposed in 3 and another in 1 is re-created with
// 4 loop-carried values, and that its results are grouped back.
func TestLoopCarriedTiles(t *testing.T) {
	m, src, b := newKernel(t, 1024, 1024)
	tileA := b.InitTile(wgTile(wgMap(1, 1, 32, 32), 96, 32), src, []ir.Mixed{ir.Static(0), ir.Static(0)}, nil, nil)
	tileB := b.InitTile(wgTile(wgMap(1, 1, 32, 32), 32, 32), src, []ir.Mixed{ir.Static(0), ir.Static(0)}, nil, nil)
	c0, c4, c1 := b.IndexConst(0), b.IndexConst(4), b.IndexConst(1)
	loop := b.For(c0, c4, c1, tileA, tileB)
	body := ir.NewBuilderAtEnd(loop.Body())
	step := body.IndexConst(32)
	nextA := body.UpdateTileOffset(loop.Body().Arg(1), c0, step, nil)
	nextB := body.UpdateTileOffset(loop.Body().Arg(2), step, c0, nil)
	body.Yield(nextA, nextB)
	b.PrefetchTile(loop.Result(0), ir.CacheHints{})
	b.PrefetchTile(loop.Result(1), ir.CacheHints{})
	b.Return()
	runPass(t, m)

	loops := opsOf(m, ir.KindFor)
	require.Len(t, loops, 1)
	newLoop := loops[0]
	assert.Len(t, ir.ForInits(newLoop), 4)
	require.Equal(t, 4, newLoop.NumResults())
	assert.Equal(t, 5, newLoop.Body().NumArgs())
	assert.Equal(t, 4, newLoop.Body().Terminator().NumOperands())
	assert.Equal(t, 4, m.CountKinds()[ir.KindUpdateTileOffset])
	for _, arg := range newLoop.Body().Args()[1:] {
		assert.Nil(t, arg.Type().(*ir.TileType).WgMap)
	}

	prefetches := opsOf(m, ir.KindPrefetchTile)
	require.Len(t, prefetches, 4)
	for i, prefetch := range prefetches {
		assert.Equal(t, newLoop.Result(i), prefetch.Operand(0), "prefetch #%d", i)
	}
}

func TestLoopCarriedAccumulator(t *testing.T) {
	m, src, b := newKernel(t, 1024, 1024)
	tileMap := wgMap(4, 4, 32, 32)
	tile := b.InitTile(wgTile(tileMap, 128, 128), src, []ir.Mixed{ir.Static(0), ir.Static(0)}, nil, nil)
	vt := ir.NewVectorType(dtypes.F32, 128, 128)
	zero := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 0)), tileMap)
	c0, c8, c1 := b.IndexConst(0), b.IndexConst(8), b.IndexConst(1)
	loop := b.For(c0, c8, c1, tile, zero)
	body := ir.NewBuilderAtEnd(loop.Body())
	loaded := body.LoadTile(vt, loop.Body().Arg(1), nil)
	acc := ir.WithMap(body.Elementwise(ir.KindAddF, vt, loop.Body().Arg(2), loaded), tileMap)
	next := body.UpdateTileOffset(loop.Body().Arg(1), c0, body.IndexConst(128), nil)
	body.Yield(next, acc)
	b.StoreTile(loop.Result(1), tile, ir.CacheHints{})
	b.Return()
	runPass(t, m)

	loops := opsOf(m, ir.KindFor)
	require.Len(t, loops, 1)
	assert.Equal(t, 2, loops[0].NumResults())
	adds := opsOf(m, ir.KindAddF)
	require.Len(t, adds, 1)
	assert.Equal(t, []int{32, 32}, vectorShape(adds[0].Result(0)))
	stores := opsOf(m, ir.KindStoreTile)
	require.Len(t, stores, 1)
	assert.Equal(t, loops[0].Result(1), stores[0].Operand(0))
}

// TestNestedLoops checks that an inner loop initialized with an iter arg of the outer loop is decomposed too: the
// iter arg has no defining op, and its workgroup map comes from the init of the outer loop.
func TestNestedLoops(t *testing.T) {
	for _, tc := range []struct {
		name     string
		wgMap    *ir.WorkGroupMap
		numSlots int
	}{
		{"one-to-one", wgMap(4, 4, 32, 32), 1},
		{"round-robin", wgMap(2, 2, 32, 32), 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, verify := range []bool{true, false} {
				m, _, b := newKernel(t, 16)
				vt := ir.NewVectorType(dtypes.F32, 128, 128)
				zero := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 0)), tc.wgMap)
				c0, c4, c1 := b.IndexConst(0), b.IndexConst(4), b.IndexConst(1)
				outer := b.For(c0, c4, c1, zero)
				outerBody := ir.NewBuilderAtEnd(outer.Body())
				inner := outerBody.For(c0, c4, c1, outer.Body().Arg(1))
				innerBody := ir.NewBuilderAtEnd(inner.Body())
				acc := inner.Body().Arg(1)
				sum := ir.WithMap(innerBody.Elementwise(ir.KindAddF, vt, acc, acc), tc.wgMap)
				innerBody.Yield(sum)
				outerBody.Yield(inner.Result(0))
				b.Return()

				require.NoError(t, New(Config().Verify(verify).Done()).Run(m), "verify=%v", verify)
				require.NoError(t, m.Verify(), "verify=%v", verify)

				loops := opsOf(m, ir.KindFor)
				require.Len(t, loops, 2)
				newOuter, newInner := loops[0], loops[1]
				for _, loop := range loops {
					require.Equal(t, tc.numSlots, loop.NumResults())
					for i := range tc.numSlots {
						assert.Equal(t, []int{32, 32}, vectorShape(loop.Result(i)))
						assert.Equal(t, []int{32, 32}, vectorShape(loop.Body().Arg(i+1)))
					}
				}
				assert.Equal(t, newOuter.Body().Args()[1:], ir.ForInits(newInner))
				assert.Equal(t, newInner.Results(), newOuter.Body().Terminator().Operands())
				adds := opsOf(m, ir.KindAddF)
				require.Len(t, adds, tc.numSlots)
				for i, add := range adds {
					assert.Equal(t, newInner.Body().Arg(i+1), add.Operand(0))
					assert.Equal(t, []int{32, 32}, vectorShape(add.Result(0)))
				}
			}
		})
	}
}

func TestLoopYieldsArgument(t *testing.T) {
	m, _, b := newKernel(t, 16)
	vt := ir.NewVectorType(dtypes.F32, 128, 128)
	zero := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 0)), wgMap(4, 4, 32, 32))
	c0, c4, c1 := b.IndexConst(0), b.IndexConst(4), b.IndexConst(1)
	loop := b.For(c0, c4, c1, zero)
	ir.NewBuilderAtEnd(loop.Body()).Yield(loop.Body().Arg(1))
	b.Opaque("test.sink", nil, loop.Result(0))
	b.Return()
	runPass(t, m)

	loops := opsOf(m, ir.KindFor)
	require.Len(t, loops, 1)
	body := loops[0].Body()
	assert.Equal(t, []*ir.Value{body.Arg(1)}, body.Terminator().Operands())
	assert.Equal(t, []int{32, 32}, vectorShape(loops[0].Result(0)))
	assert.Equal(t, loops[0].Result(0), opsOf(m, ir.KindOpaque)[0].Operand(0))
}

// TestYieldInIf checks that the yields of a conditional are flattened, while the conditional itself is kept.
func TestYieldInIf(t *testing.T) {
	m, _, b := newKernel(t, 16)
	tileMap := wgMap(4, 4, 32, 32)
	vt := ir.NewVectorType(dtypes.F32, 128, 128)
	c := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 1)), tileMap)
	cond := b.Constant(&ir.ScalarType{DType: dtypes.I1}, ir.NewDenseElements(dtypes.I1, nil, []float64{1}))
	ifOp := b.If(cond, vt)
	thenBlock := ir.NewBuilderAtEnd(ifOp.Region(0).Front())
	thenBlock.Yield(ir.WithMap(thenBlock.Elementwise(ir.KindAddF, vt, c, c), tileMap))
	ir.NewBuilderAtEnd(ifOp.Region(1).Front()).Yield(c)
	b.Return()
	pass := runPass(t, m)

	ifs := opsOf(m, ir.KindIf)
	require.Len(t, ifs, 1)
	assert.Equal(t, 1, ifs[0].NumResults())
	yields := opsOf(m, ir.KindYield)
	require.Len(t, yields, 2)
	for _, yield := range yields {
		require.Equal(t, 1, yield.NumOperands())
		assert.Equal(t, []int{32, 32}, vectorShape(yield.Operand(0)))
	}
	assert.Equal(t, ir.KindAddF, yields[0].Operand(0).DefiningOp().Kind())
	assert.Equal(t, ir.KindConstant, yields[1].Operand(0).DefiningOp().Kind())
	assert.Equal(t, 2, pass.Stats.Rewrites["scf-yield"])
}

func TestGatherScatter(t *testing.T) {
	m, src, b := newKernel(t, 4096)
	tileMap := wgMap(4, 4, 64, 64)
	indexType := ir.NewVectorType(dtypes.Index, 256, 256)
	indices := ir.WithMap(b.Constant(indexType, ir.NewSplat(dtypes.Index, indexType.Shape, 0)), tileMap)
	maskType := ir.NewVectorType(dtypes.I1, 256, 256)
	mask := ir.WithMap(b.Constant(maskType, ir.NewSplat(dtypes.I1, maskType.Shape, 1)), tileMap)
	tileType := wgTile(tileMap, 256, 256)
	tileType.Scatter = true
	tile := b.InitScatterTile(tileType, src, indices)
	vt := ir.NewVectorType(dtypes.F32, 256, 256)
	loaded := b.LoadGather(vt, tile, mask, &ir.LoadData{})
	sum := ir.WithMap(b.Elementwise(ir.KindAddF, vt, loaded, loaded), tileMap)
	b.StoreScatter(sum, tile, mask, ir.CacheHints{L1: "streaming"})
	b.Return()
	pass := runPass(t, m)

	inits := opsOf(m, ir.KindInitTile)
	require.Len(t, inits, 1)
	newTile := inits[0].Result(0)
	assert.Equal(t, []int{64, 64}, ir.ShapeOf(newTile.Type()))
	assert.Equal(t, []int{64, 64}, vectorShape(ir.InitTileIndices(inits[0])))

	gathers := opsOf(m, ir.KindLoadGather)
	require.Len(t, gathers, 1)
	assert.Equal(t, newTile, gathers[0].Operand(0))
	assert.Equal(t, []int{64, 64}, vectorShape(gathers[0].Operand(1)))
	assert.Equal(t, []int{64, 64}, vectorShape(gathers[0].Result(0)))

	scatters := opsOf(m, ir.KindStoreScatter)
	require.Len(t, scatters, 1)
	assert.Equal(t, ir.KindAddF, scatters[0].Operand(0).DefiningOp().Kind())
	assert.Equal(t, newTile, scatters[0].Operand(1))
	assert.Equal(t, gathers[0].Operand(1), scatters[0].Operand(2))
	assert.Equal(t, "streaming", scatters[0].Data().(*ir.MemoryAccessData).Hints.L1)
	assert.Equal(t, 1, pass.Stats.Rewrites["load-gather"])
	assert.Equal(t, 1, pass.Stats.Rewrites["store-scatter"])
}

func TestUpdateTileOffset(t *testing.T) {
	for _, tc := range []struct {
		name       string
		wgMap      *ir.WorkGroupMap
		scattered  bool
		numUpdates int
	}{
		{"scattered-with-indices", wgMap(4, 4, 64, 64), true, 1},
		{"round-robin", wgMap(2, 2, 32, 32), false, 16},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, src, b := newKernel(t, 1024, 1024)
			tileType := wgTile(tc.wgMap, 256, 256)
			indexType := ir.NewVectorType(dtypes.Index, 256, 256)
			var tile, offsetIndices *ir.Value
			if tc.scattered {
				tileType.Scatter = true
				indices := ir.WithMap(b.Constant(indexType, ir.NewSplat(dtypes.Index, indexType.Shape, 0)), tc.wgMap)
				tile = b.InitScatterTile(tileType, src, indices)
				offsetIndices = ir.WithMap(b.Constant(indexType, ir.NewSplat(dtypes.Index, indexType.Shape, 1)),
					tc.wgMap)
			} else {
				tile = b.InitTile(tileType, src, []ir.Mixed{ir.Static(0), ir.Static(0)}, nil, nil)
			}
			c0, step := b.IndexConst(0), b.IndexConst(256)
			next := b.UpdateTileOffset(tile, c0, step, offsetIndices)
			b.PrefetchTile(next, ir.CacheHints{})
			b.Return()
			runPass(t, m)

			updates := opsOf(m, ir.KindUpdateTileOffset)
			require.Len(t, updates, tc.numUpdates)
			for _, update := range updates {
				newType := update.Result(0).Type().(*ir.TileType)
				assert.Nil(t, newType.WgMap)
				assert.Equal(t, tc.scattered, newType.Scatter)
				assert.Equal(t, tc.wgMap.SgData[:], newType.Shape)
				assert.Equal(t, c0, update.Operand(1))
				assert.Equal(t, step, update.Operand(2))
				if tc.scattered {
					require.Equal(t, 4, update.NumOperands())
					assert.Equal(t, []int{64, 64}, vectorShape(update.Operand(3)))
				} else {
					assert.Equal(t, 3, update.NumOperands())
				}
			}
			assert.Equal(t, tc.numUpdates, m.CountKinds()[ir.KindPrefetchTile])
		})
	}
}

// TestElementwiseKinds checks the round-robin replication of the compare, select and fpowi ops: each instance
// takes the matching slice of every operand, and keeps the op attributes.
func TestElementwiseKinds(t *testing.T) {
	tileMap := wgMap(4, 4, 64, 32)
	f32Type := ir.NewVectorType(dtypes.F32, 512, 256)
	i32Type := ir.NewVectorType(dtypes.I32, 512, 256)
	maskType := ir.NewVectorType(dtypes.I1, 512, 256)
	for _, tc := range []struct {
		name      string
		kind      ir.Kind
		dtype     dtypes.DType
		predicate string
		build     func(b *ir.Builder, f, i *ir.Value) *ir.Value
	}{
		{"cmpf", ir.KindCmpF, dtypes.I1, "olt", func(b *ir.Builder, f, i *ir.Value) *ir.Value {
			return b.Compare(ir.KindCmpF, "olt", maskType, f, f)
		}},
		{"cmpi", ir.KindCmpI, dtypes.I1, "slt", func(b *ir.Builder, f, i *ir.Value) *ir.Value {
			return b.Compare(ir.KindCmpI, "slt", maskType, i, i)
		}},
		{"select", ir.KindSelect, dtypes.F32, "", func(b *ir.Builder, f, i *ir.Value) *ir.Value {
			cond := ir.WithMap(b.Compare(ir.KindCmpF, "ogt", maskType, f, f), tileMap)
			return b.Elementwise(ir.KindSelect, f32Type, cond, f, f)
		}},
		{"fpowi", ir.KindFPowI, dtypes.F32, "", func(b *ir.Builder, f, i *ir.Value) *ir.Value {
			return b.Elementwise(ir.KindFPowI, f32Type, f, i)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, _, b := newKernel(t, 16)
			f := ir.WithMap(b.Constant(f32Type, ir.NewSplat(dtypes.F32, f32Type.Shape, 2)), tileMap)
			i := ir.WithMap(b.Constant(i32Type, ir.NewSplat(dtypes.I32, i32Type.Shape, 3)), tileMap)
			ir.WithMap(tc.build(b, f, i), tileMap)
			b.Return()
			pass := runPass(t, m)

			instances := opsOf(m, tc.kind)
			require.Len(t, instances, 4)
			for idx, op := range instances {
				assert.Equal(t, ir.NewVectorType(tc.dtype, 64, 32), op.Result(0).Type(), "instance #%d", idx)
				assert.Nil(t, op.Map)
				if tc.predicate != "" {
					assert.Equal(t, tc.predicate, op.Data().(*ir.CompareData).Predicate)
				}
				for _, operand := range op.Operands() {
					assert.Equal(t, []int{64, 32}, vectorShape(operand))
				}
			}
			assert.Positive(t, pass.Stats.Rewrites["elementwise-"+tc.kind.String()])
		})
	}
}

// TestPartialReduction checks the reductions that don't map directly to a 1D result: a 3D shape cast feeding a
// reduction is dropped, and a 2D result is reduced as 1D with shape casts of the accumulator and the result.
func TestPartialReduction(t *testing.T) {
	t.Run("3D-shape-cast", func(t *testing.T) {
		m, src, b := newKernel(t, 256, 128)
		_, vec := initAndLoad(b, src, wgTile(wgMap(8, 1, 32, 128), 256, 128))
		split := ir.WithMap(b.ShapeCast(ir.NewVectorType(dtypes.F32, 8, 32, 128), vec), wgMap(8, 1, 32, 128))
		accType := ir.NewVectorType(dtypes.F32, 128)
		acc := b.Constant(accType, ir.NewSplat(dtypes.F32, accType.Shape, 0))
		reduced := ir.WithMap(b.MultiReduction(accType, "add", split, acc, []int{0}), wgMap(1, 1, 1, 128))
		b.Opaque("test.sink", nil, reduced)
		b.Return()
		runPass(t, m)

		assert.Zero(t, m.CountKinds()[ir.KindShapeCast])
		loads := opsOf(m, ir.KindLoadTile)
		require.Len(t, loads, 1)
		reductions := opsOf(m, ir.KindMultiReduction)
		require.Len(t, reductions, 1)
		assert.Equal(t, loads[0].Result(0), reductions[0].Operand(0))
		assert.Equal(t, acc, reductions[0].Operand(1))
		assert.Equal(t, []int{128}, vectorShape(reductions[0].Result(0)))
		assert.Equal(t, []int{0}, reductions[0].Data().(*ir.ReductionData).Dims)
	})

	t.Run("2D-result", func(t *testing.T) {
		m, src, b := newKernel(t, 256, 128)
		_, vec := initAndLoad(b, src, wgTile(wgMap(8, 1, 32, 128), 256, 128))
		rowsMap := wgMap(8, 1, 32, 1)
		accType := ir.NewVectorType(dtypes.F32, 256, 1)
		acc := ir.WithMap(b.Constant(accType, ir.NewSplat(dtypes.F32, accType.Shape, 0)), rowsMap)
		reduced := ir.WithMap(b.MultiReduction(accType, "maximumf", vec, acc, []int{1}), rowsMap)
		b.Opaque("test.sink", nil, reduced)
		b.Return()
		runPass(t, m)

		reductions := opsOf(m, ir.KindMultiReduction)
		require.Len(t, reductions, 1)
		data := reductions[0].Data().(*ir.ReductionData)
		assert.Equal(t, "maximumf", data.Combiner)
		assert.Equal(t, []int{1}, data.Dims)
		assert.Equal(t, []int{32, 128}, vectorShape(reductions[0].Operand(0)))
		assert.Equal(t, []int{32}, vectorShape(reductions[0].Operand(1)))
		assert.Equal(t, []int{32}, vectorShape(reductions[0].Result(0)))

		casts := opsOf(m, ir.KindShapeCast)
		require.Len(t, casts, 2)
		assert.Equal(t, casts[0].Result(0), reductions[0].Operand(1))
		assert.Equal(t, ir.KindConstant, casts[0].Operand(0).DefiningOp().Kind())
		assert.Equal(t, reductions[0].Result(0), casts[1].Operand(0))
		assert.Equal(t, []int{32, 1}, vectorShape(casts[1].Result(0)))
		assert.Equal(t, casts[1].Result(0), opsOf(m, ir.KindOpaque)[0].Operand(0))
	})
}

// TestConvertLayout checks the scratch memory round trip: alloc, store, barrier and load, in this order.
func TestConvertLayout(t *testing.T) {
	m, src, b := newKernel(t, 256, 256)
	srcMap, dstMap := wgMap(8, 4, 32, 64), wgMap(32, 1, 8, 256)
	_, vec := initAndLoad(b, src, wgTile(srcMap, 256, 256))
	converted := b.ConvertLayout(vec, &ir.ConvertLayoutData{Result: dstMap})
	b.Opaque("test.sink", nil, converted)
	b.Return()
	runPass(t, m)

	counts := m.CountKinds()
	assert.Zero(t, counts[ir.KindConvertLayout])
	assert.Equal(t, 1, counts[ir.KindAlloc])
	assert.Equal(t, 1, counts[ir.KindBarrier])

	body := m.Funcs()[0].Body()
	position := func(kind ir.Kind, memorySpace int) (int, *ir.Op) {
		for i, op := range body.Ops() {
			if op.Kind() != kind {
				continue
			}
			if memorySpace >= 0 && op.Operand(op.NumOperands()-1).Type().(*ir.TileType).MemorySpace != memorySpace {
				continue
			}
			return i, op
		}
		return -1, nil
	}
	allocPos, alloc := position(ir.KindAlloc, -1)
	storePos, store := position(ir.KindStoreTile, ir.SharedMemorySpace)
	barrierPos, _ := position(ir.KindBarrier, -1)
	loadPos, load := position(ir.KindLoadTile, ir.SharedMemorySpace)
	require.NotNil(t, alloc)
	require.NotNil(t, store)
	require.NotNil(t, load)
	assert.Less(t, allocPos, storePos)
	assert.Less(t, storePos, barrierPos)
	assert.Less(t, barrierPos, loadPos)

	scratchType := alloc.Result(0).Type().(*ir.MemRefType)
	assert.Equal(t, []int{256 * 256 * 4}, scratchType.Shape)
	assert.Equal(t, ir.SharedMemorySpace, scratchType.MemorySpace)

	// Each subgroup stores at its position in the source map, and loads at its position in the result map.
	storeInit, loadInit := store.Operand(1).DefiningOp(), load.Operand(0).DefiningOp()
	assert.Equal(t, []int{32, 64}, storeInit.Result(0).Type().(*ir.TileType).Shape)
	assert.Equal(t, []int{8, 256}, loadInit.Result(0).Type().(*ir.TileType).Shape)
	for _, id := range []int64{0, 5, 31} {
		eval := indexeval.New(id)
		assert.Equal(t, []int64{id / 4 * 32, id % 4 * 64}, must.M1(eval.TileOffsets(storeInit)), "subgroup %d", id)
		assert.Equal(t, []int64{id * 8, 0}, must.M1(eval.TileOffsets(loadInit)), "subgroup %d", id)
	}

	sink := opsOf(m, ir.KindOpaque)[0]
	assert.Equal(t, load.Result(0), sink.Operand(0))
	assert.Equal(t, []int{8, 256}, vectorShape(sink.Operand(0)))
}

// TestConvertLayoutFoldsTranspose checks that a transpose feeding a layout conversion is folded into a transposed
// view of the scratch buffer.
func TestConvertLayoutFoldsTranspose(t *testing.T) {
	m, _, b := newKernel(t, 16)
	vt := ir.NewVectorType(dtypes.F32, 256, 256)
	c := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 1)), wgMap(4, 8, 64, 32))
	transposed := ir.WithMap(b.Transpose(vt, c, []int{1, 0}), wgMap(8, 4, 32, 64))
	converted := b.ConvertLayout(transposed, &ir.ConvertLayoutData{Result: wgMap(32, 1, 8, 256)})
	b.Opaque("test.sink", nil, converted)
	b.Return()
	pass := runPass(t, m)

	counts := m.CountKinds()
	assert.Zero(t, counts[ir.KindTranspose])
	assert.Equal(t, 1, counts[ir.KindMemRefTranspose])
	assert.Positive(t, pass.Stats.Declines["vector-transpose"])

	var storeTile *ir.TileType
	for _, store := range opsOf(m, ir.KindStoreTile) {
		storeTile = store.Operand(1).Type().(*ir.TileType)
		assert.Equal(t, ir.KindConstant, store.Operand(0).DefiningOp().Kind())
	}
	require.NotNil(t, storeTile)
	assert.Equal(t, []int{0, 1}, storeTile.Order)
	assert.Equal(t, []int{64, 32}, storeTile.Shape)
}

func TestTransposeMarked(t *testing.T) {
	m, src, b := newKernel(t, 256, 256)
	tileMap := wgMap(4, 8, 64, 32)
	_, vec := initAndLoad(b, src, wgTile(tileMap, 256, 256))
	transposed := ir.WithMap(b.Transpose(ir.NewVectorType(dtypes.F32, 256, 256), vec, []int{1, 0}),
		wgMap(8, 4, 32, 64))
	b.Opaque("test.sink", nil, transposed)
	b.Return()
	pass := runPass(t, m)

	assert.Equal(t, 2, pass.Orders.Len())
	transposes := opsOf(m, ir.KindTranspose)
	require.Len(t, transposes, 1)
	assert.Equal(t, []int{32, 64}, vectorShape(transposes[0].Result(0)))

	// The tile is loaded in column-major subgroup order: subgroup 9 is at (1, 2).
	inits := opsOf(m, ir.KindInitTile)
	require.Len(t, inits, 1)
	assert.Equal(t, []int64{64, 64}, must.M1(indexeval.New(9).TileOffsets(inits[0])))
}

func TestBroadcast(t *testing.T) {
	m, _, b := newKernel(t, 16)
	rowType := ir.NewVectorType(dtypes.F32, 1, 256)
	row := ir.WithMap(b.Constant(rowType, ir.NewSplat(dtypes.F32, rowType.Shape, 2)), wgMap(1, 4, 1, 64))
	broadcast := ir.WithMap(b.Broadcast(ir.NewVectorType(dtypes.F32, 256, 256), row), wgMap(4, 4, 64, 64))
	b.Opaque("test.sink", nil, broadcast)
	b.Return()
	runPass(t, m)

	broadcasts := opsOf(m, ir.KindBroadcast)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, []int{1, 64}, vectorShape(broadcasts[0].Operand(0)))
	assert.Equal(t, []int{64, 64}, vectorShape(broadcasts[0].Result(0)))
}

func TestReductionAndShapeCast(t *testing.T) {
	m, src, b := newKernel(t, 256, 128)
	_, vec := initAndLoad(b, src, wgTile(wgMap(8, 1, 32, 128), 256, 128))
	rowsMap := wgMap(8, 1, 32, 1)
	accType := ir.NewVectorType(dtypes.F32, 256)
	acc := ir.WithMap(b.Constant(accType, ir.NewSplat(dtypes.F32, accType.Shape, 0)), rowsMap)
	reduced := ir.WithMap(b.MultiReduction(accType, "add", vec, acc, []int{1}), rowsMap)
	column := ir.WithMap(b.ShapeCast(ir.NewVectorType(dtypes.F32, 256, 1), reduced), rowsMap)
	b.Opaque("test.sink", nil, column)
	b.Return()
	runPass(t, m)

	reductions := opsOf(m, ir.KindMultiReduction)
	require.Len(t, reductions, 1)
	assert.Equal(t, []int{32}, vectorShape(reductions[0].Result(0)))
	assert.Equal(t, []int{32, 128}, vectorShape(reductions[0].Operand(0)))
	casts := opsOf(m, ir.KindShapeCast)
	require.Len(t, casts, 1)
	assert.Equal(t, []int{32, 1}, vectorShape(casts[0].Result(0)))
}

func TestCreateMaskAndCast(t *testing.T) {
	m, _, b := newKernel(t, 16)
	tileMap := wgMap(4, 4, 64, 64)
	size := b.IndexConst(200)
	mask := ir.WithMap(b.CreateMask(ir.NewVectorType(dtypes.I1, 256, 256), size, size), tileMap)
	vt := ir.NewVectorType(dtypes.F32, 256, 256)
	c := ir.WithMap(b.Constant(vt, ir.NewSplat(dtypes.F32, vt.Shape, 1)), tileMap)
	half := ir.WithMap(b.Elementwise(ir.KindTruncF, ir.NewVectorType(dtypes.F16, 256, 256), c), tileMap)
	b.Opaque("test.sink", nil, mask, half)
	b.Return()
	runPass(t, m)

	masks := opsOf(m, ir.KindCreateMask)
	require.Len(t, masks, 1)
	assert.Equal(t, []int{64, 64}, vectorShape(masks[0].Result(0)))
	assert.Equal(t, []*ir.Value{size, size}, masks[0].Operands())
	truncs := opsOf(m, ir.KindTruncF)
	require.Len(t, truncs, 1)
	assert.Equal(t, ir.NewVectorType(dtypes.F16, 64, 64), truncs[0].Result(0).Type())
}

func TestPatternNames(t *testing.T) {
	names := make(map[string]bool)
	for _, p := range Patterns(NewLayoutOrders()) {
		require.False(t, names[p.Name()], "duplicate pattern %q", p.Name())
		names[p.Name()] = true
	}
	for _, kind := range ir.AllKinds() {
		if kind.IsCast() {
			assert.True(t, names[fmt.Sprintf("cast-%s", kind)], "no pattern for %s", kind)
		}
	}
}
