// Package group implements TransferGroup: given a set of user accessors, it
// executes their combined transfers in the minimum number of backend
// round-trips while preserving each accessor's observable semantics.
package group

import (
	"context"
	"sort"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/accessor"
	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/deverr"
)

// Group coalesces the hardware transfers of every accessor added to it.
// Concurrent use of the same Group from multiple goroutines is undefined,
// mirroring the single-threaded-per-group assumption the whole accessor
// layer is built on.
type Group struct {
	highLevel      []accessor.TransferElement
	lowLevel       []accessor.TransferElement
	lowLevelSeen   map[accessor.TransferElement]bool
	copyDecorators []accessor.TransferElement
	blocks         []*accessor.Block
	excBackends    []backend.ExceptionBackend
	excBackendSeen map[backend.ExceptionBackend]bool
	readOnly       bool

	// leafExceptionFlags is reserved for future per-leaf retry
	// suppression within a single cycle; reset at the top of Read/Write
	// but not otherwise consulted, mirroring the original implementation.
	leafExceptionFlags map[accessor.TransferElement]bool
}

// New returns an empty Group.
func New() *Group {
	return &Group{
		lowLevelSeen:       make(map[accessor.TransferElement]bool),
		excBackendSeen:     make(map[backend.ExceptionBackend]bool),
		leafExceptionFlags: make(map[accessor.TransferElement]bool),
	}
}

// AddAccessor adds a to the group, coalescing its hardware-accessing
// leaves with every accessor already present. It is a logic error to add
// an accessor that is already in a group, or one whose access mode flags
// include wait_for_new_data (such accessors can block indefinitely and
// have no place in a group's synchronous transfer cycle).
func (g *Group) AddAccessor(a accessor.TransferElement) error {
	if a.InGroup() {
		return deverr.NewLogic("accessor %q is already in a TransferGroup and cannot be added to another", a.Name())
	}
	if a.AccessModeFlags().Has(accessmode.WaitForNewData) {
		return deverr.NewLogic("accessor %q has wait_for_new_data and cannot be used in a TransferGroup", a.Name())
	}

	a.MarkGroupOwned()

	if eb, ok := a.ExceptionBackend(); ok {
		if !g.excBackendSeen[eb] {
			g.excBackendSeen[eb] = true
			g.excBackends = append(g.excBackends, eb)
		}
	}

	withNew := make([]accessor.TransferElement, len(g.highLevel), len(g.highLevel)+1)
	copy(withNew, g.highLevel)
	withNew = append(withNew, a)

	// Coalescing: offer every internal element of every high-level element
	// (including the one just being added) as a replacement candidate to
	// the new accessor and to every high-level element already present.
	// An element accepts the offer only if the candidate transfers the
	// same hardware data it already holds (see TransferElement.ReplaceTransferElement).
	for _, hl1 := range withNew {
		candidates := append([]accessor.TransferElement{hl1}, hl1.InternalElements()...)
		for _, candidate := range candidates {
			a.ReplaceTransferElement(candidate)
			for _, hl := range withNew {
				hl.ReplaceTransferElement(candidate)
			}
		}
	}

	g.highLevel = append(g.highLevel, a)

	g.rebuildLowLevel()
	g.rebuildBlocks()
	g.rebuildCopyDecorators()
	g.leafExceptionFlags = make(map[accessor.TransferElement]bool, len(g.lowLevel))
	for _, leaf := range g.lowLevel {
		g.leafExceptionFlags[leaf] = false
	}

	if a.IsReadOnly() {
		g.readOnly = true
	}
	return nil
}

func (g *Group) rebuildLowLevel() {
	g.lowLevel = g.lowLevel[:0]
	g.lowLevelSeen = make(map[accessor.TransferElement]bool)
	for _, hl := range g.highLevel {
		for _, leaf := range hl.HardwareAccessingElements() {
			if !g.lowLevelSeen[leaf] {
				g.lowLevelSeen[leaf] = true
				g.lowLevel = append(g.lowLevel, leaf)
			}
		}
	}
}

// rebuildBlocks partitions the group's low-level leaves into maximal runs
// of overlapping or touching byte ranges within each (backend, address
// space) pair, and builds one Block per run. A run of length one still
// gets its own Block, so every leaf transfers through exactly one Block
// either way; a run of more than one is the mandatory coalescing case
// where two accessors over overlapping-but-distinct byte ranges — e.g. one
// register covering words [0,4) and another covering the overlapping
// [2,4) — must still produce exactly one backend read or write covering
// their union.
func (g *Group) rebuildBlocks() {
	g.blocks = g.blocks[:0]

	type span struct {
		elem  accessor.BlockJoinable
		start int64
		end   int64 // exclusive
	}
	type key struct {
		be             backend.Backend
		addressSpaceID int
	}
	byKey := make(map[key][]span)
	var order []key
	for _, leaf := range g.lowLevel {
		bj, ok := leaf.(accessor.BlockJoinable)
		if !ok {
			continue
		}
		be, addressSpaceID, byteOffset, length := bj.ByteRange()
		if length == 0 {
			continue
		}
		k := key{be, addressSpaceID}
		if _, exists := byKey[k]; !exists {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], span{elem: bj, start: byteOffset, end: byteOffset + length})
	}

	for _, k := range order {
		spans := byKey[k]
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		i := 0
		for i < len(spans) {
			j := i + 1
			runEnd := spans[i].end
			for j < len(spans) && spans[j].start <= runEnd {
				if spans[j].end > runEnd {
					runEnd = spans[j].end
				}
				j++
			}
			runStart := spans[i].start
			blk := accessor.NewBlock(k.be, k.addressSpaceID, runStart, runEnd-runStart)
			for m := i; m < j; m++ {
				blk.Join(spans[m].elem, spans[m].start, spans[m].end-spans[m].start)
			}
			g.blocks = append(g.blocks, blk)
			i = j
		}
	}
}

// rebuildCopyDecorators collects every copy decorator reachable strictly
// *inside* a high-level element's composition chain — never a high-level
// element itself, even if that element happens to be a copy decorator: it
// already gets its preRead/postRead call from the high-level pass, and
// calling it again here would trip its own idempotence guard.
func (g *Group) rebuildCopyDecorators() {
	g.copyDecorators = g.copyDecorators[:0]
	seen := make(map[accessor.TransferElement]bool)
	var walk func(e accessor.TransferElement)
	walk = func(e accessor.TransferElement) {
		if e.Kind() == accessor.KindCopyDecorator && !seen[e] {
			seen[e] = true
			g.copyDecorators = append(g.copyDecorators, e)
		}
		for _, internal := range e.InternalElements() {
			walk(internal)
		}
	}
	for _, hl := range g.highLevel {
		for _, internal := range hl.InternalElements() {
			walk(internal)
		}
	}
}

// IsReadOnly reports whether any accessor added to the group is read-only;
// such a group rejects Write.
func (g *Group) IsReadOnly() bool { return g.readOnly }

// Read executes one coalesced read cycle: every distinct hardware leaf is
// transferred exactly once, by way of the Block it was joined to in
// rebuildBlocks — leaves whose byte ranges overlap or touch within one
// (backend, address space) pair share one Block and therefore one physical
// ReadArea call, even when their ranges are not identical. Every copy
// decorator and every high-level accessor then decodes its share of the
// result. Errors are gathered across the whole cycle and re-raised in
// order: first runtime error, then the first numeric-cast error from a
// copy decorator, then the first numeric-cast error from a high-level
// accessor.
func (g *Group) Read(ctx context.Context) error {
	for leaf := range g.leafExceptionFlags {
		g.leafExceptionFlags[leaf] = false
	}
	for _, eb := range g.excBackends {
		if !eb.IsOpen() {
			return deverr.NewLogic("backend %q for a group member is not open", eb.Name())
		}
	}
	for _, hl := range g.highLevel {
		if !hl.IsReadable() {
			return deverr.NewLogic("accessor %q is not readable", hl.Name())
		}
	}

	for _, hl := range g.highLevel {
		if err := hl.PreRead(accessmode.Read); err != nil {
			return err
		}
	}
	for _, cd := range g.copyDecorators {
		if err := cd.PreRead(accessmode.Read); err != nil {
			return err
		}
	}

	for _, blk := range g.blocks {
		blk.Read(ctx)
	}

	var firstRuntimeErr error
	for _, leaf := range g.lowLevel {
		leaf.ReadTransfer(ctx)
		if err := leaf.ActiveException(); err != nil && firstRuntimeErr == nil {
			firstRuntimeErr = err
		}
	}

	update := firstRuntimeErr == nil
	badCastDecorators := runPostReads(g.copyDecorators, update)
	badCastHighLevel := runPostReads(g.highLevel, update)

	if firstRuntimeErr != nil {
		return firstRuntimeErr
	}
	if badCastDecorators != nil {
		return badCastDecorators
	}
	return badCastHighLevel
}

// runPostReads invokes postRead on every element, discarding runtime
// errors (already recorded by the caller) and returning the first
// non-runtime error encountered, if any.
func runPostReads(elems []accessor.TransferElement, update bool) error {
	var first error
	for _, elem := range elems {
		err := elem.PostRead(accessmode.Read, update)
		if err == nil || deverr.IsRuntime(err) {
			continue
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// Write executes one coalesced write cycle. It is a logic error to write a
// group containing any read-only accessor. preWrite runs for every
// accessor before any transfer begins; the first error there aborts the
// cycle immediately, since no hardware transfer has happened yet. Every
// low-level leaf then encodes its cooked value into its Block's shared
// buffer, and each Block performs its one WriteArea only once every member
// leaf sharing it has encoded — so two accessors writing overlapping byte
// ranges still produce one physical write of their union, not one per
// accessor. postWrite then runs for every accessor regardless of transfer
// outcome, and the first runtime error observed during the leaf transfers
// is re-raised at the end.
func (g *Group) Write(ctx context.Context, version accessor.VersionNumber) error {
	if g.readOnly {
		return deverr.NewLogic("TransferGroup.Write() called, but the group is read-only")
	}
	for _, eb := range g.excBackends {
		if !eb.IsOpen() {
			return deverr.NewLogic("backend %q for a group member is not open", eb.Name())
		}
	}
	for _, hl := range g.highLevel {
		if !hl.IsWriteable() {
			return deverr.NewLogic("accessor %q is not writeable", hl.Name())
		}
	}
	for leaf := range g.leafExceptionFlags {
		g.leafExceptionFlags[leaf] = false
	}

	for _, hl := range g.highLevel {
		if err := hl.PreWrite(accessmode.Write, version); err != nil {
			return err
		}
	}

	for _, leaf := range g.lowLevel {
		leaf.WriteTransfer(ctx, version)
	}
	for _, blk := range g.blocks {
		blk.Write(ctx)
	}

	var firstRuntimeErr error
	for _, leaf := range g.lowLevel {
		if err := leaf.ActiveException(); err != nil && firstRuntimeErr == nil {
			firstRuntimeErr = err
		}
	}

	for _, hl := range g.highLevel {
		if err := hl.PostWrite(accessmode.Write, version); err != nil && !deverr.IsRuntime(err) {
			// A non-runtime postWrite error (e.g. a logic error surfacing from
			// misuse) still has to be observed by the caller; runtime errors are
			// swallowed here since the first one was already captured above.
			if firstRuntimeErr == nil {
				firstRuntimeErr = err
			}
		}
	}

	return firstRuntimeErr
}
