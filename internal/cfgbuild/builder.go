package cfgbuild

import (
	"fmt"

	"github.com/oddessentials/reviewrouter/internal/cfgmodel"
	"github.com/oddessentials/reviewrouter/internal/sourceast"
)

// BuildFile discovers every function-like construct in prog and returns
// one graph per construct, in discovery order.
func BuildFile(path string, prog *sourceast.Program) []*cfgmodel.Graph {
	var units []unit
	discoverUnits(prog.Body, &units)

	graphs := make([]*cfgmodel.Graph, 0, len(units))
	for _, u := range units {
		graphs = append(graphs, buildGraph(path, u))
	}
	return graphs
}

type breakTarget struct {
	node cfgmodel.NodeID
	kind cfgmodel.EdgeKind
}

type builder struct {
	graph         *cfgmodel.Graph
	exitID        cfgmodel.NodeID
	catchStack    []cfgmodel.NodeID
	continueStack []cfgmodel.NodeID
	breakStack    []breakTarget
}

func buildGraph(path string, u unit) *cfgmodel.Graph {
	g := &cfgmodel.Graph{
		FunctionID: fmt.Sprintf("%s:%d:%s", path, u.line, u.name),
		IsAsync:    u.isAsync,
	}
	entry := g.AddNode(cfgmodel.NodeEntry, u.line)
	exit := g.AddNode(cfgmodel.NodeExit, u.line)
	g.Entry = entry.ID
	g.Exits = []cfgmodel.NodeID{exit.ID}

	b := &builder{graph: g, exitID: exit.ID}

	switch body := u.body.(type) {
	case *sourceast.BlockStmt:
		end, terminated := b.buildBlock(body.Body, entry.ID, cfgmodel.EdgeFlow)
		if !terminated {
			b.link(end, exit.ID, cfgmodel.EdgeFlow)
		}
	default:
		if expr, ok := u.body.(sourceast.Expr); ok {
			n := b.newNode(cfgmodel.NodeBasic, expr.StartLine())
			b.link(entry.ID, n, cfgmodel.EdgeFlow)
			n = b.attachExpr(n, expr)
			b.link(n, exit.ID, cfgmodel.EdgeReturn)
		} else {
			b.link(entry.ID, exit.ID, cfgmodel.EdgeFlow)
		}
	}

	return g
}

func (b *builder) newNode(kind cfgmodel.NodeKind, line int) cfgmodel.NodeID {
	return b.graph.AddNode(kind, line).ID
}

func (b *builder) link(from, to cfgmodel.NodeID, kind cfgmodel.EdgeKind) {
	b.graph.AddEdge(from, to, kind)
}

// attachExpr records expr's call sites on node, then appends one chained
// await node per await expression found (only when the enclosing
// function is async), returning the new current node.
func (b *builder) attachExpr(node cfgmodel.NodeID, expr sourceast.Expr) cfgmodel.NodeID {
	if expr == nil {
		return node
	}
	var calls []string
	var awaits []awaitHit
	collectEffects(expr, &calls, &awaits)

	n := b.graph.Node(node)
	n.CallSites = append(n.CallSites, calls...)

	cur := node
	if b.graph.IsAsync {
		for _, aw := range awaits {
			awNode := b.newNode(cfgmodel.NodeAwait, aw.line)
			b.link(cur, awNode, cfgmodel.EdgeFlow)
			if aw.callee != "" {
				b.graph.Node(awNode).CallSites = append(b.graph.Node(awNode).CallSites, aw.callee)
			}
			b.graph.AwaitBoundaries = append(b.graph.AwaitBoundaries, cfgmodel.AwaitBoundary{
				NodeID: awNode, Line: aw.line, Callee: aw.callee,
			})
			cur = awNode
		}
	}
	return cur
}

// buildBlock builds each statement of stmts in sequence. The first
// statement's incoming edge uses entryKind; subsequent statements chain
// with EdgeFlow. Once a statement terminates (return/throw/break/
// continue), later statements in the same block are unreachable and are
// not built; nested functions inside them are still found by the
// separate discovery pass.
func (b *builder) buildBlock(stmts []sourceast.Stmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	kind := entryKind
	terminated := false
	for _, s := range stmts {
		if terminated {
			continue
		}
		current, terminated = b.buildStmt(s, current, kind)
		kind = cfgmodel.EdgeFlow
	}
	return current, terminated
}

func (b *builder) buildStmt(stmt sourceast.Stmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	switch s := stmt.(type) {
	case *sourceast.BlockStmt:
		return b.buildBlock(s.Body, current, entryKind)

	case *sourceast.ExprStmt:
		n := b.newNode(cfgmodel.NodeBasic, s.StartLine())
		b.link(current, n, entryKind)
		return b.attachExpr(n, s.X), false

	case *sourceast.VarDeclStmt:
		n := b.newNode(cfgmodel.NodeBasic, s.StartLine())
		b.link(current, n, entryKind)
		end := n
		for _, d := range s.Decls {
			if d.Init != nil {
				end = b.attachExpr(end, d.Init)
			}
		}
		return end, false

	case *sourceast.IfStmt:
		return b.buildIf(s, current, entryKind)
	case *sourceast.SwitchStmt:
		return b.buildSwitch(s, current, entryKind)
	case *sourceast.WhileStmt:
		return b.buildWhile(s, current, entryKind)
	case *sourceast.DoWhileStmt:
		return b.buildDoWhile(s, current, entryKind)
	case *sourceast.ForStmt:
		return b.buildFor(s, current, entryKind)
	case *sourceast.ForOfStmt:
		return b.buildForOf(s, current, entryKind)
	case *sourceast.ForInStmt:
		return b.buildForIn(s, current, entryKind)
	case *sourceast.TryStmt:
		return b.buildTry(s, current, entryKind)

	case *sourceast.ReturnStmt:
		n := b.newNode(cfgmodel.NodeBasic, s.StartLine())
		b.link(current, n, entryKind)
		if s.Arg != nil {
			n = b.attachExpr(n, s.Arg)
		}
		b.link(n, b.exitID, cfgmodel.EdgeReturn)
		return n, true

	case *sourceast.ThrowStmt:
		n := b.newNode(cfgmodel.NodeThrow, s.StartLine())
		b.link(current, n, entryKind)
		n = b.attachExpr(n, s.Arg)
		target := b.exitID
		if len(b.catchStack) > 0 {
			target = b.catchStack[len(b.catchStack)-1]
		}
		b.link(n, target, cfgmodel.EdgeException)
		return n, true

	case *sourceast.BreakStmt:
		n := b.newNode(cfgmodel.NodeBasic, s.StartLine())
		b.link(current, n, entryKind)
		if len(b.breakStack) > 0 {
			t := b.breakStack[len(b.breakStack)-1]
			b.link(n, t.node, t.kind)
		}
		return n, true

	case *sourceast.ContinueStmt:
		n := b.newNode(cfgmodel.NodeBasic, s.StartLine())
		b.link(current, n, entryKind)
		if len(b.continueStack) > 0 {
			b.link(n, b.continueStack[len(b.continueStack)-1], cfgmodel.EdgeLoopBack)
		}
		return n, true

	case *sourceast.EmptyStmt:
		return current, false

	case *sourceast.FunctionDecl, *sourceast.ClassDecl:
		// Hoisted out and built as their own graphs; no flow impact here.
		return current, false

	default:
		n := b.newNode(cfgmodel.NodeBasic, stmt.StartLine())
		b.link(current, n, entryKind)
		return n, false
	}
}

func (b *builder) buildIf(s *sourceast.IfStmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	branch := b.newNode(cfgmodel.NodeBranch, s.StartLine())
	b.link(current, branch, entryKind)
	branch = b.attachExpr(branch, s.Test)

	trueEnd, trueTerm := b.buildStmt(s.Consequent, branch, cfgmodel.EdgeBranchTrue)

	hasAlt := s.Alternate != nil
	var falseEnd cfgmodel.NodeID
	falseTerm := false
	if hasAlt {
		falseEnd, falseTerm = b.buildStmt(s.Alternate, branch, cfgmodel.EdgeBranchFalse)
	}

	merge := b.newNode(cfgmodel.NodeMerge, s.EndLine())
	if !trueTerm {
		b.link(trueEnd, merge, cfgmodel.EdgeFlow)
	}
	if hasAlt {
		if !falseTerm {
			b.link(falseEnd, merge, cfgmodel.EdgeFlow)
		}
	} else {
		b.link(branch, merge, cfgmodel.EdgeBranchFalse)
	}

	allTerminated := trueTerm && hasAlt && falseTerm
	return merge, allTerminated
}

func (b *builder) buildSwitch(s *sourceast.SwitchStmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	branch := b.newNode(cfgmodel.NodeBranch, s.StartLine())
	b.link(current, branch, entryKind)
	branch = b.attachExpr(branch, s.Discriminant)

	merge := b.newNode(cfgmodel.NodeMerge, s.EndLine())
	b.breakStack = append(b.breakStack, breakTarget{node: merge, kind: cfgmodel.EdgeFlow})
	defer func() { b.breakStack = b.breakStack[:len(b.breakStack)-1] }()

	hasDefault := false
	var prevEnd cfgmodel.NodeID
	prevTerminated := true
	anyCaseRan := false

	for _, c := range s.Cases {
		caseEntry := b.newNode(cfgmodel.NodeBasic, c.StartLine())
		ek := cfgmodel.EdgeBranchTrue
		if c.Test == nil {
			hasDefault = true
			ek = cfgmodel.EdgeBranchFalse
		}
		b.link(branch, caseEntry, ek)
		if anyCaseRan && !prevTerminated {
			b.link(prevEnd, caseEntry, cfgmodel.EdgeFlow)
		}

		end, term := b.buildBlock(c.Body, caseEntry, cfgmodel.EdgeFlow)
		prevEnd, prevTerminated = end, term
		anyCaseRan = true
	}

	if anyCaseRan && !prevTerminated {
		b.link(prevEnd, merge, cfgmodel.EdgeFlow)
	}
	if !hasDefault {
		b.link(branch, merge, cfgmodel.EdgeBranchFalse)
	}

	return merge, false
}

func (b *builder) buildWhile(s *sourceast.WhileStmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	header := b.newNode(cfgmodel.NodeLoopHeader, s.StartLine())
	b.link(current, header, entryKind)
	header = b.attachExpr(header, s.Test)

	exit := b.newNode(cfgmodel.NodeMerge, s.EndLine())
	b.link(header, exit, cfgmodel.EdgeBranchFalse)

	b.continueStack = append(b.continueStack, header)
	b.breakStack = append(b.breakStack, breakTarget{node: exit, kind: cfgmodel.EdgeLoopExit})

	bodyEnd, bodyTerm := b.buildStmt(s.Body, header, cfgmodel.EdgeBranchTrue)

	b.continueStack = b.continueStack[:len(b.continueStack)-1]
	b.breakStack = b.breakStack[:len(b.breakStack)-1]

	if !bodyTerm {
		b.link(bodyEnd, header, cfgmodel.EdgeLoopBack)
	}
	return exit, false
}

func (b *builder) buildDoWhile(s *sourceast.DoWhileStmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	bodyEntry := b.newNode(cfgmodel.NodeLoopBody, s.StartLine())
	b.link(current, bodyEntry, entryKind)

	testNode := b.newNode(cfgmodel.NodeLoopHeader, s.EndLine())
	exit := b.newNode(cfgmodel.NodeMerge, s.EndLine())

	b.continueStack = append(b.continueStack, testNode)
	b.breakStack = append(b.breakStack, breakTarget{node: exit, kind: cfgmodel.EdgeLoopExit})

	bodyEnd, bodyTerm := b.buildStmt(s.Body, bodyEntry, cfgmodel.EdgeFlow)

	b.continueStack = b.continueStack[:len(b.continueStack)-1]
	b.breakStack = b.breakStack[:len(b.breakStack)-1]

	if !bodyTerm {
		b.link(bodyEnd, testNode, cfgmodel.EdgeFlow)
	}
	testNode2 := b.attachExpr(testNode, s.Test)
	b.link(testNode2, bodyEntry, cfgmodel.EdgeLoopBack)
	b.link(testNode2, exit, cfgmodel.EdgeBranchFalse)

	return exit, false
}

func (b *builder) buildFor(s *sourceast.ForStmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	kind := entryKind
	if s.Init != nil {
		var term bool
		current, term = b.buildStmt(s.Init, current, entryKind)
		if term {
			return current, true
		}
		kind = cfgmodel.EdgeFlow
	}

	header := b.newNode(cfgmodel.NodeLoopHeader, s.StartLine())
	b.link(current, header, kind)
	if s.Test != nil {
		header = b.attachExpr(header, s.Test)
	}

	exit := b.newNode(cfgmodel.NodeMerge, s.EndLine())
	b.link(header, exit, cfgmodel.EdgeBranchFalse)

	update := b.newNode(cfgmodel.NodeBasic, s.EndLine())

	b.continueStack = append(b.continueStack, update)
	b.breakStack = append(b.breakStack, breakTarget{node: exit, kind: cfgmodel.EdgeLoopExit})

	bodyEnd, bodyTerm := b.buildStmt(s.Body, header, cfgmodel.EdgeBranchTrue)

	b.continueStack = b.continueStack[:len(b.continueStack)-1]
	b.breakStack = b.breakStack[:len(b.breakStack)-1]

	if !bodyTerm {
		b.link(bodyEnd, update, cfgmodel.EdgeFlow)
	}
	updateEnd := update
	if s.Update != nil {
		updateEnd = b.attachExpr(update, s.Update)
	}
	b.link(updateEnd, header, cfgmodel.EdgeLoopBack)

	return exit, false
}

func (b *builder) buildForOf(s *sourceast.ForOfStmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	header := b.newNode(cfgmodel.NodeLoopHeader, s.StartLine())
	b.link(current, header, entryKind)
	header = b.attachExpr(header, s.Iterable)

	exit := b.newNode(cfgmodel.NodeMerge, s.EndLine())
	b.link(header, exit, cfgmodel.EdgeBranchFalse)

	b.continueStack = append(b.continueStack, header)
	b.breakStack = append(b.breakStack, breakTarget{node: exit, kind: cfgmodel.EdgeLoopExit})

	bodyEnd, bodyTerm := b.buildStmt(s.Body, header, cfgmodel.EdgeBranchTrue)

	b.continueStack = b.continueStack[:len(b.continueStack)-1]
	b.breakStack = b.breakStack[:len(b.breakStack)-1]

	if !bodyTerm {
		b.link(bodyEnd, header, cfgmodel.EdgeLoopBack)
	}
	return exit, false
}

func (b *builder) buildForIn(s *sourceast.ForInStmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	header := b.newNode(cfgmodel.NodeLoopHeader, s.StartLine())
	b.link(current, header, entryKind)
	header = b.attachExpr(header, s.Obj)

	exit := b.newNode(cfgmodel.NodeMerge, s.EndLine())
	b.link(header, exit, cfgmodel.EdgeBranchFalse)

	b.continueStack = append(b.continueStack, header)
	b.breakStack = append(b.breakStack, breakTarget{node: exit, kind: cfgmodel.EdgeLoopExit})

	bodyEnd, bodyTerm := b.buildStmt(s.Body, header, cfgmodel.EdgeBranchTrue)

	b.continueStack = b.continueStack[:len(b.continueStack)-1]
	b.breakStack = b.breakStack[:len(b.breakStack)-1]

	if !bodyTerm {
		b.link(bodyEnd, header, cfgmodel.EdgeLoopBack)
	}
	return exit, false
}

// buildTry links the guarded block's throws to the catch block (if
// present), merges the normal exits of block/catch, and chains any
// finally block after that merge. A finally block is not re-wired onto
// every individual early return inside the try — only onto the block's
// own fallthrough and the catch's fallthrough.
func (b *builder) buildTry(s *sourceast.TryStmt, current cfgmodel.NodeID, entryKind cfgmodel.EdgeKind) (cfgmodel.NodeID, bool) {
	var catchEntry cfgmodel.NodeID
	hasCatch := s.CatchBlock != nil
	if hasCatch {
		catchEntry = b.newNode(cfgmodel.NodeBasic, s.CatchBlock.StartLine())
	}

	if hasCatch {
		b.catchStack = append(b.catchStack, catchEntry)
	}
	blockEnd, blockTerm := b.buildStmt(s.Block, current, entryKind)
	if hasCatch {
		b.catchStack = b.catchStack[:len(b.catchStack)-1]
	}

	var catchEnd cfgmodel.NodeID
	catchTerm := true
	if hasCatch {
		catchEnd, catchTerm = b.buildBlock(s.CatchBlock.Body, catchEntry, cfgmodel.EdgeFlow)
	}

	merge := b.newNode(cfgmodel.NodeMerge, s.EndLine())
	if !blockTerm {
		b.link(blockEnd, merge, cfgmodel.EdgeFlow)
	}
	if hasCatch && !catchTerm {
		b.link(catchEnd, merge, cfgmodel.EdgeFlow)
	}

	result := merge
	allTerminated := blockTerm && (!hasCatch || catchTerm)

	if s.FinallyBlock != nil {
		finallyEntry := b.newNode(cfgmodel.NodeBasic, s.FinallyBlock.StartLine())
		b.link(merge, finallyEntry, cfgmodel.EdgeFlow)
		fEnd, fTerm := b.buildBlock(s.FinallyBlock.Body, finallyEntry, cfgmodel.EdgeFlow)
		result = fEnd
		allTerminated = allTerminated || fTerm
	}

	return result, allTerminated
}
