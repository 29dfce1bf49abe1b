package mitigation

import "github.com/oddessentials/reviewrouter/internal/sourceast"

// Detect walks prog looking for call sites whose callee name matches an
// active pattern in catalog, returning one Instance per match. Cross-
// file linking (CrossFile, CallChain, DiscoveryDepth) is left to a
// separate whole-program pass; a single-file Detect call always returns
// instances with those fields at their zero values.
func Detect(catalog *Catalog, file string, prog *sourceast.Program) []Instance {
	d := &detector{catalog: catalog, file: file, scopeStack: []string{"module"}}
	d.walkStmts(prog.Body)
	return d.instances
}

type detector struct {
	catalog    *Catalog
	file       string
	scopeStack []string
	instances  []Instance
}

func (d *detector) scope() string {
	return d.scopeStack[len(d.scopeStack)-1]
}

func (d *detector) pushScope(name string) {
	d.scopeStack = append(d.scopeStack, name)
}

func (d *detector) popScope() {
	d.scopeStack = d.scopeStack[:len(d.scopeStack)-1]
}

func (d *detector) walkStmts(stmts []sourceast.Stmt) {
	for _, s := range stmts {
		d.walkStmt(s)
	}
}

func (d *detector) walkStmt(s sourceast.Stmt) {
	switch n := s.(type) {
	case *sourceast.FunctionDecl:
		name := n.Name
		if name == "" {
			name = "<anonymous>"
		}
		d.pushScope(name)
		if n.Body != nil {
			d.walkStmts(n.Body.Body)
		}
		d.popScope()
	case *sourceast.ClassDecl:
		for _, m := range n.Methods {
			d.pushScope(n.Name + "." + m.Name)
			if m.Body != nil {
				d.walkStmts(m.Body.Body)
			}
			d.popScope()
		}
	case *sourceast.BlockStmt:
		d.walkStmts(n.Body)
	case *sourceast.ExprStmt:
		d.scanExpr(n.X, "")
	case *sourceast.VarDeclStmt:
		for _, decl := range n.Decls {
			if arrow, ok := decl.Init.(*sourceast.ArrowFunctionExpr); ok {
				d.pushScope(decl.Name)
				switch body := arrow.Body.(type) {
				case *sourceast.BlockStmt:
					d.walkStmts(body.Body)
				case sourceast.Expr:
					d.scanExpr(body, "")
				}
				d.popScope()
				continue
			}
			if fn, ok := decl.Init.(*sourceast.FunctionDecl); ok {
				d.pushScope(decl.Name)
				if fn.Body != nil {
					d.walkStmts(fn.Body.Body)
				}
				d.popScope()
				continue
			}
			if decl.Init != nil {
				d.scanExpr(decl.Init, decl.Name)
			}
		}
	case *sourceast.IfStmt:
		d.scanExpr(n.Test, "")
		d.walkStmt(n.Consequent)
		if n.Alternate != nil {
			d.walkStmt(n.Alternate)
		}
	case *sourceast.SwitchStmt:
		d.scanExpr(n.Discriminant, "")
		for _, c := range n.Cases {
			if c.Test != nil {
				d.scanExpr(c.Test, "")
			}
			d.walkStmts(c.Body)
		}
	case *sourceast.WhileStmt:
		d.scanExpr(n.Test, "")
		d.walkStmt(n.Body)
	case *sourceast.DoWhileStmt:
		d.walkStmt(n.Body)
		d.scanExpr(n.Test, "")
	case *sourceast.ForStmt:
		if n.Init != nil {
			d.walkStmt(n.Init)
		}
		if n.Test != nil {
			d.scanExpr(n.Test, "")
		}
		if n.Update != nil {
			d.scanExpr(n.Update, "")
		}
		d.walkStmt(n.Body)
	case *sourceast.ForOfStmt:
		d.scanExpr(n.Iterable, "")
		d.walkStmt(n.Body)
	case *sourceast.ForInStmt:
		d.scanExpr(n.Obj, "")
		d.walkStmt(n.Body)
	case *sourceast.TryStmt:
		if n.Block != nil {
			d.walkStmts(n.Block.Body)
		}
		if n.CatchBlock != nil {
			d.walkStmts(n.CatchBlock.Body)
		}
		if n.FinallyBlock != nil {
			d.walkStmts(n.FinallyBlock.Body)
		}
	case *sourceast.ReturnStmt:
		if n.Arg != nil {
			d.scanExpr(n.Arg, "")
		}
	case *sourceast.ThrowStmt:
		d.scanExpr(n.Arg, "")
	}
}

// scanExpr recursively inspects expr for call sites matching an active
// pattern. assigneeHint is the variable name expr is being assigned to,
// if any — used as the protected variable when the matched call itself
// has no useful argument to attribute the protection to.
func (d *detector) scanExpr(expr sourceast.Expr, assigneeHint string) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *sourceast.CallExpr:
		name := calleeName(e.Callee)
		for _, p := range d.catalog.Active() {
			re := d.catalog.regex[p.ID]
			if re == nil {
				continue
			}
			if !re.MatchString(name).Matched {
				continue
			}
			protected := assigneeHint
			if protected == "" && len(e.Args) > 0 {
				if id, ok := e.Args[0].(*sourceast.Identifier); ok {
					protected = id.Name
				}
			}
			d.instances = append(d.instances, Instance{
				PatternID:         p.ID,
				File:              d.file,
				Line:              e.StartLine(),
				Scope:             d.scope(),
				ProtectedVariable: protected,
				Confidence:        p.Confidence,
			})
		}
		d.scanExpr(e.Callee, "")
		for _, a := range e.Args {
			d.scanExpr(a, "")
		}
	case *sourceast.MemberExpr:
		d.scanExpr(e.Object, "")
	case *sourceast.UnaryExpr:
		d.scanExpr(e.Operand, "")
	case *sourceast.AwaitExpr:
		d.scanExpr(e.Operand, assigneeHint)
	case *sourceast.BinaryExpr:
		d.scanExpr(e.Left, "")
		d.scanExpr(e.Right, "")
	case *sourceast.AssignExpr:
		d.scanExpr(e.Value, assigneeName(e.Target))
	}
}

func assigneeName(target sourceast.Expr) string {
	if id, ok := target.(*sourceast.Identifier); ok {
		return id.Name
	}
	return ""
}

func calleeName(e sourceast.Expr) string {
	switch v := e.(type) {
	case *sourceast.Identifier:
		return v.Name
	case *sourceast.MemberExpr:
		return v.Property
	default:
		return ""
	}
}
